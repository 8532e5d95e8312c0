// Package tokenizer 提供 prompt token 计数：OpenAI 系列模型使用 tiktoken 精确计数，
// 其余模型及离线环境回退到 CJK 感知的估算器。计数结果只用于日志与指标，不做截断。
package tokenizer
