/*
# 概述

包 providers 提供跨模型服务商的通用适配能力，是 openaicompat 与 gemini
两个具体实现的公共基础层。

# 核心类型

  - BaseProviderConfig: 所有 Provider 共享的基础配置（APIKey、BaseURL、Model、Timeout）
  - OpenAICompat* 系列: OpenAI 兼容 API 的请求/响应/response_format 结构体

# 核心函数

  - MapHTTPError: 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - TransportError: 网络层失败统一映射
  - ConvertMessagesToOpenAI / ConvertResponseFormat: 消息与结构化输出约束转换
  - ToLLMChatResponse: OpenAI 兼容响应到 llm.ChatResponse 的转换
  - ChooseModel: 按优先级选择模型（请求 > 默认 > 兜底）
*/
package providers
