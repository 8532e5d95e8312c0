// 版权所有 2024 FormFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层：Provider 抽象、请求/响应模型与错误语义。

# 概述

本包屏蔽不同模型服务商在接口、鉴权、错误语义上的差异，对上层
（optimizer.Invoker）暴露一致的请求与响应模型。

# 核心接口

  - [Provider]：LLM 提供者接口，提供 Completion / HealthCheck / Name

# 核心类型

  - [ChatRequest] / [ChatResponse]：聊天请求与响应
  - [ResponseFormat]：结构化输出约束，携带 JSON Schema，
    由各 Provider 映射为原生参数（OpenAI response_format、Gemini responseSchema）
  - [Error] / [ErrorCode]：统一错误码，对齐 HTTP 状态与可重试性
  - [HealthStatus]：健康检查状态

# 相关子包

- llm/providers：各模型服务商适配实现（openaicompat、gemini）。
- llm/factory：按名称创建 Provider。
- llm/retry：重试与退避策略。
- llm/circuitbreaker：熔断器实现。
- llm/tokenizer：Token 计数。
*/
package llm
