/*
# 概述

包 gemini 提供 Google Gemini 模型的 Provider 适配实现，基于官方
google.golang.org/genai SDK（Gemini Developer API 后端）。

# 核心结构体

  - GeminiProvider: 持有 genai.Client 与 GeminiConfig

# 构造函数

  - NewGeminiProvider(cfg, logger): 创建实例，默认模型 gemini-2.0-flash

# 支持能力

  - GenerateContent 同步调用
  - 结构化输出：llm.ResponseFormat 映射为
    ResponseMIMEType=application/json + ResponseSchema
  - HealthCheck（Models.Get）
  - genai.APIError 到 llm.Error 的统一映射
*/
package gemini
