// Copyright (c) FormFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 FormFlow 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 optimizer、llm、api 等上层
模块提供统一的类型契约。

# 核心类型

  - Error / ErrorCode: 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - JSONSchema: JSON Schema 定义与构建器（NewObjectSchema 等），
    用于描述请求契约以及传给 Provider 的输出形状约束

# 主要能力

  - 错误工具链：NewError / AsError / IsErrorCode / IsRetryable / GetErrorCode
  - Schema 构建：NewObjectSchema / NewArraySchema / NewStringSchema / AddProperty
*/
package types
