/*
Package handlers 提供 FormFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现表单优化端点、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - OptimizeHandler: POST /api/v1/forms/optimize，调用 optimizer.Optimizer
  - HealthHandler: 服务健康检查（/health, /healthz, /ready, /version）
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo: 结构化错误信息，含 code、side、fields、retryable
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码与字节数

# 错误映射

请求侧校验失败返回 400；模型回复校验失败、空回复、非 JSON 对象返回 502；
模型服务不可用（含超时）返回 503。side 字段区分请求侧与回复侧。
*/
package handlers
