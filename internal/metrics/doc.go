/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、LLM 调用与表单优化流程三个维度。

# 概述

Collector 使用 promauto 注册到默认 Registry，所有指标按 namespace
隔离。Collector 实现 optimizer.Recorder，可直接传给 optimizer.WithMetrics；
InstrumentProvider 包装 llm.Provider，记录每次模型调用的耗时与 Token 用量。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：请求总数、请求耗时、Token 用量（prompt/completion），
    按 provider/model 分组。
  - 优化指标：按 outcome 分组的调用总数与耗时，以及 prompt Token 分布。
*/
package metrics
