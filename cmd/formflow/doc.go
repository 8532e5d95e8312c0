/*
Command formflow 是 FormFlow 的可执行入口。

# 子命令

  - serve     启动 HTTP API（默认 :8080）与 Prometheus 指标服务（默认 :9091）
  - optimize  离线处理一个或多个请求文件，按输入顺序输出 JSON 结果
  - version   打印构建信息
  - health    探测运行中服务的 /health 或 /ready

# 配置

配置按 defaults → YAML（--config）→ FORMFLOW_* 环境变量的顺序合并。
serve 模式下会监听配置文件，日志级别变更即时生效，其余项需重启。

# 中间件

Recovery → RequestID → OTelTracing → SecurityHeaders → RequestLogger →
Metrics → RateLimiter（按 IP 令牌桶）。
*/
package main
