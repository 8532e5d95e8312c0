/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动与优雅关闭。

# 概述

Manager 封装 net/http.Server，统一管理监听、服务、关闭与错误传播。
serve 命令为 API 与 /metrics 各创建一个 Manager。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空与连接释放。
  - Wait：等待 ctx 取消或服务异常，然后自动关闭。
  - 错误传播：Errors() 返回异步错误通道。
*/
package server
