// Package tlsutil 提供模型 Provider 出站调用使用的加固 HTTP 客户端
// （TLS 1.2+，仅 AEAD 密码套件，遵循 HTTPS_PROXY 等代理环境变量）。
package tlsutil
