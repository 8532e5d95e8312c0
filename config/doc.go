// Package config 提供 FormFlow 的配置管理功能。
//
// 配置优先级为 默认值 → YAML 文件 → 环境变量（FORMFLOW_ 前缀），
// 加载后使用 validator 结构体标签校验，并负责把配置转换为
// 优化器、重试策略、熔断器与 Provider 工厂所需的参数。
// FileWatcher 监听配置文件变化，供 serve 命令热更新日志级别。
package config
