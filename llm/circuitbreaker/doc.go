// Package circuitbreaker 提供三态熔断器（Closed/Open/HalfOpen），
// 在上游持续失败时快速拒绝调用，避免请求堆积。
package circuitbreaker
