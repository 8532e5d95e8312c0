// Package retry 提供指数退避重试器，按错误的可重试性决定是否重试。
package retry
