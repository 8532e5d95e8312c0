package tokenizer

import (
	"strings"

	"go.uber.org/zap"
)

// Counter 统一的 token 计数接口。
type Counter interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Name 返回计数器名称，用于日志与指标标签.
	Name() string
}

// ForModel 按模型名选择计数器：OpenAI 系列走 tiktoken，其余（Gemini、本地模型）走估算器。
func ForModel(model string) Counter {
	if enc, ok := lookupEncoding(model); ok {
		return newTiktokenCounter(model, enc)
	}
	return NewEstimator()
}

// Count 计数并在精确计数失败（如 tiktoken 词表无法下载）时回退到估算器。
func Count(c Counter, text string, logger *zap.Logger) int {
	if c == nil {
		c = NewEstimator()
	}
	n, err := c.CountTokens(text)
	if err == nil {
		return n
	}
	if logger != nil {
		logger.Debug("token count fell back to estimator",
			zap.String("counter", c.Name()),
			zap.Error(err),
		)
	}
	n, _ = NewEstimator().CountTokens(text)
	return n
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
