package tokenizer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// 模型前缀到 tiktoken 编码的映射；按前缀长度降序匹配。
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4.1":       "o200k_base",
	"o1":            "o200k_base",
	"o3":            "o200k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
	"deepseek":      "cl100k_base",
	"qwen":          "cl100k_base",
}

var encodingPrefixes = func() []string {
	prefixes := make([]string, 0, len(modelEncodings))
	for p := range modelEncodings {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return prefixes
}()

func lookupEncoding(model string) (string, bool) {
	for _, prefix := range encodingPrefixes {
		if hasPrefixFold(model, prefix) {
			return modelEncodings[prefix], true
		}
	}
	return "", false
}

// tiktokenCounter 基于 tiktoken 的精确计数器，编码表懒加载（首次使用时可能需要下载）。
type tiktokenCounter struct {
	model    string
	encoding string

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

func newTiktokenCounter(model, encoding string) *tiktokenCounter {
	return &tiktokenCounter{model: model, encoding: encoding}
}

func (t *tiktokenCounter) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *tiktokenCounter) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *tiktokenCounter) Name() string {
	return "tiktoken[" + t.encoding + "]"
}
