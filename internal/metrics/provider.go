package metrics

import (
	"context"
	"time"

	"github.com/formflow/formflow/llm"
)

// instrumentedProvider 记录每次 Completion 的耗时、状态与 Token 用量
type instrumentedProvider struct {
	llm.Provider
	collector *Collector
}

// InstrumentProvider 包装 p，使其调用被记录到 c。c 为空时原样返回 p。
func InstrumentProvider(p llm.Provider, c *Collector) llm.Provider {
	if p == nil || c == nil {
		return p
	}
	return &instrumentedProvider{Provider: p, collector: c}
}

func (p *instrumentedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := p.Provider.Completion(ctx, req)
	elapsed := time.Since(start)

	model := req.Model
	if err != nil {
		status := "error"
		if e, ok := llm.AsError(err); ok {
			status = string(e.Code)
		} else if ctx.Err() != nil {
			status = "timeout"
		}
		p.collector.RecordLLMRequest(p.Name(), model, status, elapsed, 0, 0)
		return nil, err
	}
	if resp.Model != "" {
		model = resp.Model
	}
	p.collector.RecordLLMRequest(p.Name(), model, "success", elapsed, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp, nil
}
