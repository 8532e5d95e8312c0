package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/formflow/formflow/llm"
	"github.com/formflow/formflow/optimizer"
	"github.com/formflow/formflow/testutil/fixtures"
	"github.com/formflow/formflow/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newMockOptimizer(provider *mocks.MockProvider) optimizer.Optimizer {
	inv := optimizer.NewInvoker(provider, optimizer.InvokerConfig{}, nil)
	return optimizer.NewFlow(inv)
}

func TestOptimizeFiles_PreservesOrderAndIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", fixtures.SampleRequestJSON)
	bad := writeFile(t, dir, "bad.json", `{"responses":[]}`)
	missing := filepath.Join(dir, "missing.json")

	provider := mocks.NewMockProvider().WithResponse(fixtures.ValidReplyJSON)
	results := optimizeFiles(context.Background(), newMockOptimizer(provider),
		[]string{good, bad, missing, good}, nil, 2, zap.NewNop())

	require.Len(t, results, 4)
	assert.Equal(t, good, results[0].File)
	assert.True(t, results[0].Success)
	assert.Equal(t, []string{"q1", "q2"}, results[0].Data.OptimizedSequence)

	assert.False(t, results[1].Success)
	assert.Equal(t, "INVALID_REQUEST", results[1].Error.Code)
	assert.Equal(t, "request", results[1].Error.Side)
	require.NotEmpty(t, results[1].Error.Fields)
	assert.Equal(t, "formId", results[1].Error.Fields[0].Path)

	assert.False(t, results[2].Success)
	assert.Equal(t, "READ_ERROR", results[2].Error.Code)

	assert.True(t, results[3].Success)
	assert.Equal(t, 2, provider.CallCount())
}

func TestOptimizeFiles_Stdin(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(fixtures.ValidReplyJSON)
	results := optimizeFiles(context.Background(), newMockOptimizer(provider),
		[]string{"-"}, strings.NewReader(fixtures.SampleRequestJSON), 1, zap.NewNop())

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestOptimizeFiles_ConcurrencyLimit(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 6; i++ {
		files = append(files, writeFile(t, dir, fmt.Sprintf("req%d.json", i), fixtures.SampleRequestJSON))
	}

	var inflight, peak atomic.Int32
	provider := mocks.NewMockProvider().WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return fixtures.ChatResponse(fixtures.ValidReplyJSON), nil
	})

	results := optimizeFiles(context.Background(), newMockOptimizer(provider), files, nil, 2, zap.NewNop())
	for _, r := range results {
		assert.True(t, r.Success, r.File)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	err := writeResults(&buf, []fileResult{{File: "a", Success: true}})
	require.NoError(t, err)

	var decoded []fileResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 1)

	buf.Reset()
	err = writeResults(&buf, []fileResult{{File: "a", Success: true}, {File: "b"}})
	assert.ErrorIs(t, err, errSomeFailed)
	assert.Contains(t, buf.String(), `"file": "b"`)
}

// fakeOpenAI 模拟 OpenAI 兼容的 chat completions 接口
func fakeOpenAI(t *testing.T, content string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "local-model",
			"choices": []any{map[string]any{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": content}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestOptimizeCommand_EndToEnd(t *testing.T) {
	upstream := fakeOpenAI(t, `{"optimizedSequence":["q2","q1"],"rationale":"short first"}`)
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", `
llm:
  provider: openai-compat
  base_url: `+upstream.URL+`
  model: local-model
log:
  level: error
`)
	req := writeFile(t, dir, "req.json", fixtures.SampleRequestJSON)

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"optimize", "--config", cfgPath, "-f", req})
	require.NoError(t, cmd.Execute())

	var results []fileResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results), out.String())
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, []string{"q2", "q1"}, results[0].Data.OptimizedSequence)
}

func TestOptimizeCommand_StrictFlag(t *testing.T) {
	upstream := fakeOpenAI(t, `{"optimizedSequence":["q2"],"rationale":"partial"}`)
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "llm:\n  provider: openai-compat\n  base_url: "+upstream.URL+"\nlog:\n  level: error\n")
	req := writeFile(t, dir, "req.json", fixtures.SampleRequestJSON)

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"optimize", "-c", cfgPath, "-f", req, "--strict"})
	err := cmd.Execute()
	assert.ErrorIs(t, err, errSomeFailed)

	var results []fileResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	assert.Equal(t, "reply", results[0].Error.Side)
}

func TestOptimizeCommand_RequiresFile(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"optimize"})
	assert.Error(t, cmd.Execute())
}
