package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/formflow/formflow/internal/ctxkeys"
	"github.com/formflow/formflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// 🧪 响应辅助函数测试
// =============================================================================

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"k":"v"}`, w.Body.String())
}

func TestWriteSuccess_CarriesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ctxkeys.WithRequestID(r.Context(), "req-42"))

	WriteSuccess(w, r, map[string]int{"n": 1})

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        *types.Error
		wantStatus int
		wantSide   string
	}{
		{
			name:       "explicit status wins",
			err:        types.NewError(types.ErrInvalidRequest, "bad").WithHTTPStatus(http.StatusRequestEntityTooLarge),
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "request side",
			err:        types.NewError(types.ErrInvalidRequest, "bad").WithSide("request"),
			wantStatus: http.StatusBadRequest,
			wantSide:   "request",
		},
		{
			name:       "reply side",
			err:        types.NewError(types.ErrInvalidReply, "bad reply").WithSide("reply"),
			wantStatus: http.StatusBadGateway,
			wantSide:   "reply",
		},
		{
			name:       "provider unavailable",
			err:        types.NewError(types.ErrProviderUnavailable, "down").WithRetryable(true).WithCause(errors.New("dial")),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			WriteError(w, r, tt.err, zaptest.NewLogger(t))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.err.Code), resp.Error.Code)
			assert.Equal(t, tt.err.Message, resp.Error.Message)
			assert.Equal(t, tt.wantSide, resp.Error.Side)
			assert.Equal(t, tt.err.Retryable, resp.Error.Retryable)
			assert.NotContains(t, w.Body.String(), "dial", "cause must not leak")
		})
	}
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := map[types.ErrorCode]int{
		types.ErrInvalidRequest:      http.StatusBadRequest,
		types.ErrUnauthorized:        http.StatusUnauthorized,
		types.ErrMethodNotAllowed:    http.StatusMethodNotAllowed,
		types.ErrRateLimited:         http.StatusTooManyRequests,
		types.ErrInvalidReply:        http.StatusBadGateway,
		types.ErrEmptyReply:          http.StatusBadGateway,
		types.ErrMalformedReply:      http.StatusBadGateway,
		types.ErrUpstreamTimeout:     http.StatusGatewayTimeout,
		types.ErrProviderUnavailable: http.StatusServiceUnavailable,
		types.ErrServiceUnavailable:  http.StatusServiceUnavailable,
		types.ErrInternalError:       http.StatusInternalServerError,
		types.ErrorCode("UNKNOWN"):   http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, mapErrorCodeToHTTPStatus(code), code)
	}
}

// =============================================================================
// 🧪 请求验证测试
// =============================================================================

func TestReadBody(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		limit      int64
		wantOK     bool
		wantStatus int
	}{
		{name: "ok", body: `{"a":1}`, limit: 64, wantOK: true},
		{name: "empty", body: "", limit: 64, wantStatus: http.StatusBadRequest},
		{name: "too large", body: strings.Repeat("x", 65), limit: 64, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "default limit", body: `{}`, limit: 0, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			body, ok := ReadBody(w, r, tt.limit, zap.NewNop())
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.body, string(body))
				return
			}
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, string(types.ErrInvalidRequest), decodeResponse(t, w).Error.Code)
		})
	}
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"Application/JSON", true},
		{"text/plain", false},
		{"multipart/form-data; boundary=x", false},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			assert.Equal(t, tt.want, ValidateContentType(w, r, nil))
			if !tt.want {
				assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
			}
		})
	}
}

// =============================================================================
// 🧪 ResponseWriter 测试
// =============================================================================

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // ignored
	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, int64(5), rw.BytesWritten)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Same(t, rw, NewResponseWriter(rw))
	assert.Equal(t, rec, rw.Unwrap())
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	_, _ = rw.Write([]byte("x"))
	assert.True(t, rw.Written)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
}
