package handlers

import (
	"net/http"

	"github.com/formflow/formflow/api"
	"github.com/formflow/formflow/optimizer"
	"github.com/formflow/formflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🧭 表单优化 Handler
// =============================================================================

// OptimizeHandler 表单问题顺序优化处理器
type OptimizeHandler struct {
	optimizer    optimizer.Optimizer
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewOptimizeHandler 创建优化处理器。maxBodyBytes <= 0 时使用 DefaultMaxBodyBytes。
func NewOptimizeHandler(opt optimizer.Optimizer, maxBodyBytes int64, logger *zap.Logger) *OptimizeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &OptimizeHandler{
		optimizer:    opt,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With(zap.String("handler", "optimize")),
	}
}

// HandleOptimize 处理表单优化请求
// @Summary 优化表单问题顺序
// @Description 根据历史提交记录建议新的问题顺序，并给出理由
// @Tags 表单
// @Accept json
// @Produce json
// @Param request body api.OptimizeFormRequest true "表单 ID 与历史提交"
// @Success 200 {object} Response{data=api.OptimizeFormResponse} "优化结果"
// @Failure 400 {object} Response "请求不符合 schema（side=request）"
// @Failure 502 {object} Response "模型回复无效（side=reply）、为空或不是 JSON 对象"
// @Failure 503 {object} Response "模型服务不可用或超时"
// @Router /api/v1/forms/optimize [post]
func (h *OptimizeHandler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteErrorMessage(w, r, http.StatusMethodNotAllowed, types.ErrMethodNotAllowed, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	body, ok := ReadBody(w, r, h.maxBodyBytes, h.logger)
	if !ok {
		return
	}

	result, err := h.optimizer.OptimizeForm(r.Context(), body)
	if err != nil {
		writeError(w, r, optimizer.ToTypesError(err), api.FieldErrorsFrom(err), h.logger)
		return
	}

	WriteSuccess(w, r, api.NewOptimizeFormResponse(result))
}
