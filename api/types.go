package api

import "github.com/formflow/formflow/optimizer"

// =============================================================================
// 📋 Form Optimization Types
// =============================================================================

// OptimizeFormRequest is the body accepted by POST /api/v1/forms/optimize.
// The handler validates the raw bytes, so this type only documents the shape.
type OptimizeFormRequest struct {
	FormID    string           `json:"formId"`
	Responses []map[string]any `json:"responses"`
}

// OptimizeFormResponse is the data payload of a successful optimization.
type OptimizeFormResponse struct {
	OptimizedSequence []string `json:"optimizedSequence"`
	Rationale         string   `json:"rationale"`
}

// NewOptimizeFormResponse copies a pipeline result into its wire form.
func NewOptimizeFormResponse(res *optimizer.OptimizationResult) OptimizeFormResponse {
	if res == nil {
		return OptimizeFormResponse{OptimizedSequence: []string{}}
	}
	seq := make([]string, len(res.OptimizedSequence))
	copy(seq, res.OptimizedSequence)
	return OptimizeFormResponse{OptimizedSequence: seq, Rationale: res.Rationale}
}

// FieldError is one field-level validation problem reported to the caller.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// FieldErrorsFrom extracts field errors from a pipeline error, if any.
func FieldErrorsFrom(err error) []FieldError {
	e, ok := optimizer.AsError(err)
	if !ok || len(e.Fields) == 0 {
		return nil
	}
	out := make([]FieldError, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = FieldError{Path: f.Path, Message: f.Message}
	}
	return out
}

// =============================================================================
// 🏷️ Build Information
// =============================================================================

// VersionInfo is the payload of GET /version and `formflow version`.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version,omitempty"`
}
