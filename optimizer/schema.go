package optimizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/formflow/formflow/types"
)

// ResponseRecord maps question IDs to one respondent's answers. Values are
// string, json.Number (or a Go numeric kind), bool or nil.
type ResponseRecord map[string]any

// OptimizationRequest is the validated input of the pipeline.
type OptimizationRequest struct {
	FormID    string           `json:"formId"`
	Responses []ResponseRecord `json:"responses"`
}

// OptimizationResult is the validated output of the pipeline.
type OptimizationResult struct {
	OptimizedSequence []string `json:"optimizedSequence"`
	Rationale         string   `json:"rationale"`
}

// =============================================================================
// Contracts
// =============================================================================

// RequestSchema describes the accepted request shape.
func RequestSchema() *types.JSONSchema {
	record := &types.JSONSchema{
		Type:        types.SchemaTypeObject,
		Description: "question ID to answer; answers are string, number, boolean or null",
	}
	return types.NewObjectSchema().
		AddProperty("formId", types.NewStringSchema().WithMinLength(1).WithDescription("opaque form identifier")).
		AddProperty("responses", types.NewArraySchema(record).WithDescription("previously collected response records")).
		AddRequired("formId", "responses")
}

// ResultSchema describes the reply shape the provider must emit. It is the
// output constraint sent with every invocation.
func ResultSchema() *types.JSONSchema {
	s := types.NewObjectSchema().
		AddProperty("optimizedSequence", types.NewArraySchema(types.NewStringSchema()).
			WithDescription("question IDs in the suggested order; include every question of the original form")).
		AddProperty("rationale", types.NewStringSchema().
			WithDescription("why this order is expected to improve completion rates")).
		AddRequired("optimizedSequence", "rationale").
		Closed()
	s.Title = "OptimizationResult"
	return s
}

// =============================================================================
// Request validation
// =============================================================================

// ValidateRequest decodes raw JSON and validates it as an OptimizationRequest.
// Numbers stay json.Number so no coercion happens. Unknown top-level fields are
// ignored.
func ValidateRequest(raw []byte) (*OptimizationRequest, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, requestInvalid([]FieldError{{Path: "$", Message: "invalid JSON: " + err.Error()}})
	}
	return ValidateRequestValue(v)
}

// ValidateRequestValue validates an already-decoded JSON value.
func ValidateRequestValue(v any) (*OptimizationRequest, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, requestInvalid([]FieldError{{Path: "$", Message: "must be a JSON object, got " + jsonKind(v)}})
	}

	var fields []FieldError
	req := &OptimizationRequest{}

	switch id, present := obj["formId"]; {
	case !present:
		fields = append(fields, FieldError{Path: "formId", Message: "is required"})
	default:
		s, ok := id.(string)
		switch {
		case !ok:
			fields = append(fields, FieldError{Path: "formId", Message: "must be a string, got " + jsonKind(id)})
		case s == "":
			fields = append(fields, FieldError{Path: "formId", Message: "must not be empty"})
		default:
			req.FormID = s
		}
	}

	switch rs, present := obj["responses"]; {
	case !present:
		fields = append(fields, FieldError{Path: "responses", Message: "is required"})
	default:
		list, ok := rs.([]any)
		if !ok {
			fields = append(fields, FieldError{Path: "responses", Message: "must be an array, got " + jsonKind(rs)})
			break
		}
		req.Responses = make([]ResponseRecord, 0, len(list))
		for i, item := range list {
			rec, ok := item.(map[string]any)
			if !ok {
				fields = append(fields, FieldError{
					Path:    fmt.Sprintf("responses[%d]", i),
					Message: "must be an object, got " + jsonKind(item),
				})
				continue
			}
			fields = append(fields, checkRecord(i, rec)...)
			req.Responses = append(req.Responses, ResponseRecord(rec))
		}
	}

	if len(fields) > 0 {
		return nil, requestInvalid(fields)
	}
	return req, nil
}

// Validate re-checks an already-typed request, for callers that build it in Go.
func (r *OptimizationRequest) Validate() error {
	if r == nil {
		return requestInvalid([]FieldError{{Path: "$", Message: "request is nil"}})
	}
	var fields []FieldError
	if r.FormID == "" {
		fields = append(fields, FieldError{Path: "formId", Message: "must not be empty"})
	}
	for i, rec := range r.Responses {
		if rec == nil {
			fields = append(fields, FieldError{Path: fmt.Sprintf("responses[%d]", i), Message: "must be an object, got null"})
			continue
		}
		fields = append(fields, checkRecord(i, rec)...)
	}
	if len(fields) > 0 {
		return requestInvalid(fields)
	}
	return nil
}

func checkRecord(i int, rec map[string]any) []FieldError {
	var fields []FieldError
	for _, key := range sortedKeys(rec) {
		if !isScalar(rec[key]) {
			fields = append(fields, FieldError{
				Path:    fmt.Sprintf("responses[%d].%s", i, key),
				Message: "must be a string, number, boolean or null, got " + jsonKind(rec[key]),
			})
		}
	}
	return fields
}

func isScalar(v any) bool {
	switch x := v.(type) {
	case json.Number:
		// Go callers can build any string as a json.Number; it is rendered verbatim.
		// Valid JSON starting with '-' or a digit is a single number literal.
		return x != "" && (x[0] == '-' || (x[0] >= '0' && x[0] <= '9')) && json.Valid([]byte(x))
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
	case float64:
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	default:
		return false
	}
}

// =============================================================================
// Reply validation
// =============================================================================

// ValidateResponse decodes a provider reply and validates it as an
// OptimizationResult. Every field-level problem is reported.
func ValidateResponse(raw []byte) (*OptimizationResult, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, replyInvalid("reply is not valid JSON", []FieldError{{Path: "$", Message: err.Error()}})
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, replyInvalid("reply does not match schema", []FieldError{{Path: "$", Message: "must be a JSON object, got " + jsonKind(v)}})
	}

	var fields []FieldError
	res := &OptimizationResult{}

	switch seq, present := obj["optimizedSequence"]; {
	case !present:
		fields = append(fields, FieldError{Path: "optimizedSequence", Message: "is required"})
	default:
		list, ok := seq.([]any)
		if !ok {
			fields = append(fields, FieldError{Path: "optimizedSequence", Message: "must be an array, got " + jsonKind(seq)})
			break
		}
		res.OptimizedSequence = make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				fields = append(fields, FieldError{
					Path:    fmt.Sprintf("optimizedSequence[%d]", i),
					Message: "must be a string, got " + jsonKind(item),
				})
				continue
			}
			res.OptimizedSequence = append(res.OptimizedSequence, s)
		}
	}

	switch r, present := obj["rationale"]; {
	case !present:
		fields = append(fields, FieldError{Path: "rationale", Message: "is required"})
	default:
		s, ok := r.(string)
		switch {
		case !ok:
			fields = append(fields, FieldError{Path: "rationale", Message: "must be a string, got " + jsonKind(r)})
		case strings.TrimSpace(s) == "":
			fields = append(fields, FieldError{Path: "rationale", Message: "must not be empty"})
		default:
			res.Rationale = s
		}
	}

	if len(fields) > 0 {
		return nil, replyInvalid("reply does not match schema", fields)
	}
	return res, nil
}

// =============================================================================
// Question set
// =============================================================================

// QuestionIDs returns the sorted union of question IDs across all records.
func QuestionIDs(req *OptimizationRequest) []string {
	if req == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, rec := range req.Responses {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for k := range seen {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids
}

// ValidateSequenceCoverage checks that the sequence is a permutation of
// QuestionIDs(req). It reports duplicates, unknown IDs and missing IDs as a
// reply-side validation error.
func ValidateSequenceCoverage(req *OptimizationRequest, res *OptimizationResult) error {
	if res == nil {
		return replyInvalid("reply is missing", nil)
	}
	known := make(map[string]bool)
	for _, id := range QuestionIDs(req) {
		known[id] = false
	}

	var fields []FieldError
	seen := make(map[string]bool, len(res.OptimizedSequence))
	for i, id := range res.OptimizedSequence {
		path := fmt.Sprintf("optimizedSequence[%d]", i)
		if seen[id] {
			fields = append(fields, FieldError{Path: path, Message: fmt.Sprintf("duplicate question ID %q", id)})
			continue
		}
		seen[id] = true
		if _, ok := known[id]; !ok {
			fields = append(fields, FieldError{Path: path, Message: fmt.Sprintf("unknown question ID %q", id)})
			continue
		}
		known[id] = true
	}
	for _, id := range QuestionIDs(req) {
		if !known[id] {
			fields = append(fields, FieldError{Path: "optimizedSequence", Message: fmt.Sprintf("missing question ID %q", id)})
		}
	}

	if len(fields) > 0 {
		return replyInvalid("sequence is not a permutation of the form's questions", fields)
	}
	return nil
}

// =============================================================================
// helpers
// =============================================================================

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
