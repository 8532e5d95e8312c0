package optimizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
)

// PromptText is a rendered instruction document.
type PromptText string

const promptSource = `You are an AI form optimization expert. Analyze the provided user responses for form ID {{.FormID}} and suggest an optimized question sequence to maximize completion rates.

Questions: {{.Questions}}

Responses:
{{- range .Records}}
  - {{.}}
{{- else}}
  (no responses recorded)
{{- end}}

Based on these responses, provide an optimized question sequence (an array of question IDs) and a rationale explaining why this sequence is expected to improve completion rates. The sequence should include all of the same questions as the original form.

Ensure your output adheres to the schema, and is a valid JSON object.

Optimized Question Sequence:`

var promptTemplate = template.Must(template.New("optimize").Option("missingkey=error").Parse(promptSource))

type promptData struct {
	FormID    string
	Questions string
	Records   []string
}

// Compile renders the prompt for req. It is a pure function: the same request
// always yields byte-identical text. Every record is rendered on its own line;
// nothing is truncated or sampled.
func Compile(req *OptimizationRequest) PromptText {
	data := promptData{Questions: "(none observed)"}
	if req != nil {
		data.FormID = formatKey(req.FormID)
		if ids := QuestionIDs(req); len(ids) > 0 {
			quoted := make([]string, len(ids))
			for i, id := range ids {
				quoted[i] = formatKey(id)
			}
			data.Questions = strings.Join(quoted, ", ")
		}
		data.Records = make([]string, len(req.Responses))
		for i, rec := range req.Responses {
			data.Records[i] = FormatRecord(rec)
		}
	}

	var buf bytes.Buffer
	// The data holds only strings, so execution cannot fail.
	if err := promptTemplate.Execute(&buf, data); err != nil {
		panic(fmt.Sprintf("optimizer: prompt template: %v", err))
	}
	return PromptText(buf.String())
}

// FormatRecord renders one record as {key: value, ...} with keys sorted.
func FormatRecord(rec ResponseRecord) string {
	keys := sortedKeys(rec)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = formatKey(k) + ": " + FormatAnswer(rec[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

var bareKey = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// formatKey leaves simple identifiers bare and JSON-quotes anything else, so
// keys and form IDs with separators or line breaks cannot change the layout.
func formatKey(k string) string {
	if bareKey.MatchString(k) {
		return k
	}
	return quoteString(k)
}

// FormatAnswer is the total, deterministic serialization of an answer value:
// nil is null, strings are JSON-quoted, numbers use their shortest exact form.
func FormatAnswer(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case string:
		return quoteString(x)
	case json.Number:
		return x.String()
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(data)
	}
}

// quoteString JSON-quotes s without HTML escaping.
func quoteString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
