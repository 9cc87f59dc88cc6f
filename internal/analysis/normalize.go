package analysis

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Inference services return their payload in one of four shapes: a wrapper
// object whose "response" field is already structured, a wrapper whose
// "response" field is a string with embedded JSON, a bare string with
// embedded JSON, or a bare structured object. Normalization is an ordered
// chain of parse attempts; the first one that succeeds wins.

const previewLimit = 200

var bracedJSON = regexp.MustCompile(`(?s)\{.*\}`)

type parseAttempt func(raw json.RawMessage) (map[string]any, bool)

var parseChain = []parseAttempt{
	unwrapObject,
	unwrapEmbeddedJSON,
	extractEmbeddedJSON,
	parseBareObject,
}

// Normalize reduces a raw inference response to a flat object. The second
// return value is false when no supported shape matched; that is a failure
// signal, not an error.
func Normalize(raw json.RawMessage, logger *slog.Logger) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	for _, attempt := range parseChain {
		if obj, ok := attempt(raw); ok {
			return obj, true
		}
	}

	if logger != nil {
		logger.Warn("unexpected inference response shape", "preview", preview(raw))
	}
	return nil, false
}

// unwrapObject handles {"response": {...}}.
func unwrapObject(raw json.RawMessage) (map[string]any, bool) {
	var wrapper struct {
		Response map[string]any `json:"response"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	if len(wrapper.Response) == 0 {
		return nil, false
	}
	return wrapper.Response, true
}

// unwrapEmbeddedJSON handles {"response": "prose {\"k\":...} prose"}.
func unwrapEmbeddedJSON(raw json.RawMessage) (map[string]any, bool) {
	var wrapper struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	return parseBraced(wrapper.Response)
}

// extractEmbeddedJSON handles a bare JSON string with embedded JSON.
func extractEmbeddedJSON(raw json.RawMessage) (map[string]any, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		// Not a JSON string; the raw bytes may still carry braced JSON
		// inside prose (non-JSON payloads from misbehaving services).
		return parseBraced(string(raw))
	}
	return parseBraced(text)
}

// parseBareObject handles a payload that is already the structured object.
func parseBareObject(raw json.RawMessage) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	if len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

func parseBraced(text string) (map[string]any, bool) {
	match := bracedJSON.FindString(text)
	if match == "" {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(match), &obj); err != nil {
		return nil, false
	}
	if len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

// HasRequiredFields reports whether every named field exists and is
// non-empty on the normalized object. Callers gate on their own subset:
// the basic extractor needs summary/category/severity, the detailed one
// only the indicators field.
func HasRequiredFields(obj map[string]any, fields ...string) bool {
	if obj == nil {
		return false
	}

	for _, field := range fields {
		value, ok := obj[field]
		if !ok || value == nil {
			return false
		}
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return false
			}
		}
	}
	return true
}

func preview(raw json.RawMessage) string {
	s := string(raw)
	if len(s) > previewLimit {
		return s[:previewLimit] + "..."
	}
	return s
}
