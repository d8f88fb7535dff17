package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Response is the cached result of one request. Success and error payloads share
// the same type and the same cache slot; callers check IsError.
type Response struct {
	Key      string          // Cache key the response is stored under
	Data     json.RawMessage // Payload exactly as returned to callers
	ErrorMsg string          // Non-empty when the payload carries an error
}

// NewResponse wraps a success payload.
func NewResponse(key string, data []byte) *Response {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("null")
	}
	return &Response{Key: key, Data: json.RawMessage(data)}
}

// NewErrorResponse builds an error payload of the form {"error": msg}.
func NewErrorResponse(key string, msg string) *Response {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return &Response{Key: key, Data: data, ErrorMsg: msg}
}

// NewErrorResponseRaw builds an error payload around an error value that arrived
// as raw JSON (string or object).
func NewErrorResponseRaw(key string, raw json.RawMessage) *Response {
	data, _ := json.Marshal(map[string]json.RawMessage{"error": raw})
	return &Response{Key: key, Data: data, ErrorMsg: errorText(raw)}
}

// ParseBody interprets an HTTP response body: a flat JSON object with an
// optional error field, or any other valid JSON value.
func ParseBody(key string, body []byte) *Response {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		preview := string(trimmed)
		if len(preview) > 100 {
			preview = preview[:100]
		}
		return NewErrorResponse(key, fmt.Sprintf("malformed response body: %q", preview))
	}

	resp := NewResponse(key, trimmed)

	var fields map[string]json.RawMessage
	if json.Unmarshal(trimmed, &fields) != nil {
		return resp
	}
	if raw, ok := fields["error"]; ok && !IsNullJSON(raw) {
		resp.ErrorMsg = errorText(raw)
	}

	return resp
}

// IsError reports whether the response carries an error payload.
func (r *Response) IsError() bool {
	return r != nil && r.ErrorMsg != ""
}

// Err returns the error payload as an *APIError, or nil on success.
func (r *Response) Err() error {
	if !r.IsError() {
		return nil
	}
	return &APIError{CacheKey: r.Key, Message: r.ErrorMsg}
}

// Decode unmarshals the payload into v.
func (r *Response) Decode(v any) error {
	if r == nil {
		return fmt.Errorf("decode nil response")
	}
	err := json.Unmarshal(r.Data, v)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// MarshalJSON emits the payload unchanged.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r == nil || len(r.Data) == 0 {
		return []byte("null"), nil
	}
	return r.Data, nil
}

// IsNullJSON reports whether raw is absent or the JSON literal null.
func IsNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func errorText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return "unknown error"
		}
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "unknown error"
	}
	return text
}
