package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
)

// topLevelKeys are checked, in order, before any field-level message.
var topLevelKeys = []string{"detail", "message", "error"}

// Payload is the message extracted from a remote error body.
type Payload struct {
	Code    string
	Message string
	Fields  map[string]string
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError whose Message is the first top-level or field-level
// message of the payload. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	payload := ExtractPayload(bodyBytes)
	if payload.Message == "" {
		return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, truncate(string(bodyBytes), 256))
	}

	return mapPayloadError(resp.StatusCode, payload)
}

func mapPayloadError(status int, p Payload) error {
	appErr := &apperrors.AppError{
		Code:    p.Code,
		Message: p.Message,
		Fields:  p.Fields,
		Status:  status,
	}

	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		appErr.Err = apperrors.ErrInvalidInput
		appErr.Status = http.StatusBadRequest
		appErr.Code = orDefault(p.Code, "INVALID_INPUT")
	case status == http.StatusUnauthorized:
		appErr.Err = apperrors.ErrUnauthorized
		appErr.Code = orDefault(p.Code, "UNAUTHORIZED")
	case status == http.StatusForbidden:
		appErr.Err = apperrors.ErrForbidden
		appErr.Code = orDefault(p.Code, "FORBIDDEN")
	case status == http.StatusNotFound:
		appErr.Err = apperrors.ErrNotFound
		appErr.Code = orDefault(p.Code, "NOT_FOUND")
	case status == http.StatusConflict:
		appErr.Err = apperrors.ErrConflict
		appErr.Code = orDefault(p.Code, "CONFLICT")
	case status == http.StatusTooManyRequests, status >= 500:
		appErr.Err = apperrors.ErrServiceUnavail
		appErr.Status = http.StatusServiceUnavailable
		appErr.Code = orDefault(p.Code, "SERVICE_UNAVAILABLE")
	default:
		appErr.Code = orDefault(p.Code, "REMOTE_ERROR")
	}

	return appErr
}

// ExtractPayload walks a JSON error body in document order. A string under
// detail, message or error wins (error may also be {"code","message"}).
// Otherwise the first field holding a string or a list of strings is used;
// a nested "errors" object is searched the same way.
func ExtractPayload(body []byte) Payload {
	pairs, ok := decodeOrdered(body)
	if !ok {
		return Payload{}
	}

	var p Payload
	for _, key := range topLevelKeys {
		raw, found := lookup(pairs, key)
		if !found {
			continue
		}
		if msg := firstString(raw); msg != "" {
			p.Message = msg
			break
		}
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Message != "" {
			p.Code = envelope.Code
			p.Message = envelope.Message
			break
		}
	}

	p.Fields = fieldMessages(pairs)
	if p.Message == "" {
		p.Message = firstFieldMessage(pairs)
	}
	return p
}

type pair struct {
	key   string
	value json.RawMessage
}

// decodeOrdered decodes a JSON object into its members, preserving order.
func decodeOrdered(body []byte) ([]pair, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, false
	}

	var pairs []pair
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		pairs = append(pairs, pair{key: key, value: value})
	}
	return pairs, true
}

func lookup(pairs []pair, key string) (json.RawMessage, bool) {
	for _, p := range pairs {
		if p.key == key {
			return p.value, true
		}
	}
	return nil, false
}

// firstString returns raw as a string, or the first element of a string list.
func firstString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		for _, item := range list {
			if item != "" {
				return item
			}
		}
	}
	return ""
}

func isTopLevel(key string) bool {
	for _, k := range topLevelKeys {
		if k == key {
			return true
		}
	}
	return false
}

func firstFieldMessage(pairs []pair) string {
	for _, p := range pairs {
		if p.key == "errors" {
			if nested, ok := decodeOrdered(p.value); ok {
				if msg := firstFieldMessage(nested); msg != "" {
					return msg
				}
			}
			if msg := firstString(p.value); msg != "" {
				return msg
			}
			continue
		}
		if isTopLevel(p.key) {
			continue
		}
		if msg := firstString(p.value); msg != "" {
			return msg
		}
	}
	return ""
}

func fieldMessages(pairs []pair) map[string]string {
	var fields map[string]string
	for _, p := range pairs {
		if isTopLevel(p.key) {
			continue
		}
		if p.key == "errors" {
			if nested, ok := decodeOrdered(p.value); ok {
				for k, v := range fieldMessages(nested) {
					if fields == nil {
						fields = make(map[string]string)
					}
					fields[k] = v
				}
			}
			continue
		}
		if msg := firstString(p.value); msg != "" {
			if fields == nil {
				fields = make(map[string]string)
			}
			fields[p.key] = msg
		}
	}
	return fields
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
