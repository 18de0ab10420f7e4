package crm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMaxRetriesExceeded is returned once every attempt hit the rate limit.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrRejected marks a well-formed reply without a response field.
	ErrRejected = errors.New("crm_rejected")
	// ErrInvalidConfig is returned when no API key or base URL is set.
	ErrInvalidConfig = errors.New("crm_invalid_config")
)

// Envelope is the wrapper every Flowlu reply comes in. Success is signalled
// by the presence of Response.
type Envelope struct {
	Response json.RawMessage `json:"response"`
	Error    json.RawMessage `json:"error,omitempty"`

	raw []byte
}

func (e *Envelope) OK() bool {
	if e == nil {
		return false
	}
	trimmed := bytes.TrimSpace(e.Response)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte("false"))
}

// Decode unmarshals the response field into v.
func (e *Envelope) Decode(v any) error {
	if !e.OK() {
		return ErrRejected
	}
	return json.Unmarshal(e.Response, v)
}

// ErrorMessage returns the upstream error as text, whether it was sent as a
// string or an object.
func (e *Envelope) ErrorMessage() string {
	if e == nil {
		return ""
	}
	return errorText(e.Error)
}

// Body returns the raw upstream payload for logging.
func (e *Envelope) Body() string {
	if e == nil {
		return ""
	}
	return string(e.raw)
}

// UpstreamError is a non-successful HTTP exchange with the CRM.
type UpstreamError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("crm request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("crm request failed with status %d", e.StatusCode)
}

// RejectedError reports that the CRM answered without a response field.
type RejectedError struct {
	Resource string
	Body     string
}

func (e *RejectedError) Error() string {
	return e.Resource + " creation failed"
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

func errorText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Error != "" {
			return obj.Error
		}
	}
	return string(raw)
}

// flexInt accepts both JSON numbers and numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = flexInt(n)
	return nil
}
