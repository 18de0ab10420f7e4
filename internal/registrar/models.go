package registrar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Suffixes checked by CheckAvailability, in request order.
var Suffixes = []string{"co.uk", "com", "org", "org.uk", "uk"}

var (
	ErrRegistrarFailed = errors.New("registrar_failed")
	ErrInvalidDomain   = errors.New("invalid_domain")
	ErrInvalidConfig   = errors.New("registrar_invalid_config")
)

// Registrant is the customer record created at the registrar.
type Registrant struct {
	Name        string `json:"name" form:"name"`
	Company     string `json:"company,omitempty" form:"company"`
	Email       string `json:"email" form:"email"`
	Username    string `json:"username" form:"username"`
	Password    string `json:"password" form:"password"`
	Telephone   string `json:"telephone" form:"telephone"`
	Address1    string `json:"address_line_1" form:"address_line_1"`
	Address2    string `json:"address_line_2,omitempty" form:"address_line_2"`
	City        string `json:"city" form:"city"`
	State       string `json:"state,omitempty" form:"state"`
	CountryCode string `json:"country_code" form:"country_code"`
	Zip         string `json:"zip" form:"zip"`
}

// Customer is the registrar's view of a created registrant.
type Customer struct {
	ID       string `json:"customer_id"`
	Username string `json:"username"`
}

// response is the envelope every registrar reply is wrapped in.
type response struct {
	Status           bool            `json:"status"`
	Data             json.RawMessage `json:"data"`
	ErrorMessage     string          `json:"error_message"`
	ValidationErrors json.RawMessage `json:"validation_errors"`
}

func (r response) failureMessage() string {
	if msg := strings.TrimSpace(r.ErrorMessage); msg != "" {
		return msg
	}
	if msg := flattenValidation(r.ValidationErrors); msg != "" {
		return msg
	}
	return "registrar request failed"
}

// orderData is the data block returned for domain and email orders.
type orderData struct {
	ID     json.RawMessage `json:"id"`
	Status statusCode      `json:"status"`
}

// statusCode accepts numbers, numeric strings and {"code": n} objects.
type statusCode int

func (s *statusCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			Code statusCode `json:"code"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*s = obj.Code
		return nil
	}
	n, err := strconv.Atoi(strings.Trim(string(b), `"`))
	if err != nil {
		return fmt.Errorf("invalid status code %s", string(b))
	}
	*s = statusCode(n)
	return nil
}

// accepted reports an in-progress (1) or completed (2) order.
func (s statusCode) accepted() bool {
	return s == 1 || s == 2
}

// Result is the {status, error} outcome reported for registration calls.
type Result struct {
	Status bool   `json:"status"`
	Error  string `json:"error"`
}

// ResultOf folds err into a Result.
func ResultOf(err error) Result {
	if err == nil {
		return Result{Status: true}
	}
	return Result{Status: false, Error: err.Error()}
}

// Error is a failed registrar call. Message is safe to show to the buyer.
type Error struct {
	Operation  string
	Message    string
	StatusCode int
	cause      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrRegistrarFailed, e.cause}
	}
	return []error{ErrRegistrarFailed}
}

// EmailHostingError reports that the domain order went through but the
// follow-up email hosting order did not.
type EmailHostingError struct {
	Domain string
	Cause  error
}

func (e *EmailHostingError) Error() string {
	return fmt.Sprintf("Domain %s registered but email hosting failed: %v", e.Domain, e.Cause)
}

func (e *EmailHostingError) Unwrap() error {
	return e.Cause
}

func flattenValidation(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var byField map[string][]string
	if err := json.Unmarshal(raw, &byField); err == nil {
		fields := make([]string, 0, len(byField))
		for field := range byField {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, field+": "+strings.Join(byField[field], ", "))
		}
		return strings.Join(parts, "; ")
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return string(raw)
}
