package breach

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrTokenRequest is returned when the OAuth token could not be obtained.
	// It fails the whole batch.
	ErrTokenRequest = errors.New("token request failed")
	// ErrTransport marks an incident lookup that never got an HTTP response.
	ErrTransport = errors.New("error executing HTTP request")
	// ErrUnexpectedStatus marks a status code outside the set the API is known to return.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrAuth is the API's way of saying the bearer token was rejected (HTTP 500).
	ErrAuth = errors.New("api key is incorrect")
	// ErrDecode marks a 200 response whose body is not JSON.
	ErrDecode = errors.New("response body is not valid JSON")
	// ErrUnsupportedEntity is returned for entity types other than domain and email.
	ErrUnsupportedEntity = errors.New("unsupported entity type")
)

// Error codes carried in ErrorObject.Code.
const (
	CodeTokenRequest      = "BREACH_TOKEN_REQUEST"
	CodeTransport         = "BREACH_TRANSPORT"
	CodeUnexpectedStatus  = "BREACH_UNEXPECTED_STATUS"
	CodeAuth              = "BREACH_AUTH"
	CodeDecode            = "BREACH_DECODE"
	CodeUnsupportedEntity = "BREACH_UNSUPPORTED_ENTITY"
	CodeInternal          = "BREACH_INTERNAL"
)

// ErrorPayload is the structured error surfaced to callers when a batch fails.
type ErrorPayload struct {
	Errors []ErrorObject `json:"errors"`
}

type ErrorObject struct {
	Detail string         `json:"detail"`
	Status string         `json:"status,omitempty"`
	Title  string         `json:"title"`
	Code   string         `json:"code"`
	Source *ErrorSource   `json:"source,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

type ErrorSource struct {
	Pointer string `json:"pointer"`
}

// APIError is the concrete error for every batch-fatal failure raised by this package.
// Kind is one of the sentinel errors above and is matched by errors.Is.
type APIError struct {
	Kind       error
	StatusCode int
	Payload    ErrorPayload
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// PayloadFor converts any error returned by a lookup into the payload shown to callers.
func PayloadFor(err error) ErrorPayload {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Payload
	}
	return newPayload(err.Error(), "", 0, CodeInternal, "Lookup failed", nil)
}

func newPayload(detail, pointer string, status int, code, title string, meta map[string]any) ErrorPayload {
	obj := ErrorObject{
		Detail: detail,
		Title:  title,
		Code:   code,
	}
	if status != 0 {
		obj.Status = strconv.Itoa(status)
	}
	if pointer != "" {
		obj.Source = &ErrorSource{Pointer: pointer}
	}
	if len(meta) > 0 {
		obj.Meta = meta
	}
	return ErrorPayload{Errors: []ErrorObject{obj}}
}

// bodyMeta keeps JSON bodies as JSON inside error metadata and falls back to text.
func bodyMeta(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
