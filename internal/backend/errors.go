package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	dErrors "milkadmin/pkg/domain-errors"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindServer      Kind = "server"
	KindUnknown     Kind = "unknown"
	KindUnavailable Kind = "unavailable"
)

const (
	fallbackMessage    = "Something unexpected went wrong"
	unavailableMessage = "The shop backend is unreachable"
)

// ErrSchema marks a 2xx response whose body does not match the expected schema.
var ErrSchema = errors.New("response does not match schema")

// ErrCircuitOpen is returned without contacting the backend while the breaker is open.
var ErrCircuitOpen = errors.New("backend circuit open")

// APIError is the structured error every failed call returns.
type APIError struct {
	Kind        Kind
	Status      int
	Method      string
	Path        string
	Title       string
	FieldErrors map[string][]string
	Err         error
}

func (e *APIError) Error() string {
	msg := e.Title
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("backend %s %s: %s (%d): %s", e.Method, e.Path, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("backend %s %s: %s: %s", e.Method, e.Path, e.Kind, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Messages returns what the operator is shown: every field message for a
// validation failure carrying field errors, otherwise the title.
func (e *APIError) Messages() []string {
	switch e.Kind {
	case KindValidation:
		if len(e.FieldErrors) > 0 {
			return flattenFields(e.FieldErrors)
		}
		return []string{e.titleOr(fallbackMessage)}
	case KindAuth, KindNotFound, KindServer:
		return []string{e.titleOr(fallbackMessage)}
	case KindUnavailable:
		return []string{unavailableMessage}
	default:
		return []string{fallbackMessage}
	}
}

func (e *APIError) titleOr(fallback string) string {
	if e.Title != "" {
		return e.Title
	}
	return fallback
}

// KindOf returns the Kind of err, or "" when err is not an *APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func classify(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusInternalServerError:
		return KindServer
	default:
		return KindUnknown
	}
}

// errorBody is the shape of backend error responses. errors values are
// either a single message or a list.
type errorBody struct {
	Title   string                     `json:"title"`
	Message string                     `json:"message"`
	Error   string                     `json:"error"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

func newStatusError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Kind:   classify(status),
		Status: status,
		Method: method,
		Path:   path,
	}
	var eb errorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil {
		return apiErr
	}
	switch {
	case eb.Title != "":
		apiErr.Title = eb.Title
	case eb.Message != "":
		apiErr.Title = eb.Message
	default:
		apiErr.Title = eb.Error
	}
	if len(eb.Errors) > 0 {
		apiErr.FieldErrors = make(map[string][]string, len(eb.Errors))
		for field, raw := range eb.Errors {
			if msgs := decodeMessages(raw); len(msgs) > 0 {
				apiErr.FieldErrors[field] = msgs
			}
		}
	}
	return apiErr
}

func decodeMessages(raw json.RawMessage) []string {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		out := many[:0]
		for _, m := range many {
			if m != "" {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func flattenFields(fields map[string][]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, fields[k]...)
	}
	return out
}

// ToDomain converts a backend failure into the console's domain error so
// handlers can answer with the matching status.
func ToDomain(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	msg := apiErr.Messages()[0]
	var code dErrors.Code
	switch apiErr.Kind {
	case KindValidation:
		return &dErrors.Error{Code: dErrors.CodeValidation, Message: msg, Fields: apiErr.FieldErrors, Err: err}
	case KindAuth:
		code = dErrors.CodeUnauthorized
	case KindNotFound:
		code = dErrors.CodeNotFound
	case KindUnavailable:
		code = dErrors.CodeUnavailable
	default:
		code = dErrors.CodeUpstream
	}
	return &dErrors.Error{Code: code, Message: msg, Err: err}
}
