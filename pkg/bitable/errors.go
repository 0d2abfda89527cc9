package bitable

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/bitable-client/internal/constants"
)

// APIError is a non-zero envelope code.
type APIError struct {
	Code int    `json:"code" yaml:"code"`
	Msg  string `json:"msg"  yaml:"msg"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("feishu: %s (code: %d)", e.Msg, e.Code)
}

// TransportError is a non-2xx HTTP status.
type TransportError struct {
	StatusCode int
	Body       []byte
	// Envelope is set when the error body itself was a Feishu envelope.
	Envelope *Envelope
}

// NewTransportError builds a TransportError, parsing the body as an envelope when possible.
func NewTransportError(statusCode int, body []byte) *TransportError {
	transportErr := &TransportError{StatusCode: statusCode, Body: body}

	var env Envelope
	if json.Unmarshal(body, &env) == nil && env.Code != 0 {
		transportErr.Envelope = &env
	}

	return transportErr
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Envelope != nil {
		return fmt.Sprintf("HTTP error: status %d: %s (code: %d)", e.StatusCode, e.Envelope.Msg, e.Envelope.Code)
	}

	return fmt.Sprintf("HTTP error: status %d", e.StatusCode)
}

// Unwrap exposes the envelope failure so IsUnauthorized and friends see it.
func (e *TransportError) Unwrap() error {
	if e.Envelope == nil {
		return nil
	}

	return e.Envelope.Err()
}

// EmptyResponseError is a successful status with a blank body.
type EmptyResponseError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("empty response from server (status %d)", e.StatusCode)
}

// DecodeError is a body that is not valid JSON for the expected shape.
type DecodeError struct {
	Body []byte
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid JSON response: %v", e.Err)
}

// Unwrap returns the underlying json error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Static errors that can be wrapped with context.
var (
	ErrConfigRequired     = errors.New("config is required")
	ErrAppIDRequired      = errors.New("app ID is required")
	ErrAppSecretRequired  = errors.New("app secret is required")
	ErrAppTokenRequired   = errors.New("app token is required")
	ErrTableIDRequired    = errors.New("table ID is required")
	ErrRecordIDRequired   = errors.New("record ID is required")
	ErrInvalidFilter      = errors.New("invalid search filter")
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrMissingData        = errors.New("response has no data")
	ErrMissingToken       = errors.New("token response has no tenant_access_token")
	ErrCursorStalled      = errors.New("server returned a page token that was already consumed")
	ErrPageLimitExceeded  = errors.New("page limit exceeded")
	ErrNoMoreItems        = errors.New("no more items")
	ErrStaticTokenRefresh = errors.New("static token cannot be refreshed")
)

// Kind classifies a failure so callers can tell causes apart.
type Kind int

// Failure kinds.
const (
	KindNone Kind = iota
	KindTransport
	KindEmptyResponse
	KindDecode
	KindAPI
	KindValidation
	KindUnknown
)

var kindNames = []string{"none", "transport", "empty_response", "decode", "api", "validation", "unknown"}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "unknown"
}

var validationErrors = []error{
	ErrConfigRequired, ErrAppIDRequired, ErrAppSecretRequired, ErrAppTokenRequired,
	ErrTableIDRequired, ErrRecordIDRequired, ErrInvalidFilter, ErrInvalidPageSize,
}

// KindOf reports the kind of err. Transport errors carrying an envelope count as transport.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var (
		transportErr *TransportError
		emptyErr     *EmptyResponseError
		decodeErr    *DecodeError
		apiErr       *APIError
	)

	switch {
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &emptyErr):
		return KindEmptyResponse
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.As(err, &apiErr):
		return KindAPI
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return KindValidation
		}
	}

	return KindUnknown
}

func apiCode(err error) (int, bool) {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}

	return 0, false
}

// IsNotFound checks if the error is a missing base, table or record.
func IsNotFound(err error) bool {
	code, ok := apiCode(err)
	if !ok {
		return false
	}

	switch code {
	case constants.CodeAppTokenNotFound, constants.CodeTableNotFound, constants.CodeRecordNotFound:
		return true
	}

	return false
}

// IsUnauthorized checks if the error is a missing or rejected tenant token.
func IsUnauthorized(err error) bool {
	code, ok := apiCode(err)
	if ok && (code == constants.CodeTenantTokenInvalid || code == constants.CodeTokenMissing) {
		return true
	}

	transportErr := &TransportError{}

	return errors.As(err, &transportErr) && transportErr.StatusCode == 401
}

// IsForbidden checks if the app lacks permission.
func IsForbidden(err error) bool {
	code, ok := apiCode(err)

	return ok && code == constants.CodeForbidden
}

// IsRateLimited checks if the request was throttled.
func IsRateLimited(err error) bool {
	code, ok := apiCode(err)
	if ok && code == constants.CodeTooManyRequests {
		return true
	}

	transportErr := &TransportError{}

	return errors.As(err, &transportErr) && transportErr.StatusCode == 429
}

// IsBlank reports whether a response body holds only whitespace.
func IsBlank(body []byte) bool {
	return strings.TrimSpace(string(body)) == ""
}
