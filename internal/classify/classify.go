package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Category is one entry of the failure taxonomy.
type Category string

const (
	CategoryNetwork     Category = "network"
	CategoryHTTPClient  Category = "http_client"
	CategoryHTTPServer  Category = "http_server"
	CategoryParsing     Category = "parsing"
	CategoryValidation  Category = "validation"
	CategoryExternalAPI Category = "external_api"
	CategoryRateLimit   Category = "rate_limit"
	CategoryPermanent   Category = "permanent"
	CategoryUnknown     Category = "unknown"
)

// Sentinel markers stage implementations wrap their failures with.
var (
	ErrNetwork     = errors.New("network error")
	ErrParsing     = errors.New("parsing error")
	ErrValidation  = errors.New("validation error")
	ErrExternalAPI = errors.New("external api error")
	ErrRateLimit   = errors.New("rate limited")
	ErrPermanent   = errors.New("permanent failure")
	ErrNotFound    = errors.New("not found")
)

// StatusError carries an HTTP status code through the error chain so the
// classifier can route on it without any transport knowledge in callers.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("unexpected status %d", e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalAPI
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an opaque failure to its taxonomy category.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	switch {
	case errors.Is(err, ErrPermanent), errors.Is(err, ErrNotFound):
		return CategoryPermanent
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrParsing):
		return CategoryParsing
	case errors.Is(err, ErrRateLimit):
		return CategoryRateLimit
	case errors.Is(err, ErrNetwork):
		return CategoryNetwork
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryNetwork
	}
	var jsonSyntax *json.SyntaxError
	var jsonType *json.UnmarshalTypeError
	if errors.As(err, &jsonSyntax) || errors.As(err, &jsonType) {
		return CategoryParsing
	}

	if errors.Is(err, ErrExternalAPI) {
		return CategoryExternalAPI
	}

	// Last-ditch string heuristics for errors produced outside our control.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection reset"):
		return CategoryNetwork
	case strings.Contains(msg, "too many requests"):
		return CategoryRateLimit
	}

	return CategoryUnknown
}

func classifyStatus(code int) Category {
	switch {
	case code == http.StatusTooManyRequests:
		return CategoryRateLimit
	case code == http.StatusNotFound,
		code == http.StatusForbidden,
		code == http.StatusGone,
		code == http.StatusUnauthorized:
		return CategoryPermanent
	case code >= 500:
		return CategoryHTTPServer
	case code >= 400:
		return CategoryHTTPClient
	default:
		return CategoryUnknown
	}
}

// IsPermanent reports whether a failure terminates the pipeline run: the
// error can never succeed on another automated pass over the same inputs.
func IsPermanent(err error) bool {
	switch Classify(err) {
	case CategoryPermanent, CategoryValidation, CategoryParsing:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a failure is worth another automated attempt,
// by cascading to the next stage. Unknown failures are retryable once; the
// caller enforces the once.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case CategoryNetwork, CategoryHTTPServer, CategoryRateLimit, CategoryExternalAPI, CategoryUnknown:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}
