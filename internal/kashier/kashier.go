// Package kashier implements the Kashier hosted-checkout signing and
// webhook verification protocol: an HMAC-SHA256 integrity hash over a
// canonical request string on the way out, and a sorted key=value
// canonical string verification on the way back in.
package kashier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Config carries the merchant credentials and environment flags for the
// gateway. It is constructed once at startup and injected wherever signing
// or verification happens; the kernel itself never reads the environment.
// APIKey and WebhookSecret are distinct values: the former signs outbound
// checkout requests, the latter authenticates inbound callbacks.
type Config struct {
	MerchantID      string
	APIKey          string
	WebhookSecret   string
	DefaultCurrency string
	Mode            string
	CheckoutBaseURL string
	WebhookURL      string
}

var (
	// ErrNotConfigured indicates a missing merchant id, API key, or webhook
	// secret. Operator-fixable, never client-fixable.
	ErrNotConfigured = errors.New("kashier: credentials not configured")
	// ErrMissingSignature indicates a callback that carried no signature in
	// either the query string or the body.
	ErrMissingSignature = errors.New("kashier: missing signature")
	// ErrInvalidSignature indicates the recomputed signature did not match
	// the one supplied by the gateway.
	ErrInvalidSignature = errors.New("kashier: invalid signature")
)

// ValidationError reports a missing or malformed caller-supplied field.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("kashier: invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// NormalizeAmount converts a caller-supplied amount (decimal string or JSON
// number) into the exact string form that will appear in the redirect query
// string. The signature covers this string representation, so formatting
// must be stable between signing and transmission: string inputs pass
// through untouched, numeric inputs are formatted without an exponent.
func NormalizeAmount(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", &ValidationError{Field: "amount", Reason: "is required"}
	case json.Number:
		return NormalizeAmount(v.String())
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", &ValidationError{Field: "amount", Reason: "is required"}
		}
		if strings.ContainsAny(trimmed, "eE") {
			return "", &ValidationError{Field: "amount", Reason: "scientific notation not allowed"}
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return "", &ValidationError{Field: "amount", Reason: "not a number"}
		}
		if parsed <= 0 {
			return "", &ValidationError{Field: "amount", Reason: "must be positive"}
		}
		return trimmed, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", &ValidationError{Field: "amount", Reason: "not finite"}
		}
		if v <= 0 {
			return "", &ValidationError{Field: "amount", Reason: "must be positive"}
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return NormalizeAmount(int64(v))
	case int64:
		if v <= 0 {
			return "", &ValidationError{Field: "amount", Reason: "must be positive"}
		}
		return strconv.FormatInt(v, 10), nil
	default:
		return "", &ValidationError{Field: "amount", Reason: fmt.Sprintf("unsupported type %T", value)}
	}
}
