// Package errors defines the failure taxonomy shared by the fetch client, the
// quote store, the forecast engine and the CLI. Every error here is matchable
// with errors.Is / errors.As, and ExitCode maps the taxonomy to process exit
// codes.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sentinel errors.
var (
	// ErrTransport marks network failures and non-2xx upstream responses.
	ErrTransport = errors.New("upstream transport failure")

	// ErrStoreNotInitialized is returned when the store root is missing or
	// holds no partitions.
	ErrStoreNotInitialized = errors.New("quote store not initialized: no partitions found")

	// ErrEmptySeries is returned when a series has zero points after resampling.
	ErrEmptySeries = errors.New("series is empty")

	// ErrNoDataFetched is returned when an ingestion run produced no rows.
	ErrNoDataFetched = errors.New("no data fetched")
)

// ErrorType represents the classification of a fetch failure
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeBadRequest  ErrorType = "bad_request"
	ErrorTypeShape       ErrorType = "response_shape"
	ErrorTypeCanceled    ErrorType = "canceled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// UpstreamError is surfaced by the fetch client once every attempt has failed.
type UpstreamError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream request to %s failed after %d attempts (status %d): %v",
			e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

// Unwrap returns the underlying error
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransport for every upstream error, whatever the cause.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrTransport
}

// ResponseShapeError means the upstream payload could not be decoded or did not
// contain any of the requested assets.
type ResponseShapeError struct {
	Reason  string
	Missing []string
	Err     error
}

func (e *ResponseShapeError) Error() string {
	msg := "unexpected upstream response: " + e.Reason
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (missing: %s)", strings.Join(e.Missing, ","))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResponseShapeError) Unwrap() error {
	return e.Err
}

// NoDataForAssetError is returned when partitions exist but none of them hold
// rows for the requested asset.
type NoDataForAssetError struct {
	AssetID string
}

func (e *NoDataForAssetError) Error() string {
	return fmt.Sprintf("no data for asset %q", e.AssetID)
}

// UnknownAssetError is returned by the forecast engine in strict mode, or when
// the default asset is unknown as well.
type UnknownAssetError struct {
	AssetID string
	Err     error
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("unknown asset %q: %v", e.AssetID, e.Err)
}

func (e *UnknownAssetError) Unwrap() error {
	return e.Err
}

// IsNoData reports whether err means the store holds nothing usable for an asset.
func IsNoData(err error) bool {
	var nd *NoDataForAssetError
	return errors.As(err, &nd)
}

// Classify determines the error type of a fetch failure based on the error content
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var shape *ResponseShapeError
	if errors.As(err, &shape) {
		return ErrorTypeShape
	}

	if errors.Is(err, context.Canceled) {
		return ErrorTypeCanceled
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ErrorTypeTimeout
	}
	if netErr != nil {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "status 429"), strings.Contains(errStr, "too many requests"):
		return ErrorTypeRateLimit
	case strings.Contains(errStr, "status 5"):
		return ErrorTypeServerError
	case strings.Contains(errStr, "status 4"):
		return ErrorTypeBadRequest
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "no such host"):
		return ErrorTypeNetwork
	}

	return ErrorTypeUnknown
}

// LinearBackoff implements a simple linear backoff strategy: interval, then
// 2*interval, 3*interval and so on, capped at max when max is set.
type LinearBackoff struct {
	interval time.Duration
	max      time.Duration
	current  time.Duration
}

var _ backoff.BackOff = (*LinearBackoff)(nil)

// NewLinearBackoff creates a linear backoff. A zero max means uncapped.
func NewLinearBackoff(interval, max time.Duration) *LinearBackoff {
	return &LinearBackoff{interval: interval, max: max}
}

// NextBackOff returns the next backoff interval
func (lb *LinearBackoff) NextBackOff() time.Duration {
	lb.current += lb.interval

	if lb.max > 0 && lb.current > lb.max {
		lb.current = lb.max
	}

	return lb.current
}

// Reset resets the backoff to its initial state
func (lb *LinearBackoff) Reset() {
	lb.current = 0
}

// MaxWait returns the total sleep of a linear schedule over the given number of
// attempts: interval * (1 + 2 + ... + (attempts-1)).
func MaxWait(interval time.Duration, attempts int) time.Duration {
	if attempts < 2 {
		return 0
	}
	n := time.Duration(attempts - 1)
	return interval * n * (n + 1) / 2
}

// WrapError wraps an error with additional context
func WrapError(err error, component, operation, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s in %s.%s: %w", message, component, operation, err)
}

// Process exit codes
const (
	ExitSuccess    = 0
	ExitUsage      = 1
	ExitConfig     = 2
	ExitConnection = 3
	ExitData       = 4
	ExitInterrupt  = 130
)

// ExitCode maps an error from any layer to the CLI exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var shape *ResponseShapeError

	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupt
	case errors.Is(err, ErrTransport), errors.As(err, &shape):
		return ExitConnection
	default:
		// store, series and asset resolution failures
		return ExitData
	}
}
