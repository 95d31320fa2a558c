// Package errors defines the stable error taxonomy for evaluation runs.
// Per-file and per-step anomalies are absorbed close to where they occur;
// only the codes below propagate to the batch driver, which uses them to
// decide between nulling a metric block and skipping an instance.
package errors

import "fmt"

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// CheckoutFailed indicates the repository could not be cloned or the
	// commit could not be checked out. Instance-level: the instance is
	// skipped with an error record.
	CheckoutFailed ErrorCode = "CHECKOUT_FAILED"
	// GoldMissing indicates no gold annotation exists for the instance id.
	GoldMissing ErrorCode = "GOLD_MISSING"
	// GoldInvalid indicates the gold annotation could not be parsed.
	GoldInvalid ErrorCode = "GOLD_INVALID"
	// NoContextExtracted indicates the trajectory carried no usable views.
	NoContextExtracted ErrorCode = "NO_CONTEXT_EXTRACTED"
	// SpanInvalid indicates a malformed span (start > end, bad coordinates).
	// Granularity-level: the offending granularity is nulled, not the record.
	SpanInvalid ErrorCode = "SPAN_INVALID"
	// FileUnparseable indicates symbol extraction failed for a file. The
	// file is excluded from symbol-granularity metrics only.
	FileUnparseable ErrorCode = "FILE_UNPARSEABLE"
	// FormatUnknown indicates no trajectory extractor recognizes the input.
	FormatUnknown ErrorCode = "FORMAT_UNKNOWN"
	// IndexMissing indicates a configured SCIP index was not found.
	IndexMissing ErrorCode = "INDEX_MISSING"
	// CacheUnavailable indicates the symbol cache store failed to open.
	CacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// InternalError indicates an unexpected failure.
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// EvalError carries a stable code alongside the human-readable message and
// the wrapped cause.
type EvalError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates an EvalError with the given code and message.
func New(code ErrorCode, message string) *EvalError {
	return &EvalError{Code: code, Message: message}
}

// Wrap creates an EvalError wrapping an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *EvalError {
	return &EvalError{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *EvalError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EvalError) Unwrap() error {
	return e.cause
}

// WithDetails attaches structured details to the error.
func (e *EvalError) WithDetails(details interface{}) *EvalError {
	e.Details = details
	return e
}

// CodeOf extracts the error code from err, or InternalError when err carries
// no EvalError in its chain.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if ee, ok := err.(*EvalError); ok {
			return ee.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return InternalError
}

// Is reports whether err's chain carries the given code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if ee, ok := err.(*EvalError); ok && ee.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
