// Package errors provides the structured error type shared by every
// component of the book-reconstruction engine.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// ErrorCode classifies the kinds of failure the core recognizes (spec §7).
type ErrorCode string

const (
	// ErrProtocolSequence is a SZSE channel sequence-number regression.
	ErrProtocolSequence ErrorCode = "PROTOCOL_SEQUENCE"
	// ErrBitWidthOverflow is a seqnum/price/quantity exceeding its budgeted width.
	ErrBitWidthOverflow ErrorCode = "BIT_WIDTH_OVERFLOW"
	// ErrPrecisionMismatch is a raw price not a multiple of the internal quantum.
	ErrPrecisionMismatch ErrorCode = "PRECISION_MISMATCH"
	// ErrMissingRegistryEntry is a cancel/trade referencing an order not on the book.
	ErrMissingRegistryEntry ErrorCode = "MISSING_REGISTRY_ENTRY"
	// ErrHoldingViolation is a holding-slot invariant violation.
	ErrHoldingViolation ErrorCode = "HOLDING_VIOLATION"
	// ErrReconciliationMismatch is a regenerated/exchange snapshot pair that never matched.
	ErrReconciliationMismatch ErrorCode = "RECONCILIATION_MISMATCH"
	// ErrIllegalBookState is any other bug-class invariant violation.
	ErrIllegalBookState ErrorCode = "ILLEGAL_BOOK_STATE"
	// ErrUnsupported marks functionality explicitly out of scope (§9 Open Questions).
	ErrUnsupported ErrorCode = "UNSUPPORTED"
)

// AxobError is a structured error carrying a code, detail map, and cause chain.
type AxobError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AxobError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *AxobError) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a detail key/value and returns the error for chaining.
func (e *AxobError) WithDetail(key string, value interface{}) *AxobError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an AxobError with the given code and message.
func New(code ErrorCode, message string) *AxobError {
	_, file, line, _ := runtime.Caller(1)
	return &AxobError{Code: code, Message: message, Timestamp: time.Now(), File: file, Line: line}
}

// Newf creates an AxobError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AxobError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message; nil in, nil out.
func Wrap(err error, code ErrorCode, message string) *AxobError {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &AxobError{Code: code, Message: message, Timestamp: time.Now(), File: file, Line: line, Cause: err}
}

// Is reports whether err's chain contains an AxobError with the given code.
func Is(err error, code ErrorCode) bool {
	var ae *AxobError
	if As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// As finds the first AxobError in err's chain and assigns it to target.
func As(err error, target **AxobError) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AxobError); ok {
		*target = ae
		return true
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return As(u.Unwrap(), target)
	}
	return false
}

// GetErrorCode extracts the ErrorCode from err's chain, or "" if none.
func GetErrorCode(err error) ErrorCode {
	var ae *AxobError
	if As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Fatal reports whether the error class requires the caller to stop
// advancing engine state rather than log-and-continue (spec §7).
func Fatal(err error) bool {
	switch GetErrorCode(err) {
	case ErrMissingRegistryEntry, ErrProtocolSequence:
		return true
	default:
		return false
	}
}
