package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of an analysis run.
type ErrorKind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown ErrorKind = iota
	// KindEngineUnavailable means a rule engine did not run or returned nothing.
	KindEngineUnavailable
	// KindMalformedRecord means a single engine record could not be parsed.
	KindMalformedRecord
	// KindPageHandle means the page or browser context is unusable.
	KindPageHandle
	// KindTimeout means a page task exceeded its allotted time.
	KindTimeout
	// KindValidation means a post-hoc structural check failed.
	KindValidation
	// KindOrchestration means the worker pool itself could not run.
	KindOrchestration
	// KindInvalidOptions means the run could not start because its options are malformed.
	KindInvalidOptions
	// KindCancelled means the page was never analyzed because the run was cancelled.
	KindCancelled
	// KindInvalidTarget means the page URL cannot be analyzed at all.
	KindInvalidTarget
)

func (k ErrorKind) String() string {
	switch k {
	case KindEngineUnavailable:
		return "engine_unavailable"
	case KindMalformedRecord:
		return "malformed_record"
	case KindPageHandle:
		return "page_handle"
	case KindTimeout:
		return "timeout"
	case KindValidation:
		return "validation"
	case KindOrchestration:
		return "orchestration"
	case KindInvalidOptions:
		return "invalid_options"
	case KindCancelled:
		return "cancelled"
	case KindInvalidTarget:
		return "invalid_target"
	default:
		return "unknown"
	}
}

// AnalysisError carries a kind, a message and the original cause.
type AnalysisError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// NewError builds an AnalysisError.
func NewError(kind ErrorKind, msg string, cause error) *AnalysisError {
	return &AnalysisError{Kind: kind, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first AnalysisError in err's chain.
func KindOf(err error) ErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether a failed page task may be attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindInvalidOptions, KindInvalidTarget, KindCancelled, KindValidation:
		return false
	default:
		return true
	}
}

var (
	ErrPageClosed  = errors.New("page handle is closed")
	ErrUnsupported = errors.New("operation not supported by this page handle")
)
