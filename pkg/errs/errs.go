// Package errs is the error taxonomy shared by every tabscope component.
package errs

import (
	"errors"
	"fmt"
)

// Category groups codes by the subsystem that produced them.
type Category string

const (
	CategoryBrowserConnection Category = "browser_connection"
	CategoryAIProcessing      Category = "ai_processing"
	CategoryDataConsistency   Category = "data_consistency"
	CategoryPerformance       Category = "performance"
	CategorySystem            Category = "system"
	CategoryUI                Category = "ui"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	// Browser connection (transport) failures. Retryable.
	CodeNotRunning          Code = "BROWSER_NOT_RUNNING"
	CodeTimeout             Code = "BROWSER_TIMEOUT"
	CodeIncompatibleVersion Code = "BROWSER_INCOMPATIBLE_VERSION"
	CodePermissionDenied    Code = "BROWSER_PERMISSION_DENIED"
	CodeInvalidResponse     Code = "BROWSER_INVALID_RESPONSE"
	// Not retryable: the connector lacks the primitive.
	CodeUnsupported Code = "BROWSER_UNSUPPORTED"
	// Not retryable: the remote call returned but the effect was not observed.
	CodeVerificationFailed Code = "VERIFICATION_FAILED"

	CodeFetchFailed            Code = "AI_FETCH_FAILED"
	CodeAnalysisTimeout        Code = "AI_ANALYSIS_TIMEOUT"
	CodeModelLoadFailed        Code = "AI_MODEL_LOAD_FAILED"
	CodeUnsupportedContentType Code = "AI_UNSUPPORTED_CONTENT_TYPE"
	CodeProcessingFailed       Code = "AI_PROCESSING_FAILED"

	CodePageConflict       Code = "PAGE_CONFLICT"
	CodeGroupRelation      Code = "GROUP_RELATION_INCONSISTENT"
	CodeHistoryCorruption  Code = "HISTORY_CORRUPTION"
	CodeIntegrityViolation Code = "INTEGRITY_VIOLATION"
	CodeNotFound           Code = "NOT_FOUND"

	CodeMemoryLimit     Code = "MEMORY_LIMIT"
	CodeProcessingLimit Code = "PROCESSING_LIMIT"
	CodeDiskLimit       Code = "DISK_LIMIT"
	CodeResourceLimit   Code = "RESOURCE_LIMIT"
	// Store busy/locked. Retryable.
	CodeStoreBusy Code = "STORE_BUSY"

	CodeConfiguration   Code = "CONFIGURATION"
	CodeIO              Code = "IO"
	CodeSerialization   Code = "SERIALIZATION"
	CodeNetwork         Code = "NETWORK"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnknown         Code = "UNKNOWN"

	CodeUI Code = "UI"
)

var categories = map[Code]Category{
	CodeNotRunning:          CategoryBrowserConnection,
	CodeTimeout:             CategoryBrowserConnection,
	CodeIncompatibleVersion: CategoryBrowserConnection,
	CodePermissionDenied:    CategoryBrowserConnection,
	CodeInvalidResponse:     CategoryBrowserConnection,
	CodeUnsupported:         CategoryBrowserConnection,
	CodeVerificationFailed:  CategoryBrowserConnection,

	CodeFetchFailed:            CategoryAIProcessing,
	CodeAnalysisTimeout:        CategoryAIProcessing,
	CodeModelLoadFailed:        CategoryAIProcessing,
	CodeUnsupportedContentType: CategoryAIProcessing,
	CodeProcessingFailed:       CategoryAIProcessing,

	CodePageConflict:       CategoryDataConsistency,
	CodeGroupRelation:      CategoryDataConsistency,
	CodeHistoryCorruption:  CategoryDataConsistency,
	CodeIntegrityViolation: CategoryDataConsistency,

	CodeMemoryLimit:     CategoryPerformance,
	CodeProcessingLimit: CategoryPerformance,
	CodeDiskLimit:       CategoryPerformance,
	CodeResourceLimit:   CategoryPerformance,
	CodeStoreBusy:       CategoryPerformance,

	CodeConfiguration: CategorySystem,
	CodeIO:            CategorySystem,
	CodeSerialization: CategorySystem,
	CodeNetwork:       CategorySystem,
	CodeUnknown:       CategorySystem,

	// Caller-facing: bad input and lookups of things that do not exist.
	CodeNotFound:        CategoryUI,
	CodeInvalidArgument: CategoryUI,
	CodeUI:              CategoryUI,
}

var transient = map[Code]bool{
	CodeNotRunning:          true,
	CodeTimeout:             true,
	CodeIncompatibleVersion: true,
	CodePermissionDenied:    true,
	CodeInvalidResponse:     true,
	CodeStoreBusy:           true,
}

// Error is a typed error with a stable code.
type Error struct {
	Category Category
	Code     Code
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Severity classifies the error for logging and alerting.
func (e *Error) Severity() Severity {
	return severityOf(e.Category)
}

// New builds an Error whose category is derived from code.
func New(code Code, msg string, cause error) *Error {
	cat, ok := categories[code]
	if !ok {
		cat = CategorySystem
	}
	return &Error{Category: cat, Code: code, Message: msg, Cause: cause}
}

// Newf is New with a formatted message and no cause.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, CodeUnknown for untyped errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeUnknown
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsTransient reports whether a bounded retry may succeed.
func IsTransient(err error) bool {
	return transient[CodeOf(err)]
}

// IsNotFound is a shorthand for Is(err, CodeNotFound).
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}
