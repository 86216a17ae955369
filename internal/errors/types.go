// Package errors provides the structured error taxonomy used across sitekit.
//
// Every recoverable failure in the include engine and the asset pipeline is
// described by a SiteError carrying a type, a stable code, and optional file
// context. Recoverable errors are turned into data (inline comments, failed
// pipeline results) by their owners; only unrecoverable ones are returned.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInclude    ErrorType = "include"
	ErrorTypePipeline   ErrorType = "pipeline"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeIncludeNotFound   = "ERR_INCLUDE_NOT_FOUND"
	ErrCodeIncludeRead       = "ERR_INCLUDE_READ"
	ErrCodeIncludeParams     = "ERR_INCLUDE_PARAMS"
	ErrCodeCyclicInclude     = "ERR_CYCLIC_INCLUDE"
	ErrCodeGuardDecode       = "ERR_GUARD_DECODE"
	ErrCodeItemFailed        = "ERR_ITEM_FAILED"
	ErrCodeItemTimeout       = "ERR_ITEM_TIMEOUT"
	ErrCodeItemPanic         = "ERR_ITEM_PANIC"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeUnknownResource   = "ERR_UNKNOWN_RESOURCE"
	ErrCodeUnknownHook       = "ERR_UNKNOWN_HOOK"
	ErrCodeCommandNotAllowed = "ERR_COMMAND_NOT_ALLOWED"
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodePathTraversal     = "ERR_PATH_TRAVERSAL"
	ErrCodeInvalidOrigin     = "ERR_INVALID_ORIGIN"
	ErrCodeInvalidURL        = "ERR_INVALID_URL"
)

// Sentinels for errors.Is comparisons. Is matches on Type and Code only, so
// errors built by the helpers below compare equal to these.
var (
	ErrCyclicInclude  = &SiteError{Type: ErrorTypeInclude, Code: ErrCodeCyclicInclude}
	ErrIncludeMissing = &SiteError{Type: ErrorTypeInclude, Code: ErrCodeIncludeNotFound}
	ErrItemTimeout    = &SiteError{Type: ErrorTypePipeline, Code: ErrCodeItemTimeout}
	ErrUnknownHook    = &SiteError{Type: ErrorTypeValidation, Code: ErrCodeUnknownHook}
)

// SiteError is a structured error type with context.
type SiteError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Line        int
	Recoverable bool
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SiteError) WithContext(key string, value interface{}) *SiteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *SiteError) WithLocation(filePath string, line int) *SiteError {
	e.FilePath = filePath
	e.Line = line

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewIncludeError creates an include resolution error.
func NewIncludeError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeInclude,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: code != ErrCodeCyclicInclude,
	}
}

// NewPipelineError creates a per-item pipeline error.
func NewPipelineError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypePipeline,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeSecurity
	}

	return false
}

// Helper functions for common errors

// ErrIncludeNotFound reports a missing include target.
func ErrIncludeNotFound(path string) *SiteError {
	return NewIncludeError(ErrCodeIncludeNotFound, "include not found", nil).
		WithLocation(path, 0)
}

// ErrIncludeRead reports an include target that exists but could not be read.
func ErrIncludeRead(path string, cause error) *SiteError {
	return NewIncludeError(ErrCodeIncludeRead, "include could not be read", cause).
		WithLocation(path, 0)
}

// ErrIncludeParams reports malformed JSON parameters on an include call.
func ErrIncludeParams(path string, cause error) *SiteError {
	return NewIncludeError(ErrCodeIncludeParams, "malformed include parameters", cause).
		WithLocation(path, 0)
}

// ErrCyclicIncludeChain reports an include chain that exceeded the depth limit.
func ErrCyclicIncludeChain(chain []string, maxDepth int) *SiteError {
	return NewIncludeError(
		ErrCodeCyclicInclude,
		fmt.Sprintf("include depth exceeded %d: %s", maxDepth, strings.Join(chain, " -> ")),
		nil,
	).WithContext("chain", chain).WithContext("max_depth", maxDepth)
}

// ErrGuardDecode reports a guarded payload that could not be decoded.
func ErrGuardDecode(cause error) *SiteError {
	return NewValidationError(ErrCodeGuardDecode, "guarded region payload is not valid base64").
		withCause(cause)
}

// ErrItemFailed wraps a per-item pipeline failure.
func ErrItemFailed(item string, cause error) *SiteError {
	return NewPipelineError(ErrCodeItemFailed, "item failed", cause).WithLocation(item, 0)
}

// ErrItemTimedOut reports an item whose operation overran its deadline.
func ErrItemTimedOut(item string, cause error) *SiteError {
	return NewPipelineError(ErrCodeItemTimeout, "item timed out", cause).WithLocation(item, 0)
}

// ErrItemPanicked reports an operation that panicked while processing an item.
func ErrItemPanicked(item string, value interface{}) *SiteError {
	return NewPipelineError(ErrCodeItemPanic, fmt.Sprintf("operation panicked: %v", value), nil).
		WithLocation(item, 0)
}

// ErrUnknownResource reports an unrecognised resource class.
func ErrUnknownResource(class string) *SiteError {
	return NewValidationError(ErrCodeUnknownResource, "unknown resource class: "+class)
}

// ErrUnknownHookName reports a plugin registered against an unknown hook.
func ErrUnknownHookName(plugin, hook string) *SiteError {
	return NewValidationError(ErrCodeUnknownHook, "unknown hook "+hook).
		WithContext("plugin", plugin)
}

// ErrCommandNotAllowed reports an external command outside the allowlist.
func ErrCommandNotAllowed(command string) *SiteError {
	return NewSecurityError(ErrCodeCommandNotAllowed, "command not allowed: "+command)
}

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *SiteError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

func (e *SiteError) withCause(cause error) *SiteError {
	e.Cause = cause
	return e
}
