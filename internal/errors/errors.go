// Package errors provides centralized error handling with category metadata
// so callers can distinguish transient store failures from logic faults.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryValidation      ErrorCategory = "validation"
	CategoryRedisConnection ErrorCategory = "redis-connection"
	CategoryTimeout         ErrorCategory = "timeout"
	CategoryConflict        ErrorCategory = "conflict"
	CategoryNotFound        ErrorCategory = "not-found"
	CategoryTracking        ErrorCategory = "tracking"
	CategoryExpiry          ErrorCategory = "expiry"
	CategoryEventBus        ErrorCategory = "event-bus"
	CategoryDatabase        ErrorCategory = "database"
	CategoryConfiguration   ErrorCategory = "configuration"
	CategoryState           ErrorCategory = "state"
	CategoryGeneric         ErrorCategory = "generic"
)

// ComponentUnknown is used when the component was not set by the caller.
const ComponentUnknown = "unknown"

// Sentinel errors for the normal negative results of the tracking API.
// Wrapped by EnhancedError, tested with errors.Is.
var (
	// ErrVehicleNotFound is returned when no active record exists for a plate.
	ErrVehicleNotFound = stderrors.New("vehicle not found")

	// ErrCameraNotFound is returned when no metadata exists for a camera.
	ErrCameraNotFound = stderrors.New("camera not found")

	// ErrTxConflictExhausted is returned when the optimistic retry cap was
	// reached without a successful commit. The store is unchanged.
	ErrTxConflictExhausted = stderrors.New("optimistic transaction retries exhausted")
)

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Category  ErrorCategory  // Error category for better grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	component string
	mu        sync.RWMutex
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking. Two enhanced errors match when their
// categories match; otherwise matching falls through to the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name set at build time.
func (ee *EnhancedError) GetComponent() string {
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetTimestamp returns when the error occurred
func (ee *EnhancedError) GetTimestamp() time.Time {
	return ee.Timestamp
}

// GetError returns the underlying error
func (ee *EnhancedError) GetError() error {
	return ee.Err
}

// GetMessage returns the error message
func (ee *EnhancedError) GetMessage() string {
	if ee.Err != nil {
		return ee.Err.Error()
	}
	return ""
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error with enhanced context
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Timing adds performance timing context
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context["operation"] = operation
	eb.context["duration_ms"] = duration.Milliseconds()
	return eb
}

// Build creates the EnhancedError
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Category == "" {
		ee.Category = CategoryGeneric
	}
	return ee
}

// IsRetryable reports whether the error represents a transient condition the
// caller may retry: a connectivity failure, a timeout, or conflict exhaustion.
func IsRetryable(err error) bool {
	var ee *EnhancedError
	if As(err, &ee) {
		switch ee.Category {
		case CategoryRedisConnection, CategoryTimeout, CategoryConflict:
			return true
		}
	}
	return false
}

// IsNotFound reports whether the error is a normal negative lookup result.
func IsNotFound(err error) bool {
	return Is(err, ErrVehicleNotFound) || Is(err, ErrCameraNotFound)
}

// Standard library compatibility wrappers so callers only import this package.

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
