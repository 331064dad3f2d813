// Package errors defines the run-time faults raised while executing tir
// programs.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryMemory     ErrorCategory = "MEMORY"
	CategoryBounds     ErrorCategory = "BOUNDS"
	CategoryArithmetic ErrorCategory = "ARITHMETIC"
	CategoryValidation ErrorCategory = "VALIDATION"
	CategoryAbort      ErrorCategory = "ABORT"
)

// Error codes.
const (
	CodeIndexOutOfBounds = "INDEX_OUT_OF_BOUNDS"
	CodeAssertionFailed  = "ASSERTION_FAILED"
	CodeInvalidSize      = "INVALID_SIZE"
	CodeDivisionByZero   = "DIVISION_BY_ZERO"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeUnknownFunction  = "UNKNOWN_FUNCTION"
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	return newError(2, category, code, message, context)
}

func newError(skip int, category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(skip)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// Code returns the code of the first StandardError in err's chain, or "".
func Code(err error) string {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Common error constructors
func IndexOutOfBounds(buffer string, index, length int64) *StandardError {
	return newError(2, CategoryBounds, CodeIndexOutOfBounds,
		fmt.Sprintf("Index %d out of bounds for %s of length %d", index, buffer, length),
		map[string]interface{}{"buffer": buffer, "index": index, "length": length})
}

func AssertionFailed(message string) *StandardError {
	return newError(2, CategoryAbort, CodeAssertionFailed,
		message,
		map[string]interface{}{"message": message})
}

func InvalidSize(size int64, context string) *StandardError {
	return newError(2, CategoryMemory, CodeInvalidSize,
		fmt.Sprintf("Invalid size %d in %s", size, context),
		map[string]interface{}{"size": size, "context": context})
}

func DivisionByZero(operation string) *StandardError {
	return newError(2, CategoryArithmetic, CodeDivisionByZero,
		fmt.Sprintf("Division by zero in %s operation", operation),
		map[string]interface{}{"operation": operation})
}

func InvalidArgument(name, details string) *StandardError {
	return newError(2, CategoryValidation, CodeInvalidArgument,
		fmt.Sprintf("Invalid argument %s: %s", name, details),
		map[string]interface{}{"argument": name, "details": details})
}

func UnknownFunction(name string) *StandardError {
	return newError(2, CategoryValidation, CodeUnknownFunction,
		fmt.Sprintf("Unknown external function %s", name),
		map[string]interface{}{"function": name})
}
