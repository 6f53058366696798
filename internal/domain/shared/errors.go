// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Computation errors
	ErrIncompleteInput = errors.New("incomplete input")
	ErrCalculation     = errors.New("calculation failure")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrStale        = errors.New("stale data")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// Stable error codes surfaced to callers. The HTTP layer renders these
// verbatim; they never change between releases.
const (
	CodeConfigNotFound        = "CONFIG_NOT_FOUND"
	CodeInvalidConfig         = "INVALID_CONFIG"
	CodeMonthlyExamCountRange = "MONTHLY_EXAM_COUNT_OUT_OF_RANGE"
	CodeWeightsMustSum100     = "WEIGHTS_MUST_SUM_TO_100"
	CodeMissingMonthlyExams   = "MISSING_MONTHLY_EXAMS"
	CodeMissingSemesterExam   = "MISSING_SEMESTER_EXAM"
	CodeInsufficientGrades    = "INSUFFICIENT_GRADES_FOR_CALCULATION"
	CodeScoreOutOfRange       = "SCORE_OUT_OF_RANGE"
	CodeInvalidScore          = "INVALID_SCORE"
	CodeCalculationError      = "CALCULATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeValidationError       = "VALIDATION_ERROR"
	CodeInternalError         = "INTERNAL_ERROR"
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "grading", "schedule"
	Op      string // Operation that failed, e.g., "Resolve", "ComputeMonthly"
	Kind    error  // Base error type for errors.Is() checking
	Code    string // Stable machine-readable code
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Code == t.Code
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, code, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, code, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Schedule (semester config) domain errors
var (
	ErrConfigNotFound = NewDomainError("schedule", "Resolve", ErrNotFound,
		CodeConfigNotFound, "no teacher or default semester config found")
	ErrInvalidConfig = NewDomainError("schedule", "Validate", ErrValidation,
		CodeInvalidConfig, "semester config is invalid")
	ErrMonthlyExamCountOutOfRange = NewDomainError("schedule", "Validate", ErrValueOutOfRange,
		CodeMonthlyExamCountRange, "monthly exam count out of allowed range")
	ErrWeightsMustSumTo100 = NewDomainError("schedule", "Validate", ErrValidation,
		CodeWeightsMustSum100, "assessment weights must sum to exactly 100")
	ErrUnknownAssessmentCode = NewDomainError("schedule", "Validate", ErrValidation,
		CodeInvalidConfig, "exam schedule references an unknown assessment code")
)

// Grading (calculation) domain errors
var (
	ErrMissingMonthlyExams = NewDomainError("grading", "ComputeMonthly", ErrIncompleteInput,
		CodeMissingMonthlyExams, "not all configured monthly exam slots have recorded entries")
	ErrMissingSemesterExam = NewDomainError("grading", "ComputeSemester", ErrIncompleteInput,
		CodeMissingSemesterExam, "no semester exam entry recorded")
	ErrInsufficientGrades = NewDomainError("grading", "Compute", ErrIncompleteInput,
		CodeInsufficientGrades, "not enough grade entries to compute an average")
	ErrScoreOutOfRange = NewDomainError("grading", "Validate", ErrValueOutOfRange,
		CodeScoreOutOfRange, "score exceeds max score")
	ErrInvalidScore = NewDomainError("grading", "Validate", ErrInvalidInput,
		CodeInvalidScore, "score or max score is malformed")
	ErrCalculationFailed = NewDomainError("grading", "Compute", ErrCalculation,
		CodeCalculationError, "unexpected calculation failure")
	ErrAverageNotFound = NewDomainError("grading", "Find", ErrNotFound,
		CodeNotFound, "grade average not found")
	ErrEntryNotFound = NewDomainError("grading", "Find", ErrNotFound,
		CodeNotFound, "grade entry not found")
	ErrAssessmentTypeNotFound = NewDomainError("grading", "Find", ErrNotFound,
		CodeNotFound, "assessment type not found")
)

// Code extracts the stable error code from an error chain.
// Unrecognized errors map to CodeInternalError.
func Code(err error) string {
	var de *DomainError
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	if errors.Is(err, ErrNotFound) {
		return CodeNotFound
	}
	if IsValidation(err) {
		return CodeValidationError
	}
	return CodeInternalError
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsIncompleteInput reports whether recomputation failed because the
// recorded grade entries do not cover the configured schedule. This is
// the caller's problem to resolve, not a system fault.
func IsIncompleteInput(err error) bool {
	return errors.Is(err, ErrIncompleteInput)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
