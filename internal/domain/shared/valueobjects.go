// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// StudentID represents a unique student identifier (UUID format).
type StudentID string

// IsValid checks if the student ID is a valid UUID.
func (s StudentID) IsValid() bool {
	return uuidRegex.MatchString(string(s))
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// IsEmpty checks if the ID is empty.
func (s StudentID) IsEmpty() bool {
	return s == ""
}

// NewStudentID creates a new StudentID with validation.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.ToLower(strings.TrimSpace(id)))
	if !sid.IsValid() {
		return "", NewDomainError("shared", "NewStudentID", ErrInvalidID, CodeValidationError, "invalid student ID format")
	}
	return sid, nil
}

// TeacherID represents a unique teacher identifier (UUID format).
// The zero value means "no teacher": a default, system-wide scope.
type TeacherID string

// IsValid checks if the teacher ID is a valid UUID.
func (t TeacherID) IsValid() bool {
	return uuidRegex.MatchString(string(t))
}

// IsDefault reports whether this ID denotes the system-wide default scope.
func (t TeacherID) IsDefault() bool {
	return t == ""
}

// String returns the string representation.
func (t TeacherID) String() string {
	return string(t)
}

// NewTeacherID creates a new TeacherID with validation.
func NewTeacherID(id string) (TeacherID, error) {
	tid := TeacherID(strings.ToLower(strings.TrimSpace(id)))
	if !tid.IsValid() {
		return "", NewDomainError("shared", "NewTeacherID", ErrInvalidID, CodeValidationError, "invalid teacher ID format")
	}
	return tid, nil
}

// ClassID represents a unique class identifier (UUID format).
type ClassID string

// IsValid checks if the class ID is a valid UUID.
func (c ClassID) IsValid() bool {
	return uuidRegex.MatchString(string(c))
}

// String returns the string representation.
func (c ClassID) String() string {
	return string(c)
}

// NewClassID creates a new ClassID with validation.
func NewClassID(id string) (ClassID, error) {
	cid := ClassID(strings.ToLower(strings.TrimSpace(id)))
	if !cid.IsValid() {
		return "", NewDomainError("shared", "NewClassID", ErrInvalidID, CodeValidationError, "invalid class ID format")
	}
	return cid, nil
}

// SubjectID represents a unique subject identifier (UUID format).
// The zero value means "all subjects": an overall, cross-subject scope.
type SubjectID string

// IsValid checks if the subject ID is a valid UUID.
func (s SubjectID) IsValid() bool {
	return uuidRegex.MatchString(string(s))
}

// IsOverall reports whether this ID denotes the cross-subject scope.
func (s SubjectID) IsOverall() bool {
	return s == ""
}

// String returns the string representation.
func (s SubjectID) String() string {
	return string(s)
}

// NewSubjectID creates a new SubjectID with validation.
func NewSubjectID(id string) (SubjectID, error) {
	sid := SubjectID(strings.ToLower(strings.TrimSpace(id)))
	if !sid.IsValid() {
		return "", NewDomainError("shared", "NewSubjectID", ErrInvalidID, CodeValidationError, "invalid subject ID format")
	}
	return sid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Academic Calendar Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Semester represents a semester within an academic year.
// Zero means "not semester-scoped" (annual averages).
type Semester int

const (
	SemesterNone   Semester = 0
	FirstSemester  Semester = 1
	SecondSemester Semester = 2
)

// IsValid checks if the semester is 1 or 2.
func (s Semester) IsValid() bool {
	return s == FirstSemester || s == SecondSemester
}

// IsAnnual reports whether the value denotes a full-year scope.
func (s Semester) IsAnnual() bool {
	return s == SemesterNone
}

// Int returns the underlying int value.
func (s Semester) Int() int {
	return int(s)
}

// String returns the string representation.
func (s Semester) String() string {
	if s.IsAnnual() {
		return "annual"
	}
	return fmt.Sprintf("%d", int(s))
}

// NewSemester creates a Semester with validation.
func NewSemester(n int) (Semester, error) {
	s := Semester(n)
	if !s.IsValid() {
		return SemesterNone, NewDomainError("shared", "NewSemester", ErrValueOutOfRange, CodeValidationError, "semester must be 1 or 2")
	}
	return s, nil
}

// AcademicYear represents a school year in "YYYY/YYYY" format, e.g. "2025/2026".
type AcademicYear string

var academicYearRegex = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

// IsValid checks format and that the second year follows the first.
func (y AcademicYear) IsValid() bool {
	m := academicYearRegex.FindStringSubmatch(string(y))
	if m == nil {
		return false
	}
	var from, to int
	fmt.Sscanf(m[1], "%d", &from)
	fmt.Sscanf(m[2], "%d", &to)
	return to == from+1
}

// String returns the string representation.
func (y AcademicYear) String() string {
	return string(y)
}

// StartYear returns the calendar year the academic year starts in.
func (y AcademicYear) StartYear() int {
	m := academicYearRegex.FindStringSubmatch(string(y))
	if m == nil {
		return 0
	}
	year := 0
	fmt.Sscanf(m[1], "%d", &year)
	return year
}

// NewAcademicYear creates an AcademicYear with validation.
func NewAcademicYear(value string) (AcademicYear, error) {
	y := AcademicYear(strings.TrimSpace(value))
	if !y.IsValid() {
		return "", NewDomainError("shared", "NewAcademicYear", ErrInvalidFormat, CodeValidationError, "invalid academic year, expected YYYY/YYYY with consecutive years")
	}
	return y, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage is a normalized score in [0, 100].
type Percentage float64

const (
	MinPercentage Percentage = 0
	MaxPercentage Percentage = 100
)

// IsValid checks if the percentage is within [0, 100].
func (p Percentage) IsValid() bool {
	return p >= MinPercentage && p <= MaxPercentage
}

// Float64 returns the underlying float64 value.
func (p Percentage) Float64() float64 {
	return float64(p)
}

// Clamp returns the percentage forced into [0, 100].
func (p Percentage) Clamp() Percentage {
	if p < MinPercentage {
		return MinPercentage
	}
	if p > MaxPercentage {
		return MaxPercentage
	}
	return p
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
