// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the domain; downstream consumers (report cards, parent
// notifications, analytics) subscribe without follow-up queries.
const (
	// Grade mutation events
	EventGradeEntered EventType = "grade.entered"
	EventGradeUpdated EventType = "grade.updated"
	EventGradeDeleted EventType = "grade.deleted"

	// Derived average events
	EventAverageCalculated EventType = "average.calculated"

	// Semester config events
	EventConfigSaved   EventType = "schedule.config_saved"
	EventConfigDeleted EventType = "schedule.config_deleted"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade Mutation Events
// ═══════════════════════════════════════════════════════════════════════════

// GradeMutatedEvent is emitted after a grade entry is created, updated or
// deleted. The same shape serves all three mutations; Type distinguishes them.
type GradeMutatedEvent struct {
	BaseEvent
	EntryID            string  `json:"entry_id"`
	StudentID          string  `json:"student_id"`
	ClassID            string  `json:"class_id"`
	SubjectID          string  `json:"subject_id"`
	AssessmentTypeCode string  `json:"assessment_type_code"`
	Score              float64 `json:"score"`
	MaxScore           float64 `json:"max_score"`
	Semester           int     `json:"semester"`
	AcademicYear       string  `json:"academic_year"`
}

// Payload implements Event interface.
func (e GradeMutatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"entry_id":             e.EntryID,
		"student_id":           e.StudentID,
		"class_id":             e.ClassID,
		"subject_id":           e.SubjectID,
		"assessment_type_code": e.AssessmentTypeCode,
		"score":                e.Score,
		"max_score":            e.MaxScore,
		"semester":             e.Semester,
		"academic_year":        e.AcademicYear,
	}
}

// NewGradeEnteredEvent creates an event for a newly recorded grade entry.
func NewGradeEnteredEvent(entryID, studentID, classID, subjectID, code string, score, maxScore float64, semester int, year string) GradeMutatedEvent {
	return newGradeMutatedEvent(EventGradeEntered, entryID, studentID, classID, subjectID, code, score, maxScore, semester, year)
}

// NewGradeUpdatedEvent creates an event for an updated grade entry.
func NewGradeUpdatedEvent(entryID, studentID, classID, subjectID, code string, score, maxScore float64, semester int, year string) GradeMutatedEvent {
	return newGradeMutatedEvent(EventGradeUpdated, entryID, studentID, classID, subjectID, code, score, maxScore, semester, year)
}

// NewGradeDeletedEvent creates an event for a deleted grade entry.
func NewGradeDeletedEvent(entryID, studentID, classID, subjectID, code string, score, maxScore float64, semester int, year string) GradeMutatedEvent {
	return newGradeMutatedEvent(EventGradeDeleted, entryID, studentID, classID, subjectID, code, score, maxScore, semester, year)
}

func newGradeMutatedEvent(t EventType, entryID, studentID, classID, subjectID, code string, score, maxScore float64, semester int, year string) GradeMutatedEvent {
	return GradeMutatedEvent{
		BaseEvent:          NewBaseEvent(t, entryID),
		EntryID:            entryID,
		StudentID:          studentID,
		ClassID:            classID,
		SubjectID:          subjectID,
		AssessmentTypeCode: code,
		Score:              score,
		MaxScore:           maxScore,
		Semester:           semester,
		AcademicYear:       year,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Average Events
// ═══════════════════════════════════════════════════════════════════════════

// AverageCalculatedEvent is emitted after a recomputed grade average is
// persisted. The payload is denormalized so that no consumer needs a
// follow-up query.
type AverageCalculatedEvent struct {
	BaseEvent
	StudentID     string    `json:"student_id"`
	ClassID       string    `json:"class_id"`
	SubjectID     string    `json:"subject_id,omitempty"`
	AverageType   string    `json:"average_type"`
	AverageScore  float64   `json:"average_score"`
	LetterGrade   string    `json:"letter_grade"`
	ClassRank     int       `json:"class_rank"`
	TotalStudents int       `json:"total_students"`
	Semester      int       `json:"semester,omitempty"`
	AcademicYear  string    `json:"academic_year"`
	CalculatedAt  time.Time `json:"calculated_at"`
}

// Payload implements Event interface.
func (e AverageCalculatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"class_id":       e.ClassID,
		"subject_id":     e.SubjectID,
		"average_type":   e.AverageType,
		"average_score":  e.AverageScore,
		"letter_grade":   e.LetterGrade,
		"class_rank":     e.ClassRank,
		"total_students": e.TotalStudents,
		"semester":       e.Semester,
		"academic_year":  e.AcademicYear,
		"calculated_at":  e.CalculatedAt.Format(time.RFC3339),
	}
}

// NewAverageCalculatedEvent creates a new AverageCalculatedEvent.
func NewAverageCalculatedEvent(studentID, classID, subjectID, averageType string, averageScore float64, letterGrade string, classRank, totalStudents, semester int, year string, calculatedAt time.Time) AverageCalculatedEvent {
	return AverageCalculatedEvent{
		BaseEvent:     NewBaseEvent(EventAverageCalculated, studentID),
		StudentID:     studentID,
		ClassID:       classID,
		SubjectID:     subjectID,
		AverageType:   averageType,
		AverageScore:  averageScore,
		LetterGrade:   letterGrade,
		ClassRank:     classRank,
		TotalStudents: totalStudents,
		Semester:      semester,
		AcademicYear:  year,
		CalculatedAt:  calculatedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Semester Config Events
// ═══════════════════════════════════════════════════════════════════════════

// ConfigChangedEvent is emitted when a semester config is saved or deleted.
type ConfigChangedEvent struct {
	BaseEvent
	ConfigID         string `json:"config_id"`
	TeacherID        string `json:"teacher_id,omitempty"`
	AcademicYear     string `json:"academic_year"`
	SemesterExamCode string `json:"semester_exam_code"`
	IsDefault        bool   `json:"is_default"`
}

// Payload implements Event interface.
func (e ConfigChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"config_id":          e.ConfigID,
		"teacher_id":         e.TeacherID,
		"academic_year":      e.AcademicYear,
		"semester_exam_code": e.SemesterExamCode,
		"is_default":         e.IsDefault,
	}
}

// NewConfigSavedEvent creates an event for a saved semester config.
func NewConfigSavedEvent(configID, teacherID, year, examCode string) ConfigChangedEvent {
	return ConfigChangedEvent{
		BaseEvent:        NewBaseEvent(EventConfigSaved, configID),
		ConfigID:         configID,
		TeacherID:        teacherID,
		AcademicYear:     year,
		SemesterExamCode: examCode,
		IsDefault:        teacherID == "",
	}
}

// NewConfigDeletedEvent creates an event for a deleted semester config.
func NewConfigDeletedEvent(configID, teacherID, year, examCode string) ConfigChangedEvent {
	return ConfigChangedEvent{
		BaseEvent:        NewBaseEvent(EventConfigDeleted, configID),
		ConfigID:         configID,
		TeacherID:        teacherID,
		AcademicYear:     year,
		SemesterExamCode: examCode,
		IsDefault:        teacherID == "",
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
