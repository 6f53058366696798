// Package eventhandler contains domain event subscribers.
//
// Subscribers are the reactive part of the engine: they run after a
// command commits and must never affect its outcome. Delivery is
// at-least-once, so every handler here is idempotent.
package eventhandler

import (
	"log/slog"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT LOG HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// AuditLogger records every domain event to the structured log. The
// platform's downstream consumers (report cards, parent notifications)
// subscribe to the same bus; the audit trail is what support teams use
// to answer "why does this student have this grade".
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates an AuditLogger.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger}
}

// Register subscribes the audit logger to all events on the bus.
func (a *AuditLogger) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(a.Handle)
}

// Handle logs a single event. It never returns an error: a failed audit
// write must not push an event onto a retry path.
func (a *AuditLogger) Handle(event shared.Event) error {
	attrs := []any{
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt().Format(time.RFC3339),
	}

	switch e := event.(type) {
	case shared.GradeMutatedEvent:
		attrs = append(attrs,
			"student_id", e.StudentID,
			"class_id", e.ClassID,
			"subject_id", e.SubjectID,
			"assessment_code", e.AssessmentTypeCode,
			"score", e.Score,
			"max_score", e.MaxScore,
		)
	case shared.AverageCalculatedEvent:
		attrs = append(attrs,
			"student_id", e.StudentID,
			"average_type", e.AverageType,
			"average_score", e.AverageScore,
			"letter_grade", e.LetterGrade,
			"class_rank", e.ClassRank,
		)
	case shared.ConfigChangedEvent:
		attrs = append(attrs,
			"config_id", e.ConfigID,
			"teacher_id", e.TeacherID,
			"academic_year", e.AcademicYear,
			"exam_code", e.SemesterExamCode,
		)
	}

	a.logger.Info("domain event", attrs...)
	return nil
}
