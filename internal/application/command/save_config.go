package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhub/grade-engine/internal/domain/grading"
	"github.com/schoolhub/grade-engine/internal/domain/schedule"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE CONFIG COMMAND
// Saves a teacher's exam schedule, or the system-wide default when no
// teacher is given. A save that fails validation leaves the previously
// stored config exactly as it was.
// ══════════════════════════════════════════════════════════════════════════════

// ExamSlotInput is one schedule slot as submitted by a caller.
type ExamSlotInput struct {
	AssessmentCode string  `json:"assessment_code" validate:"required"`
	Title          string  `json:"title"`
	DisplayOrder   int     `json:"display_order" validate:"gte=0"`
	Weight         float64 `json:"weight" validate:"gte=0,lte=100"`
}

// SaveConfigCommand contains the data to save a semester config.
type SaveConfigCommand struct {
	// TeacherID scopes the config. Empty saves the system-wide default.
	TeacherID string

	// AcademicYear in "YYYY/YYYY" form.
	AcademicYear string

	// SemesterExamCode names the term this schedule configures.
	SemesterExamCode string

	// ExamSchedule is the ordered slot list.
	ExamSchedule []ExamSlotInput

	// MonthlyWeight/SemesterWeight override the engine's 60/40 split when
	// both are set. Zero means "use the default".
	MonthlyWeight  float64
	SemesterWeight float64

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command's shape. Schedule semantics are checked
// against reference data by the handler.
func (c SaveConfigCommand) Validate() error {
	if c.TeacherID != "" && !shared.TeacherID(c.TeacherID).IsValid() {
		return errors.New("save_config: teacher_id must be a valid UUID or empty")
	}
	if !shared.AcademicYear(c.AcademicYear).IsValid() {
		return errors.New("save_config: academic_year must be consecutive years as YYYY/YYYY")
	}
	if c.SemesterExamCode == "" {
		return errors.New("save_config: semester_exam_code is required")
	}
	if len(c.ExamSchedule) == 0 {
		return errors.New("save_config: exam_schedule cannot be empty")
	}
	return nil
}

// SaveConfigResult contains the result of saving a semester config.
type SaveConfigResult struct {
	// ConfigID is the ID of the stored config.
	ConfigID string

	// IsDefault reports whether the system-wide default was saved.
	IsDefault bool

	// Events contains domain events generated.
	Events []shared.Event

	// SavedAt is when the config was stored.
	SavedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SaveConfigHandler handles SaveConfigCommand and DeleteConfigCommand.
type SaveConfigHandler struct {
	configRepo schedule.Repository
	typeRepo   grading.AssessmentTypeRepository
	cache      schedule.ConfigCache
	publisher  shared.EventPublisher
	logger     *slog.Logger

	minMonthlyExams int
	maxMonthlyExams int
}

// NewSaveConfigHandler creates a new SaveConfigHandler. minMonthlyExams
// and maxMonthlyExams bound how many monthly slots a schedule may carry.
func NewSaveConfigHandler(
	configRepo schedule.Repository,
	typeRepo grading.AssessmentTypeRepository,
	cache schedule.ConfigCache,
	publisher shared.EventPublisher,
	minMonthlyExams, maxMonthlyExams int,
	logger *slog.Logger,
) *SaveConfigHandler {
	if cache == nil {
		cache = schedule.NoopConfigCache{}
	}
	if minMonthlyExams <= 0 {
		minMonthlyExams = 1
	}
	if maxMonthlyExams < minMonthlyExams {
		maxMonthlyExams = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SaveConfigHandler{
		configRepo:      configRepo,
		typeRepo:        typeRepo,
		cache:           cache,
		publisher:       publisher,
		logger:          logger,
		minMonthlyExams: minMonthlyExams,
		maxMonthlyExams: maxMonthlyExams,
	}
}

// Handle validates the schedule against the assessment type reference data
// and stores it. Validation failures reject the save before any write, so
// a bad submission can never clobber a working config.
func (h *SaveConfigHandler) Handle(ctx context.Context, cmd SaveConfigCommand) (*SaveConfigResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, validationError("SaveConfig", err)
	}

	cfg := &schedule.SemesterConfig{
		ID:               uuid.NewString(),
		TeacherID:        shared.TeacherID(cmd.TeacherID),
		AcademicYear:     shared.AcademicYear(cmd.AcademicYear),
		SemesterExamCode: cmd.SemesterExamCode,
		ExamSchedule:     make([]schedule.ExamSlot, len(cmd.ExamSchedule)),
		MonthlyWeight:    cmd.MonthlyWeight,
		SemesterWeight:   cmd.SemesterWeight,
	}
	for i, slot := range cmd.ExamSchedule {
		cfg.ExamSchedule[i] = schedule.ExamSlot{
			AssessmentCode: slot.AssessmentCode,
			Title:          slot.Title,
			DisplayOrder:   slot.DisplayOrder,
			Weight:         slot.Weight,
		}
	}

	vctx, err := h.validationContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(vctx); err != nil {
		return nil, err
	}

	if err := h.configRepo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save_config: save: %w", err)
	}

	// A stale cached config must not outlive the row it mirrors.
	h.cache.Evict(ctx, cfg.TeacherID, cfg.AcademicYear, cfg.SemesterExamCode)

	event := shared.NewConfigSavedEvent(cfg.ID, cmd.TeacherID, cmd.AcademicYear, cmd.SemesterExamCode)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.publishConfig(event)

	return &SaveConfigResult{
		ConfigID:  cfg.ID,
		IsDefault: cfg.IsDefault(),
		Events:    []shared.Event{event},
		SavedAt:   time.Now().UTC(),
	}, nil
}

// validationContext builds the reference-data view a schedule is checked
// against.
func (h *SaveConfigHandler) validationContext(ctx context.Context) (schedule.ValidationContext, error) {
	typeList, err := h.typeRepo.List(ctx)
	if err != nil {
		return schedule.ValidationContext{}, fmt.Errorf("save_config: list assessment types: %w", err)
	}
	types := grading.NewTypeIndex(typeList)

	return schedule.ValidationContext{
		KnownCode: types.Has,
		CategoryOf: func(code string) (string, bool) {
			cat, ok := types.CategoryOf(code)
			return string(cat), ok
		},
		MinMonthlyExams: h.minMonthlyExams,
		MaxMonthlyExams: h.maxMonthlyExams,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE CONFIG COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteConfigCommand removes a teacher's config for one term. Students of
// that teacher fall back to the default config afterwards. The default
// config itself is deleted with an empty TeacherID.
type DeleteConfigCommand struct {
	// TeacherID scopes the deletion. Empty deletes the default config.
	TeacherID string

	// AcademicYear in "YYYY/YYYY" form.
	AcademicYear string

	// SemesterExamCode names the term.
	SemesterExamCode string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c DeleteConfigCommand) Validate() error {
	if c.TeacherID != "" && !shared.TeacherID(c.TeacherID).IsValid() {
		return errors.New("delete_config: teacher_id must be a valid UUID or empty")
	}
	if !shared.AcademicYear(c.AcademicYear).IsValid() {
		return errors.New("delete_config: academic_year must be consecutive years as YYYY/YYYY")
	}
	if c.SemesterExamCode == "" {
		return errors.New("delete_config: semester_exam_code is required")
	}
	return nil
}

// HandleDelete removes the config for the exact tuple. Deleting a teacher
// config never touches the default row.
func (h *SaveConfigHandler) HandleDelete(ctx context.Context, cmd DeleteConfigCommand) (*SaveConfigResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, validationError("DeleteConfig", err)
	}

	teacherID := shared.TeacherID(cmd.TeacherID)
	year := shared.AcademicYear(cmd.AcademicYear)

	existing, err := h.configRepo.Find(ctx, teacherID, year, cmd.SemesterExamCode)
	if err != nil {
		return nil, err
	}

	if err := h.configRepo.Delete(ctx, teacherID, year, cmd.SemesterExamCode); err != nil {
		return nil, fmt.Errorf("delete_config: delete: %w", err)
	}

	h.cache.Evict(ctx, teacherID, year, cmd.SemesterExamCode)

	event := shared.NewConfigDeletedEvent(existing.ID, cmd.TeacherID, cmd.AcademicYear, cmd.SemesterExamCode)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.publishConfig(event)

	return &SaveConfigResult{
		ConfigID:  existing.ID,
		IsDefault: teacherID.IsDefault(),
		Events:    []shared.Event{event},
		SavedAt:   time.Now().UTC(),
	}, nil
}

func (h *SaveConfigHandler) publishConfig(event shared.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Error("event publish failed",
			"event_type", event.EventType(),
			"error", err,
		)
	}
}
