package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/schoolhub/grade-engine/internal/domain/schedule"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SEMESTER CONFIG QUERY
// Resolves the effective exam schedule for a teacher (teacher override
// when present, default otherwise), cache-aside per exact tuple.
// ══════════════════════════════════════════════════════════════════════════════

// GetSemesterConfigQuery contains the parameters for a config lookup.
type GetSemesterConfigQuery struct {
	// TeacherID scopes the resolution. Empty returns the default config.
	TeacherID string

	// AcademicYear in "YYYY/YYYY" form.
	AcademicYear string

	// SemesterExamCode names the term.
	SemesterExamCode string
}

// Validate validates the query parameters.
func (q *GetSemesterConfigQuery) Validate() error {
	if q.TeacherID != "" && !shared.TeacherID(q.TeacherID).IsValid() {
		return errors.New("get_semester_config: teacher_id must be a valid UUID or empty")
	}
	if !shared.AcademicYear(q.AcademicYear).IsValid() {
		return errors.New("get_semester_config: academic_year must be consecutive years as YYYY/YYYY")
	}
	if q.SemesterExamCode == "" {
		return errors.New("get_semester_config: semester_exam_code is required")
	}
	return nil
}

// ExamSlotDTO is one schedule slot shaped for presentation.
type ExamSlotDTO struct {
	AssessmentCode string  `json:"assessment_code"`
	Title          string  `json:"title,omitempty"`
	DisplayOrder   int     `json:"display_order"`
	Weight         float64 `json:"weight,omitempty"`
}

// SemesterConfigDTO is a resolved config shaped for presentation.
type SemesterConfigDTO struct {
	ID               string        `json:"id"`
	TeacherID        string        `json:"teacher_id,omitempty"`
	IsDefault        bool          `json:"is_default"`
	AcademicYear     string        `json:"academic_year"`
	SemesterExamCode string        `json:"semester_exam_code"`
	ExamSchedule     []ExamSlotDTO `json:"exam_schedule"`
	MonthlyWeight    float64       `json:"monthly_weight,omitempty"`
	SemesterWeight   float64       `json:"semester_weight,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetSemesterConfigHandler handles GetSemesterConfigQuery and year listings.
type GetSemesterConfigHandler struct {
	repo     schedule.Repository
	resolver *schedule.Resolver
	cache    schedule.ConfigCache
	logger   *slog.Logger
}

// NewGetSemesterConfigHandler creates a new GetSemesterConfigHandler.
func NewGetSemesterConfigHandler(repo schedule.Repository, cache schedule.ConfigCache, logger *slog.Logger) *GetSemesterConfigHandler {
	if cache == nil {
		cache = schedule.NoopConfigCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetSemesterConfigHandler{
		repo:     repo,
		resolver: schedule.NewResolver(repo),
		cache:    cache,
		logger:   logger,
	}
}

// Handle resolves the effective config for the teacher. The cache holds
// exact tuples only, so a teacher whose resolution fell back to the
// default never shadows a later teacher override.
func (h *GetSemesterConfigHandler) Handle(ctx context.Context, q GetSemesterConfigQuery) (*SemesterConfigDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, validationError("GetSemesterConfig", err)
	}

	teacherID := shared.TeacherID(q.TeacherID)
	year := shared.AcademicYear(q.AcademicYear)

	if cfg, ok := h.cache.Get(ctx, teacherID, year, q.SemesterExamCode); ok {
		return toConfigDTO(cfg), nil
	}

	cfg, err := h.resolver.Resolve(ctx, teacherID, year, q.SemesterExamCode)
	if err != nil {
		return nil, err
	}
	h.cache.Put(ctx, cfg)

	return toConfigDTO(cfg), nil
}

// ListByYear returns every config (teacher and default) stored for a year.
// Listings bypass the cache; they serve admin screens, not the hot path.
func (h *GetSemesterConfigHandler) ListByYear(ctx context.Context, academicYear string) ([]SemesterConfigDTO, error) {
	year := shared.AcademicYear(academicYear)
	if !year.IsValid() {
		return nil, validationError("ListByYear",
			errors.New("get_semester_config: academic_year must be consecutive years as YYYY/YYYY"))
	}

	cfgs, err := h.repo.ListByYear(ctx, year)
	if err != nil {
		return nil, err
	}

	out := make([]SemesterConfigDTO, len(cfgs))
	for i := range cfgs {
		out[i] = *toConfigDTO(&cfgs[i])
	}
	return out, nil
}

// ReloadYear rebuilds the config cache for a year from the stored rows.
// An admin escape hatch for when cached configs are suspected stale.
func (h *GetSemesterConfigHandler) ReloadYear(ctx context.Context, academicYear string) (int, error) {
	year := shared.AcademicYear(academicYear)
	if !year.IsValid() {
		return 0, validationError("ReloadYear",
			errors.New("get_semester_config: academic_year must be consecutive years as YYYY/YYYY"))
	}

	cfgs, err := h.repo.ListByYear(ctx, year)
	if err != nil {
		return 0, err
	}

	for i := range cfgs {
		cfg := &cfgs[i]
		h.cache.Evict(ctx, cfg.TeacherID, cfg.AcademicYear, cfg.SemesterExamCode)
		h.cache.Put(ctx, cfg)
	}
	return len(cfgs), nil
}

func toConfigDTO(cfg *schedule.SemesterConfig) *SemesterConfigDTO {
	slots := make([]ExamSlotDTO, len(cfg.ExamSchedule))
	for i, s := range cfg.OrderedSchedule() {
		slots[i] = ExamSlotDTO{
			AssessmentCode: s.AssessmentCode,
			Title:          s.Title,
			DisplayOrder:   s.DisplayOrder,
			Weight:         s.Weight,
		}
	}
	return &SemesterConfigDTO{
		ID:               cfg.ID,
		TeacherID:        string(cfg.TeacherID),
		IsDefault:        cfg.IsDefault(),
		AcademicYear:     string(cfg.AcademicYear),
		SemesterExamCode: cfg.SemesterExamCode,
		ExamSchedule:     slots,
		MonthlyWeight:    cfg.MonthlyWeight,
		SemesterWeight:   cfg.SemesterWeight,
		UpdatedAt:        cfg.UpdatedAt,
	}
}
