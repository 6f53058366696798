// Package command contains write operations (CQRS - Commands).
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
	"github.com/schoolhub/grade-engine/pkg/keymutex"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD GRADE COMMAND
// Records or overwrites a raw assessment score, then recomputes the
// student's averages and the cohort ranking they participate in.
// ══════════════════════════════════════════════════════════════════════════════

// RecordGradeCommand contains the data to record one assessment score.
type RecordGradeCommand struct {
	// EntryID is the grade entry ID. Empty means a new entry.
	EntryID string

	// StudentID is the graded student.
	StudentID string

	// ClassID is the student's class.
	ClassID string

	// SubjectID is the graded subject.
	SubjectID string

	// TeacherID is the recording teacher, used to resolve the exam
	// schedule. Empty resolves straight to the default config.
	TeacherID string

	// AssessmentTypeCode identifies the assessment (e.g. MONTHLY_EXAM_1).
	AssessmentTypeCode string

	// Score and MaxScore form the raw result.
	Score    float64
	MaxScore float64

	// Semester is the term (1 or 2).
	Semester int

	// AcademicYear in "YYYY/YYYY" form.
	AcademicYear string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordGradeCommand) Validate() error {
	if !shared.StudentID(c.StudentID).IsValid() {
		return errors.New("record_grade: valid student_id is required")
	}
	if !shared.ClassID(c.ClassID).IsValid() {
		return errors.New("record_grade: valid class_id is required")
	}
	if !shared.SubjectID(c.SubjectID).IsValid() {
		return errors.New("record_grade: valid subject_id is required")
	}
	if c.TeacherID != "" && !shared.TeacherID(c.TeacherID).IsValid() {
		return errors.New("record_grade: teacher_id must be a valid UUID or empty")
	}
	if c.AssessmentTypeCode == "" {
		return errors.New("record_grade: assessment_type_code is required")
	}
	if !shared.Semester(c.Semester).IsValid() {
		return errors.New("record_grade: semester must be 1 or 2")
	}
	if !shared.AcademicYear(c.AcademicYear).IsValid() {
		return errors.New("record_grade: academic_year must be consecutive years as YYYY/YYYY")
	}
	return nil
}

// RecordGradeResult contains the result of recording a grade.
type RecordGradeResult struct {
	// EntryID is the ID of the stored entry.
	EntryID string

	// Refreshed contains the average rows recomputed by this mutation.
	// Empty when the scope does not yet have enough grades to average.
	Refreshed []grading.GradeAverage

	// Recomputed reports whether averages were refreshed. False means the
	// entry was stored but the scope is still incomplete.
	Recomputed bool

	// Events contains domain events generated.
	Events []shared.Event

	// RecordedAt is when the entry was stored.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordGradeHandler handles RecordGradeCommand for both new and updated
// scores, and DeleteGradeCommand for removals. All three mutations share
// the same recomputation path.
type RecordGradeHandler struct {
	entryRepo grading.EntryRepository
	avgRepo   grading.AverageRepository
	typeRepo  grading.AssessmentTypeRepository
	resolver  *schedule.Resolver
	calc      *grading.Calculator
	rank      grading.RankingPolicy
	locks     *keymutex.KeyMutex
	cache     grading.AverageCache
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewRecordGradeHandler creates a new RecordGradeHandler.
func NewRecordGradeHandler(
	entryRepo grading.EntryRepository,
	avgRepo grading.AverageRepository,
	typeRepo grading.AssessmentTypeRepository,
	resolver *schedule.Resolver,
	calc *grading.Calculator,
	rank grading.RankingPolicy,
	cache grading.AverageCache,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *RecordGradeHandler {
	if calc == nil {
		calc = grading.DefaultCalculator()
	}
	if rank == nil {
		rank = grading.CompetitionRank
	}
	if cache == nil {
		cache = grading.NoopAverageCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RecordGradeHandler{
		entryRepo: entryRepo,
		avgRepo:   avgRepo,
		typeRepo:  typeRepo,
		resolver:  resolver,
		calc:      calc,
		rank:      rank,
		locks:     keymutex.New(),
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle records the score and recomputes the affected averages.
//
// The entry is stored first; recomputation runs after. A recomputation
// that fails because the scope is still missing exams is not an error
// for the caller: the score is kept and averages refresh once the scope
// completes. Stored average rows are never touched by a failed
// recomputation.
func (h *RecordGradeHandler) Handle(ctx context.Context, cmd RecordGradeCommand) (*RecordGradeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, validationError("RecordGrade", err)
	}

	// Unknown assessment codes are rejected before anything is stored.
	if _, err := h.typeRepo.FindByCode(ctx, cmd.AssessmentTypeCode); err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.WrapError("grading", "RecordGrade", shared.ErrValidation,
				shared.CodeInvalidScore, "unknown assessment code: "+cmd.AssessmentTypeCode, shared.ErrUnknownAssessmentCode)
		}
		return nil, fmt.Errorf("record_grade: lookup assessment type: %w", err)
	}

	isUpdate := cmd.EntryID != ""
	entry := &grading.GradeEntry{
		ID:                 cmd.EntryID,
		StudentID:          shared.StudentID(cmd.StudentID),
		ClassID:            shared.ClassID(cmd.ClassID),
		SubjectID:          shared.SubjectID(cmd.SubjectID),
		AssessmentTypeCode: cmd.AssessmentTypeCode,
		Score:              cmd.Score,
		MaxScore:           cmd.MaxScore,
		Semester:           shared.Semester(cmd.Semester),
		AcademicYear:       shared.AcademicYear(cmd.AcademicYear),
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if err := h.entryRepo.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("record_grade: save entry: %w", err)
	}

	result := &RecordGradeResult{
		EntryID:    entry.ID,
		RecordedAt: time.Now().UTC(),
		Events:     make([]shared.Event, 0, 4),
	}

	mutated := shared.NewGradeEnteredEvent(entry.ID, cmd.StudentID, cmd.ClassID, cmd.SubjectID,
		cmd.AssessmentTypeCode, cmd.Score, cmd.MaxScore, cmd.Semester, cmd.AcademicYear)
	if isUpdate {
		mutated = shared.NewGradeUpdatedEvent(entry.ID, cmd.StudentID, cmd.ClassID, cmd.SubjectID,
			cmd.AssessmentTypeCode, cmd.Score, cmd.MaxScore, cmd.Semester, cmd.AcademicYear)
	}
	if cmd.CorrelationID != "" {
		mutated.BaseEvent = mutated.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, mutated)

	h.recomputeInto(ctx, recomputeScope{
		StudentID:    entry.StudentID,
		ClassID:      entry.ClassID,
		SubjectID:    entry.SubjectID,
		TeacherID:    shared.TeacherID(cmd.TeacherID),
		Semester:     entry.Semester,
		AcademicYear: entry.AcademicYear,
	}, result)

	h.publish(result.Events)
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE GRADE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteGradeCommand removes a stored assessment score.
type DeleteGradeCommand struct {
	// EntryID is the grade entry to delete.
	EntryID string

	// TeacherID resolves the exam schedule for the recompute.
	TeacherID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c DeleteGradeCommand) Validate() error {
	if c.EntryID == "" {
		return errors.New("delete_grade: entry_id is required")
	}
	return nil
}

// HandleDelete removes the entry and recomputes the scope it belonged to.
// When the deletion leaves the scope without enough grades, the previously
// stored average rows stay as they are and only the cache is evicted.
func (h *RecordGradeHandler) HandleDelete(ctx context.Context, cmd DeleteGradeCommand) (*RecordGradeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, validationError("DeleteGrade", err)
	}

	entry, err := h.entryRepo.FindByID(ctx, cmd.EntryID)
	if err != nil {
		return nil, err
	}

	if err := h.entryRepo.Delete(ctx, cmd.EntryID); err != nil {
		return nil, fmt.Errorf("delete_grade: delete entry: %w", err)
	}

	result := &RecordGradeResult{
		EntryID:    entry.ID,
		RecordedAt: time.Now().UTC(),
		Events:     make([]shared.Event, 0, 4),
	}

	deleted := shared.NewGradeDeletedEvent(entry.ID, string(entry.StudentID), string(entry.ClassID),
		string(entry.SubjectID), entry.AssessmentTypeCode, entry.Score, entry.MaxScore,
		int(entry.Semester), string(entry.AcademicYear))
	if cmd.CorrelationID != "" {
		deleted.BaseEvent = deleted.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, deleted)

	h.recomputeInto(ctx, recomputeScope{
		StudentID:    entry.StudentID,
		ClassID:      entry.ClassID,
		SubjectID:    entry.SubjectID,
		TeacherID:    shared.TeacherID(cmd.TeacherID),
		Semester:     entry.Semester,
		AcademicYear: entry.AcademicYear,
	}, result)

	h.publish(result.Events)
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTATION
// ══════════════════════════════════════════════════════════════════════════════

// recomputeScope identifies the averages one grade mutation invalidates.
type recomputeScope struct {
	StudentID    shared.StudentID
	ClassID      shared.ClassID
	SubjectID    shared.SubjectID
	TeacherID    shared.TeacherID
	Semester     shared.Semester
	AcademicYear shared.AcademicYear
}

// lockKey covers the whole class cohort for the period, not just the
// mutated student. Re-ranking reads and rewrites rows of every student
// in the class, so two mutations in the same cohort must serialize even
// when they touch different students or subjects.
func (s recomputeScope) lockKey() string {
	return fmt.Sprintf("%s|%d|%s", s.ClassID, s.Semester, s.AcademicYear)
}

// recomputeInto refreshes the scope's averages into result. Incomplete
// scopes and calculation failures are absorbed: the mutation itself
// already succeeded, prior average rows stay untouched, and the cache is
// evicted either way so no stale derived data survives the mutation.
func (h *RecordGradeHandler) recomputeInto(ctx context.Context, scope recomputeScope, result *RecordGradeResult) {
	refreshed, err := h.recompute(ctx, scope)

	// Eviction happens on success and on failure alike.
	h.cache.EvictStudent(ctx, scope.StudentID)
	h.cache.EvictClass(ctx, scope.ClassID)

	if err != nil {
		if shared.IsIncompleteInput(err) {
			h.logger.Info("averages not refreshed, scope incomplete",
				"student_id", scope.StudentID,
				"subject_id", scope.SubjectID,
				"reason", shared.Code(err),
			)
			return
		}
		h.logger.Error("average recomputation failed",
			"student_id", scope.StudentID,
			"subject_id", scope.SubjectID,
			"error", err,
		)
		return
	}

	result.Refreshed = refreshed
	result.Recomputed = true

	for i := range refreshed {
		a := &refreshed[i]
		if a.StudentID != scope.StudentID {
			continue
		}
		result.Events = append(result.Events, shared.NewAverageCalculatedEvent(
			string(a.StudentID), string(a.ClassID), string(a.SubjectID),
			string(a.AverageType), a.AverageScore, string(a.LetterGrade),
			a.ClassRank, a.TotalStudents, int(a.Semester), string(a.AcademicYear),
			a.CalculatedAt,
		))
	}
}

// recompute rebuilds the student's monthly, semester, annual and overall
// averages for the scope, re-ranks the subject cohort and the class. The
// per-cohort lock serializes concurrent mutations touching the same
// class and period; it covers the compute and the upsert, nothing more.
func (h *RecordGradeHandler) recompute(ctx context.Context, scope recomputeScope) ([]grading.GradeAverage, error) {
	key := scope.lockKey()
	h.locks.Lock(key)
	defer h.locks.Unlock(key)

	entries, err := h.entryRepo.ListForScope(ctx, grading.EntryScope{
		StudentID:    scope.StudentID,
		SubjectID:    scope.SubjectID,
		Semester:     scope.Semester,
		AcademicYear: scope.AcademicYear,
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	typeList, err := h.typeRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assessment types: %w", err)
	}
	types := grading.NewTypeIndex(typeList)

	cfg, err := h.resolver.Resolve(ctx, scope.TeacherID, scope.AcademicYear, schedule.SemesterExamCodeFor(scope.Semester))
	if err != nil {
		return nil, err
	}

	monthlyAvg, err := h.calc.ComputeMonthlyAverage(entries, cfg, types)
	if err != nil {
		return nil, err
	}
	semesterAvg, err := h.calc.ComputeSemesterAverage(monthlyAvg, entries, cfg, types)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rows := []grading.GradeAverage{
		{
			StudentID:    scope.StudentID,
			ClassID:      scope.ClassID,
			SubjectID:    scope.SubjectID,
			Semester:     scope.Semester,
			AcademicYear: scope.AcademicYear,
			AverageType:  grading.AverageMonthly,
			AverageScore: monthlyAvg,
			LetterGrade:  grading.LetterGradeFor(monthlyAvg),
			CalculatedAt: now,
		},
	}

	ranked, err := h.rankCohort(ctx, scope, semesterAvg, now)
	if err != nil {
		return nil, err
	}

	overall, classRanks, err := h.rankClass(ctx, scope, ranked, now)
	if err != nil {
		return nil, err
	}
	for i := range ranked {
		if r, ok := classRanks[ranked[i].StudentID]; ok {
			ranked[i].ClassRank = r.Rank
		}
	}
	rows = append(rows, ranked...)
	rows = append(rows, overall...)

	annual, err := h.annualRow(ctx, scope, semesterAvg, now)
	if err != nil {
		return nil, err
	}
	if annual != nil {
		rows = append(rows, *annual)
	}

	if err := h.avgRepo.UpsertAll(ctx, rows); err != nil {
		return nil, fmt.Errorf("upsert averages: %w", err)
	}

	return rows, nil
}

// rankCohort folds the student's new semester average into the subject
// cohort and re-ranks everyone, so every stored rank stays consistent
// with the scores around it.
func (h *RecordGradeHandler) rankCohort(ctx context.Context, scope recomputeScope, semesterAvg float64, now time.Time) ([]grading.GradeAverage, error) {
	cohort, err := h.avgRepo.ListForClass(ctx, scope.ClassID, scope.SubjectID, scope.Semester, scope.AcademicYear, grading.AverageSemester)
	if err != nil {
		return nil, fmt.Errorf("list cohort: %w", err)
	}

	found := false
	for i := range cohort {
		if cohort[i].StudentID == scope.StudentID {
			cohort[i].AverageScore = semesterAvg
			cohort[i].LetterGrade = grading.LetterGradeFor(semesterAvg)
			cohort[i].CalculatedAt = now
			found = true
			break
		}
	}
	if !found {
		cohort = append(cohort, grading.GradeAverage{
			StudentID:    scope.StudentID,
			ClassID:      scope.ClassID,
			SubjectID:    scope.SubjectID,
			Semester:     scope.Semester,
			AcademicYear: scope.AcademicYear,
			AverageType:  grading.AverageSemester,
			AverageScore: semesterAvg,
			LetterGrade:  grading.LetterGradeFor(semesterAvg),
			CalculatedAt: now,
		})
	}

	scores := make([]grading.RankedScore, len(cohort))
	for i, row := range cohort {
		scores[i] = grading.RankedScore{StudentID: row.StudentID, AverageScore: row.AverageScore}
	}

	ranks := h.rank(scores)
	for i := range cohort {
		if r, ok := ranks[cohort[i].StudentID]; ok {
			cohort[i].SubjectRank = r.Rank
			cohort[i].TotalStudents = r.TotalStudents
		}
	}

	return cohort, nil
}

// rankClass rebuilds the class's cross-subject overall averages from all
// per-subject semester rows, with the just-recomputed subject cohort
// patched in, and ranks the class on them. The returned rank map also
// feeds the class rank stored on the subject rows.
func (h *RecordGradeHandler) rankClass(ctx context.Context, scope recomputeScope, fresh []grading.GradeAverage, now time.Time) ([]grading.GradeAverage, map[shared.StudentID]grading.RankResult, error) {
	all, err := h.avgRepo.ListSubjectAveragesForClass(ctx, scope.ClassID, scope.Semester, scope.AcademicYear, grading.AverageSemester)
	if err != nil {
		return nil, nil, fmt.Errorf("list class subject averages: %w", err)
	}

	type subjectKey struct {
		StudentID shared.StudentID
		SubjectID shared.SubjectID
	}
	latest := make(map[subjectKey]float64, len(all)+len(fresh))
	for _, row := range all {
		latest[subjectKey{row.StudentID, row.SubjectID}] = row.AverageScore
	}
	for _, row := range fresh {
		latest[subjectKey{row.StudentID, row.SubjectID}] = row.AverageScore
	}

	perStudent := make(map[shared.StudentID][]float64)
	for key, score := range latest {
		perStudent[key.StudentID] = append(perStudent[key.StudentID], score)
	}

	overall := make([]grading.GradeAverage, 0, len(perStudent))
	scores := make([]grading.RankedScore, 0, len(perStudent))
	for studentID, subjectScores := range perStudent {
		avg, err := h.calc.ComputeOverallAverage(subjectScores)
		if err != nil {
			return nil, nil, err
		}
		overall = append(overall, grading.GradeAverage{
			StudentID:    studentID,
			ClassID:      scope.ClassID,
			Semester:     scope.Semester,
			AcademicYear: scope.AcademicYear,
			AverageType:  grading.AverageOverall,
			AverageScore: avg,
			LetterGrade:  grading.LetterGradeFor(avg),
			CalculatedAt: now,
		})
		scores = append(scores, grading.RankedScore{StudentID: studentID, AverageScore: avg})
	}

	ranks := h.rank(scores)
	for i := range overall {
		if r, ok := ranks[overall[i].StudentID]; ok {
			overall[i].ClassRank = r.Rank
			overall[i].TotalStudents = r.TotalStudents
		}
	}

	return overall, ranks, nil
}

// annualRow folds the student's per-semester averages for the subject
// into the annual average, with the current semester's fresh value
// patched in. Nil when no semester average exists yet.
func (h *RecordGradeHandler) annualRow(ctx context.Context, scope recomputeScope, semesterAvg float64, now time.Time) (*grading.GradeAverage, error) {
	stored, err := h.avgRepo.ListForStudent(ctx, scope.StudentID, scope.AcademicYear)
	if err != nil {
		return nil, fmt.Errorf("list student averages: %w", err)
	}

	bySemester := map[shared.Semester]float64{scope.Semester: semesterAvg}
	for _, row := range stored {
		if row.AverageType != grading.AverageSemester || row.SubjectID != scope.SubjectID {
			continue
		}
		if _, ok := bySemester[row.Semester]; !ok {
			bySemester[row.Semester] = row.AverageScore
		}
	}

	semesterAvgs := make([]float64, 0, len(bySemester))
	for _, v := range bySemester {
		semesterAvgs = append(semesterAvgs, v)
	}

	avg, err := h.calc.ComputeAnnualAverage(semesterAvgs)
	if err != nil {
		return nil, err
	}

	return &grading.GradeAverage{
		StudentID:    scope.StudentID,
		ClassID:      scope.ClassID,
		SubjectID:    scope.SubjectID,
		Semester:     shared.SemesterNone,
		AcademicYear: scope.AcademicYear,
		AverageType:  grading.AverageAnnual,
		AverageScore: avg,
		LetterGrade:  grading.LetterGradeFor(avg),
		CalculatedAt: now,
	}, nil
}

func (h *RecordGradeHandler) publish(events []shared.Event) {
	if h.publisher == nil {
		return
	}
	for _, event := range events {
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Error("event publish failed",
				"event_type", event.EventType(),
				"error", err,
			)
		}
	}
}
