package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/schoolhub/grade-engine/internal/application/command"
	"github.com/schoolhub/grade-engine/internal/application/query"
	"github.com/schoolhub/grade-engine/internal/domain/shared"
	"github.com/schoolhub/grade-engine/pkg/logger"
	"github.com/schoolhub/grade-engine/pkg/timeutil"
)

var validate = validator.New()

// academicYearParam reads the academic_year query parameter, defaulting
// to the current academic year on the school calendar.
func academicYearParam(r *http.Request) string {
	return getQueryParam(r, "academic_year", timeutil.AcademicYearFor(timeutil.Now()))
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Grade Engine API",
		"version":     "v1",
		"description": "Grade averaging and ranking engine for the school administration platform",
		"endpoints": map[string]string{
			"health":           "/health",
			"grades":           "/api/v1/grades",
			"student_averages": "/api/v1/students/{id}/averages",
			"class_ranking":    "/api/v1/classes/{id}/ranking",
			"semester_configs": "/api/v1/semester-configs",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE MUTATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// recordGradeRequest is the payload for POST /api/v1/grades and
// PUT /api/v1/grades/{id}.
type recordGradeRequest struct {
	StudentID          string  `json:"student_id" validate:"required,uuid4"`
	ClassID            string  `json:"class_id" validate:"required,uuid4"`
	SubjectID          string  `json:"subject_id" validate:"required,uuid4"`
	TeacherID          string  `json:"teacher_id" validate:"omitempty,uuid4"`
	AssessmentTypeCode string  `json:"assessment_type_code" validate:"required"`
	Score              float64 `json:"score" validate:"gte=0"`
	MaxScore           float64 `json:"max_score" validate:"gt=0"`
	Semester           int     `json:"semester" validate:"required,oneof=1 2"`
	AcademicYear       string  `json:"academic_year" validate:"required"`
}

// handleRecordGrade handles POST /api/v1/grades.
func (s *Server) handleRecordGrade(w http.ResponseWriter, r *http.Request) {
	s.recordGrade(w, r, "")
}

// handleUpdateGrade handles PUT /api/v1/grades/{id}.
func (s *Server) handleUpdateGrade(w http.ResponseWriter, r *http.Request) {
	s.recordGrade(w, r, r.PathValue("id"))
}

func (s *Server) recordGrade(w http.ResponseWriter, r *http.Request, entryID string) {
	if s.deps.RecordGradeHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Grade handler not configured")
		return
	}

	var req recordGradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError, "Invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError, err.Error())
		return
	}

	cmd := command.RecordGradeCommand{
		EntryID:            entryID,
		StudentID:          req.StudentID,
		ClassID:            req.ClassID,
		SubjectID:          req.SubjectID,
		TeacherID:          req.TeacherID,
		AssessmentTypeCode: req.AssessmentTypeCode,
		Score:              req.Score,
		MaxScore:           req.MaxScore,
		Semester:           req.Semester,
		AcademicYear:       req.AcademicYear,
		CorrelationID:      getRequestID(r.Context()),
	}

	result, err := s.deps.RecordGradeHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if entryID != "" {
		status = http.StatusOK
	}
	writeJSONWithMeta(w, r, status, map[string]interface{}{
		"entry_id":   result.EntryID,
		"recomputed": result.Recomputed,
	}, nil)
}

// handleDeleteGrade handles DELETE /api/v1/grades/{id}.
func (s *Server) handleDeleteGrade(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordGradeHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Grade handler not configured")
		return
	}

	cmd := command.DeleteGradeCommand{
		EntryID:       r.PathValue("id"),
		TeacherID:     getQueryParam(r, "teacher_id", ""),
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.RecordGradeHandler.HandleDelete(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, map[string]interface{}{
		"entry_id":   result.EntryID,
		"recomputed": result.Recomputed,
	}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// AVERAGE & RANKING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStudentAverages handles GET /api/v1/students/{id}/averages.
func (s *Server) handleGetStudentAverages(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentAverageHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Average handler not configured")
		return
	}

	q := query.GetStudentAverageQuery{
		StudentID:    r.PathValue("id"),
		AcademicYear: academicYearParam(r),
		AverageType:  getQueryParam(r, "average_type", ""),
		Semester:     getQueryParamInt(r, "semester", 0),
	}

	result, err := s.deps.GetStudentAverageHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{FromCache: result.FromCache})
}

// handleGetClassRanking handles GET /api/v1/classes/{id}/ranking.
func (s *Server) handleGetClassRanking(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetClassRankingHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Ranking handler not configured")
		return
	}

	q := query.GetClassRankingQuery{
		ClassID:      r.PathValue("id"),
		SubjectID:    getQueryParam(r, "subject_id", ""),
		Semester:     getQueryParamInt(r, "semester", 0),
		AcademicYear: academicYearParam(r),
		AverageType:  getQueryParam(r, "average_type", ""),
		Limit:        getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.GetClassRankingHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{FromCache: result.FromCache})
}

// ══════════════════════════════════════════════════════════════════════════════
// SEMESTER CONFIG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// saveConfigRequest is the payload for PUT /api/v1/semester-configs and
// PUT /admin/v1/semester-configs/default.
type saveConfigRequest struct {
	TeacherID        string                  `json:"teacher_id" validate:"omitempty,uuid4"`
	AcademicYear     string                  `json:"academic_year" validate:"required"`
	SemesterExamCode string                  `json:"semester_exam_code" validate:"required"`
	ExamSchedule     []command.ExamSlotInput `json:"exam_schedule" validate:"required,min=1,dive"`
	MonthlyWeight    float64                 `json:"monthly_weight" validate:"gte=0,lte=100"`
	SemesterWeight   float64                 `json:"semester_weight" validate:"gte=0,lte=100"`
}

// handleGetSemesterConfig handles GET /api/v1/semester-configs.
// Resolves the effective config for a teacher: the teacher's own when
// stored, the default otherwise.
func (s *Server) handleGetSemesterConfig(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSemesterConfigHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Config handler not configured")
		return
	}

	q := query.GetSemesterConfigQuery{
		TeacherID:        getQueryParam(r, "teacher_id", ""),
		AcademicYear:     academicYearParam(r),
		SemesterExamCode: getQueryParam(r, "semester_exam_code", ""),
	}

	result, err := s.deps.GetSemesterConfigHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, nil)
}

// handleListSemesterConfigs handles GET /api/v1/semester-configs/list.
func (s *Server) handleListSemesterConfigs(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSemesterConfigHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Config handler not configured")
		return
	}

	result, err := s.deps.GetSemesterConfigHandler.ListByYear(r.Context(), academicYearParam(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, nil)
}

// handleSaveTeacherConfig handles PUT /api/v1/semester-configs.
// A teacher_id is required here; the default config is managed through
// the admin surface.
func (s *Server) handleSaveTeacherConfig(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeConfigRequest(w, r)
	if !ok {
		return
	}
	if req.TeacherID == "" {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError,
			"teacher_id is required; the default config is managed via the admin API")
		return
	}
	s.saveConfig(w, r, req)
}

// handleSaveDefaultConfig handles PUT /admin/v1/semester-configs/default.
func (s *Server) handleSaveDefaultConfig(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeConfigRequest(w, r)
	if !ok {
		return
	}
	req.TeacherID = ""
	s.saveConfig(w, r, req)
}

func (s *Server) decodeConfigRequest(w http.ResponseWriter, r *http.Request) (saveConfigRequest, bool) {
	var req saveConfigRequest
	if s.deps.SaveConfigHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Config handler not configured")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError, "Invalid JSON body")
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError, err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) saveConfig(w http.ResponseWriter, r *http.Request, req saveConfigRequest) {
	cmd := command.SaveConfigCommand{
		TeacherID:        req.TeacherID,
		AcademicYear:     req.AcademicYear,
		SemesterExamCode: req.SemesterExamCode,
		ExamSchedule:     req.ExamSchedule,
		MonthlyWeight:    req.MonthlyWeight,
		SemesterWeight:   req.SemesterWeight,
		CorrelationID:    getRequestID(r.Context()),
	}

	result, err := s.deps.SaveConfigHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, map[string]interface{}{
		"config_id":  result.ConfigID,
		"is_default": result.IsDefault,
	}, nil)
}

// handleDeleteTeacherConfig handles DELETE /api/v1/semester-configs.
func (s *Server) handleDeleteTeacherConfig(w http.ResponseWriter, r *http.Request) {
	teacherID := getQueryParam(r, "teacher_id", "")
	if teacherID == "" {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError,
			"teacher_id is required; the default config is managed via the admin API")
		return
	}
	s.deleteConfig(w, r, teacherID)
}

// handleDeleteDefaultConfig handles DELETE /admin/v1/semester-configs/default.
func (s *Server) handleDeleteDefaultConfig(w http.ResponseWriter, r *http.Request) {
	s.deleteConfig(w, r, "")
}

func (s *Server) deleteConfig(w http.ResponseWriter, r *http.Request, teacherID string) {
	if s.deps.SaveConfigHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Config handler not configured")
		return
	}

	cmd := command.DeleteConfigCommand{
		TeacherID:        teacherID,
		AcademicYear:     academicYearParam(r),
		SemesterExamCode: getQueryParam(r, "semester_exam_code", ""),
		CorrelationID:    getRequestID(r.Context()),
	}

	result, err := s.deps.SaveConfigHandler.HandleDelete(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, map[string]interface{}{
		"config_id":  result.ConfigID,
		"is_default": result.IsDefault,
	}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// evictCacheRequest is the payload for POST /admin/v1/cache/evict.
// Targets averages by student, rankings by class, or a semester config
// by its resolution tuple. An empty teacher_id with config set to true
// evicts the default config entry.
type evictCacheRequest struct {
	StudentID        string `json:"student_id" validate:"omitempty,uuid4"`
	ClassID          string `json:"class_id" validate:"omitempty,uuid4"`
	Config           bool   `json:"config"`
	TeacherID        string `json:"teacher_id" validate:"omitempty,uuid4"`
	AcademicYear     string `json:"academic_year"`
	SemesterExamCode string `json:"semester_exam_code"`
}

// handleEvictCache handles POST /admin/v1/cache/evict. Drops the cached
// derived data of a student, a class, or a semester config tuple.
func (s *Server) handleEvictCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.CacheEvictor == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Cache eviction not configured")
		return
	}

	var req evictCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError, "Invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError, err.Error())
		return
	}
	if req.StudentID == "" && req.ClassID == "" && !req.Config {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError, "student_id, class_id or config is required")
		return
	}
	if req.Config && req.SemesterExamCode == "" {
		writeJSONError(w, http.StatusBadRequest, shared.CodeValidationError, "semester_exam_code is required when evicting a config")
		return
	}

	evicted := make([]string, 0, 3)
	if req.StudentID != "" {
		s.deps.CacheEvictor.EvictStudentAverages(r.Context(), req.StudentID)
		evicted = append(evicted, "student:"+req.StudentID)
	}
	if req.ClassID != "" {
		s.deps.CacheEvictor.EvictClassRankings(r.Context(), req.ClassID)
		evicted = append(evicted, "class:"+req.ClassID)
	}
	if req.Config {
		year := req.AcademicYear
		if year == "" {
			year = timeutil.AcademicYearFor(timeutil.Now())
		}
		s.deps.CacheEvictor.EvictConfig(r.Context(), req.TeacherID, year, req.SemesterExamCode)
		target := req.TeacherID
		if target == "" {
			target = "default"
		}
		evicted = append(evicted, "config:"+target+":"+year+":"+req.SemesterExamCode)
	}

	writeJSONWithMeta(w, r, http.StatusOK, map[string]interface{}{"evicted": evicted}, nil)
}

// handleReloadCache handles POST /admin/v1/cache/reload. Rebuilds the
// config cache for an academic year from the stored rows.
func (s *Server) handleReloadCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSemesterConfigHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Config handler not configured")
		return
	}

	year := academicYearParam(r)
	count, err := s.deps.GetSemesterConfigHandler.ReloadYear(r.Context(), year)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, map[string]interface{}{
		"academic_year": year,
		"reloaded":      count,
	}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps a domain error to an HTTP response. The error code
// is the engine's stable code; the status follows the error kind.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	code := shared.Code(err)

	status := http.StatusInternalServerError
	switch {
	case shared.IsNotFound(err):
		status = http.StatusNotFound
	case shared.IsValidation(err):
		status = http.StatusBadRequest
	case shared.IsIncompleteInput(err):
		status = http.StatusUnprocessableEntity
	case code == shared.CodeValidationError:
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", logger.Err(err))
		writeJSONError(w, status, code, "An unexpected error occurred")
		return
	}

	writeJSONError(w, status, code, err.Error())
}
