package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/timeweaver/timeweaver-api/internal/dto"
	"github.com/timeweaver/timeweaver-api/internal/models"
	"github.com/timeweaver/timeweaver-api/internal/service"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
	"github.com/timeweaver/timeweaver-api/pkg/response"
)

type timetableReader interface {
	Get(ctx context.Context, id string) (*models.Timetable, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	Slots(ctx context.Context, id string, filter models.SlotFilter) ([]models.TimetableSlot, error)
	Publish(ctx context.Context, id string) (*models.Timetable, error)
	Unpublish(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
	Conflicts(ctx context.Context, id string, severity models.ConflictSeverity) ([]models.Conflict, error)
	ConflictSummary(ctx context.Context, id string) (*models.ConflictSummary, error)
	ResolveConflict(ctx context.Context, conflictID, notes string) error
	Rescan(ctx context.Context, id string) ([]models.Conflict, error)
}

type timetableGenerator interface {
	Generate(ctx context.Context, params service.GenerateParams) ([]models.Timetable, error)
}

type workloadComputer interface {
	Compute(ctx context.Context, timetableID string) ([]models.FacultyWorkload, error)
	ComputeFor(ctx context.Context, timetableID, facultyID string) (*models.FacultyWorkload, error)
}

// TimetableHandler exposes REST endpoints for timetables, generation and
// conflict inspection.
type TimetableHandler struct {
	timetables timetableReader
	generator  timetableGenerator
	workload   workloadComputer
	validate   *validator.Validate
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(timetables timetableReader, generator timetableGenerator, workload workloadComputer) *TimetableHandler {
	return &TimetableHandler{
		timetables: timetables,
		generator:  generator,
		workload:   workload,
		validate:   validator.New(),
	}
}

// Generate godoc
// @Summary Generate timetables for a semester
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation parameters"
// @Success 201 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid generation payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload"))
		return
	}

	params := service.GenerateParams{
		SemesterID:          req.SemesterID,
		Name:                req.Name,
		NumSolutions:        req.NumSolutions,
		MaxGenerations:      req.MaxGenerations,
		PopulationSize:      req.PopulationSize,
		BaselineTimetableID: req.BaselineTimetableID,
	}
	timetables, err := h.generator.Generate(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.GenerateTimetableResponse{Timetables: summarize(timetables)})
}

// List godoc
// @Summary List timetables
// @Tags Timetables
// @Produce json
// @Param semesterId query string false "Semester filter"
// @Param status query string false "Status filter"
// @Param published query bool false "Published filter"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	filter := models.TimetableFilter{
		SemesterID: strings.TrimSpace(c.Query("semesterId")),
		Status:     models.TimetableStatus(c.Query("status")),
		Page:       intQuery(c, "page", 1),
		PageSize:   intQuery(c, "pageSize", 20),
	}
	if raw := c.Query("published"); raw != "" {
		published := raw == "true"
		filter.IsPublished = &published
	}

	timetables, total, err := h.timetables.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, timetables, pagination)
}

// Get godoc
// @Summary Fetch a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable id"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.timetables.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Slots godoc
// @Summary List the slots of a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable id"
// @Param dayOfWeek query int false "Day filter (0-6)"
// @Param sectionId query string false "Section filter"
// @Param locked query bool false "Lock state filter"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots [get]
func (h *TimetableHandler) Slots(c *gin.Context) {
	filter := models.SlotFilter{SectionID: strings.TrimSpace(c.Query("sectionId"))}
	if raw := c.Query("dayOfWeek"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil || day < 0 || day > 6 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dayOfWeek must be within 0-6"))
			return
		}
		filter.DayOfWeek = &day
	}
	if raw := c.Query("locked"); raw != "" {
		locked := raw == "true"
		filter.Locked = &locked
	}

	slots, err := h.timetables.Slots(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Publish godoc
// @Summary Publish a timetable and freeze its slots
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable id"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	timetable, err := h.timetables.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Unpublish godoc
// @Summary Withdraw a published timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable id"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/unpublish [post]
func (h *TimetableHandler) Unpublish(c *gin.Context) {
	timetable, err := h.timetables.Unpublish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Delete godoc
// @Summary Delete a timetable
// @Tags Timetables
// @Param id path string true "Timetable id"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.timetables.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Conflicts godoc
// @Summary List the conflicts of a timetable
// @Tags Conflicts
// @Produce json
// @Param id path string true "Timetable id"
// @Param severity query string false "Severity filter"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/conflicts [get]
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	severity := models.ConflictSeverity(strings.ToUpper(c.Query("severity")))
	conflicts, err := h.timetables.Conflicts(c.Request.Context(), c.Param("id"), severity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// ConflictSummary godoc
// @Summary Summarize the conflicts of a timetable
// @Tags Conflicts
// @Produce json
// @Param id path string true "Timetable id"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/conflicts/summary [get]
func (h *TimetableHandler) ConflictSummary(c *gin.Context) {
	summary, err := h.timetables.ConflictSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Rescan godoc
// @Summary Recompute the conflicts of a timetable
// @Tags Conflicts
// @Produce json
// @Param id path string true "Timetable id"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/conflicts/rescan [post]
func (h *TimetableHandler) Rescan(c *gin.Context) {
	conflicts, err := h.timetables.Rescan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// ResolveConflict godoc
// @Summary Mark a conflict as resolved
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param conflictId path string true "Conflict id"
// @Param payload body dto.ResolveConflictRequest true "Resolution note"
// @Success 204
// @Router /conflicts/{conflictId}/resolve [post]
func (h *TimetableHandler) ResolveConflict(c *gin.Context) {
	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolution payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload"))
		return
	}
	if err := h.timetables.ResolveConflict(c.Request.Context(), c.Param("conflictId"), req.Notes); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Workload godoc
// @Summary Faculty workload derived from a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable id"
// @Param facultyId query string false "Limit to one faculty member"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/workload [get]
func (h *TimetableHandler) Workload(c *gin.Context) {
	timetableID := c.Param("id")
	if facultyID := strings.TrimSpace(c.Query("facultyId")); facultyID != "" {
		workload, err := h.workload.ComputeFor(c.Request.Context(), timetableID, facultyID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, workload, nil)
		return
	}

	workloads, err := h.workload.Compute(c.Request.Context(), timetableID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workloads, nil)
}

func summarize(timetables []models.Timetable) []dto.TimetableSummary {
	summaries := make([]dto.TimetableSummary, 0, len(timetables))
	for _, t := range timetables {
		summaries = append(summaries, dto.TimetableSummary{
			ID:             t.ID,
			SemesterID:     t.SemesterID,
			Name:           t.Name,
			Status:         string(t.Status),
			QualityScore:   t.QualityScore,
			ConflictCount:  t.ConflictCount,
			IsPublished:    t.IsPublished,
			Algorithm:      t.Algorithm,
			GenerationTime: t.GenerationTime,
		})
	}
	return summaries
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
