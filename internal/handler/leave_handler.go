package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/timeweaver/timeweaver-api/internal/dto"
	"github.com/timeweaver/timeweaver-api/internal/models"
	"github.com/timeweaver/timeweaver-api/internal/service"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
	"github.com/timeweaver/timeweaver-api/pkg/response"
)

type leaveManager interface {
	Analyze(ctx context.Context, timetableID, facultyID string, strategy models.LeaveStrategy) (*models.ImpactAnalysis, error)
	Create(ctx context.Context, params service.CreateLeaveParams) (*models.FacultyLeave, error)
	Get(ctx context.Context, id string) (*models.FacultyLeave, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.FacultyLeave, int, error)
	Approve(ctx context.Context, id string) (*models.FacultyLeave, error)
	Reject(ctx context.Context, id string) (*models.FacultyLeave, error)
	Cancel(ctx context.Context, id string) (*models.FacultyLeave, error)
	Apply(ctx context.Context, id string, appliedBy string) (*models.FacultyLeave, error)
}

// LeaveHandler exposes the faculty leave workflow endpoints.
type LeaveHandler struct {
	leaves   leaveManager
	validate *validator.Validate
}

// NewLeaveHandler constructs the handler.
func NewLeaveHandler(leaves leaveManager) *LeaveHandler {
	return &LeaveHandler{leaves: leaves, validate: validator.New()}
}

// Analyze godoc
// @Summary Dry-run impact analysis for a faculty absence
// @Tags Leaves
// @Accept json
// @Produce json
// @Param payload body dto.AnalyzeLeaveRequest true "Faculty and timetable"
// @Success 200 {object} response.Envelope
// @Router /leaves/analyze [post]
func (h *LeaveHandler) Analyze(c *gin.Context) {
	var req dto.AnalyzeLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid analysis payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid analysis payload"))
		return
	}
	strategy := models.StrategyWithinSectionSwap
	if req.Strategy != "" {
		strategy = models.LeaveStrategy(strings.ToUpper(req.Strategy))
		if !models.ValidLeaveStrategy(strategy) {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown leave strategy"))
			return
		}
	}
	analysis, err := h.leaves.Analyze(c.Request.Context(), req.TimetableID, req.FacultyID, strategy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis, nil)
}

// Create godoc
// @Summary Propose a faculty leave
// @Tags Leaves
// @Accept json
// @Produce json
// @Param payload body dto.CreateLeaveRequest true "Leave request"
// @Success 201 {object} response.Envelope
// @Router /leaves [post]
func (h *LeaveHandler) Create(c *gin.Context) {
	var req dto.CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid leave payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload"))
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD"))
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD"))
		return
	}

	leave, err := h.leaves.Create(c.Request.Context(), service.CreateLeaveParams{
		FacultyID:   req.FacultyID,
		SemesterID:  req.SemesterID,
		TimetableID: req.TimetableID,
		StartDate:   startDate,
		EndDate:     endDate,
		LeaveType:   models.LeaveType(strings.ToUpper(req.LeaveType)),
		Strategy:    models.LeaveStrategy(strings.ToUpper(req.Strategy)),
		Reason:      req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, leave)
}

// List godoc
// @Summary List faculty leaves
// @Tags Leaves
// @Produce json
// @Param semesterId query string false "Semester filter"
// @Param facultyId query string false "Faculty filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /leaves [get]
func (h *LeaveHandler) List(c *gin.Context) {
	filter := models.LeaveFilter{
		SemesterID: strings.TrimSpace(c.Query("semesterId")),
		FacultyID:  strings.TrimSpace(c.Query("facultyId")),
		Status:     models.LeaveStatus(strings.ToUpper(c.Query("status"))),
		Page:       intQuery(c, "page", 1),
		PageSize:   intQuery(c, "pageSize", 20),
	}
	leaves, total, err := h.leaves.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, leaves, pagination)
}

// Get godoc
// @Summary Fetch a faculty leave
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave id"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id} [get]
func (h *LeaveHandler) Get(c *gin.Context) {
	leave, err := h.leaves.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Approve godoc
// @Summary Approve a proposed leave
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave id"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/approve [post]
func (h *LeaveHandler) Approve(c *gin.Context) {
	h.transition(c, h.leaves.Approve)
}

// Reject godoc
// @Summary Reject a proposed leave
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave id"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/reject [post]
func (h *LeaveHandler) Reject(c *gin.Context) {
	h.transition(c, h.leaves.Reject)
}

// Cancel godoc
// @Summary Cancel a leave before it is applied
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave id"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/cancel [post]
func (h *LeaveHandler) Cancel(c *gin.Context) {
	h.transition(c, h.leaves.Cancel)
}

// Apply godoc
// @Summary Execute an approved leave against its timetable
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path string true "Leave id"
// @Param payload body dto.ApplyLeaveRequest false "Audit info"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/apply [post]
func (h *LeaveHandler) Apply(c *gin.Context) {
	var req dto.ApplyLeaveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid apply payload"))
			return
		}
	}
	leave, err := h.leaves.Apply(c.Request.Context(), c.Param("id"), req.AppliedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

func (h *LeaveHandler) transition(c *gin.Context, fn func(context.Context, string) (*models.FacultyLeave, error)) {
	leave, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}
