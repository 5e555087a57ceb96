package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/timeweaver/timeweaver-api/internal/dto"
	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
	"github.com/timeweaver/timeweaver-api/pkg/response"
)

type slotLocker interface {
	Lock(ctx context.Context, timetableID string, slotIDs []string) (int, error)
	Unlock(ctx context.Context, timetableID string, slotIDs []string) (int, error)
	LockAll(ctx context.Context, timetableID string) (int, error)
	UnlockAll(ctx context.Context, timetableID string) (int, error)
	ListLocked(ctx context.Context, timetableID string) ([]models.TimetableSlot, error)
	Statistics(ctx context.Context, timetableID string) (*models.LockStatistics, error)
}

type substituteRecommender interface {
	RecommendForSlot(ctx context.Context, timetableID, slotID, departmentID string, limit int) ([]models.SubstituteCandidate, error)
}

// LockHandler manages slot lock state and substitute recommendations for a
// timetable.
type LockHandler struct {
	locks       slotLocker
	substitutes substituteRecommender
	validate    *validator.Validate
}

// NewLockHandler constructs the handler.
func NewLockHandler(locks slotLocker, substitutes substituteRecommender) *LockHandler {
	return &LockHandler{locks: locks, substitutes: substitutes, validate: validator.New()}
}

// Lock godoc
// @Summary Lock specific slots of a timetable
// @Tags Locks
// @Accept json
// @Produce json
// @Param id path string true "Timetable id"
// @Param payload body dto.LockSlotsRequest true "Slot ids"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots/lock [post]
func (h *LockHandler) Lock(c *gin.Context) {
	h.setLocked(c, h.locks.Lock)
}

// Unlock godoc
// @Summary Unlock specific slots of a timetable
// @Tags Locks
// @Accept json
// @Produce json
// @Param id path string true "Timetable id"
// @Param payload body dto.LockSlotsRequest true "Slot ids"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots/unlock [post]
func (h *LockHandler) Unlock(c *gin.Context) {
	h.setLocked(c, h.locks.Unlock)
}

func (h *LockHandler) setLocked(c *gin.Context, fn func(context.Context, string, []string) (int, error)) {
	var req dto.LockSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lock payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lock payload"))
		return
	}
	changed, err := fn(c.Request.Context(), c.Param("id"), req.SlotIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.LockSlotsResponse{Changed: changed}, nil)
}

// LockAll godoc
// @Summary Lock every slot of a timetable
// @Tags Locks
// @Produce json
// @Param id path string true "Timetable id"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots/lock-all [post]
func (h *LockHandler) LockAll(c *gin.Context) {
	h.setAllLocked(c, h.locks.LockAll)
}

// UnlockAll godoc
// @Summary Unlock every slot of a timetable
// @Tags Locks
// @Produce json
// @Param id path string true "Timetable id"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots/unlock-all [post]
func (h *LockHandler) UnlockAll(c *gin.Context) {
	h.setAllLocked(c, h.locks.UnlockAll)
}

func (h *LockHandler) setAllLocked(c *gin.Context, fn func(context.Context, string) (int, error)) {
	changed, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.LockSlotsResponse{Changed: changed}, nil)
}

// Locked godoc
// @Summary List the locked slots of a timetable
// @Tags Locks
// @Produce json
// @Param id path string true "Timetable id"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots/locked [get]
func (h *LockHandler) Locked(c *gin.Context) {
	slots, err := h.locks.ListLocked(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Statistics godoc
// @Summary Lock statistics for a timetable
// @Tags Locks
// @Produce json
// @Param id path string true "Timetable id"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/slots/lock-statistics [get]
func (h *LockHandler) Statistics(c *gin.Context) {
	stats, err := h.locks.Statistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Substitutes godoc
// @Summary Recommend substitute teachers for one slot
// @Tags Locks
// @Produce json
// @Param id path string true "Timetable id"
// @Param slotId query string true "Slot id"
// @Param departmentId query string false "Preferred department"
// @Param limit query int false "Maximum candidates"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/substitutes [get]
func (h *LockHandler) Substitutes(c *gin.Context) {
	var query dto.SubstituteQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid substitute query"))
		return
	}
	if err := h.validate.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitute query"))
		return
	}
	if query.Limit == 0 {
		query.Limit = 5
	}

	candidates, err := h.substitutes.RecommendForSlot(
		c.Request.Context(),
		c.Param("id"),
		query.SlotID,
		strings.TrimSpace(query.DepartmentID),
		query.Limit,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}
