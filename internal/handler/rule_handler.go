package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/timeweaver/timeweaver-api/internal/dto"
	"github.com/timeweaver/timeweaver-api/internal/models"
	"github.com/timeweaver/timeweaver-api/internal/service"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
	"github.com/timeweaver/timeweaver-api/pkg/response"
)

type ruleManager interface {
	Create(ctx context.Context, params service.RuleParams) (*models.InstitutionalRule, error)
	Update(ctx context.Context, id string, params service.RuleParams) (*models.InstitutionalRule, error)
	Get(ctx context.Context, id string) (*models.InstitutionalRule, error)
	List(ctx context.Context, filter models.RuleFilter) ([]models.InstitutionalRule, int, error)
	SetActive(ctx context.Context, id string, active bool) (*models.InstitutionalRule, error)
	Delete(ctx context.Context, id string) error
}

// RuleHandler exposes CRUD endpoints for institutional scheduling rules.
type RuleHandler struct {
	rules    ruleManager
	validate *validator.Validate
}

// NewRuleHandler constructs the handler.
func NewRuleHandler(rules ruleManager) *RuleHandler {
	return &RuleHandler{rules: rules, validate: validator.New()}
}

// Create godoc
// @Summary Create an institutional rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body dto.RuleRequest true "Rule definition"
// @Success 201 {object} response.Envelope
// @Router /rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	params, ok := h.bindRule(c)
	if !ok {
		return
	}
	rule, err := h.rules.Create(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// Update godoc
// @Summary Replace an institutional rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule id"
// @Param payload body dto.RuleRequest true "Rule definition"
// @Success 200 {object} response.Envelope
// @Router /rules/{id} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	params, ok := h.bindRule(c)
	if !ok {
		return
	}
	rule, err := h.rules.Update(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Get godoc
// @Summary Fetch an institutional rule
// @Tags Rules
// @Produce json
// @Param id path string true "Rule id"
// @Success 200 {object} response.Envelope
// @Router /rules/{id} [get]
func (h *RuleHandler) Get(c *gin.Context) {
	rule, err := h.rules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// List godoc
// @Summary List institutional rules
// @Tags Rules
// @Produce json
// @Param ruleType query string false "Rule type filter"
// @Param active query bool false "Active state filter"
// @Success 200 {object} response.Envelope
// @Router /rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	filter := models.RuleFilter{
		RuleType: models.RuleType(strings.ToUpper(c.Query("ruleType"))),
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "pageSize", 20),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	rules, total, err := h.rules.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, rules, pagination)
}

// Toggle godoc
// @Summary Activate or deactivate a rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule id"
// @Param payload body dto.ToggleRuleRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /rules/{id}/toggle [patch]
func (h *RuleHandler) Toggle(c *gin.Context) {
	var req dto.ToggleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid toggle payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid toggle payload"))
		return
	}
	rule, err := h.rules.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Delete godoc
// @Summary Delete an institutional rule
// @Tags Rules
// @Param id path string true "Rule id"
// @Success 204
// @Router /rules/{id} [delete]
func (h *RuleHandler) Delete(c *gin.Context) {
	if err := h.rules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *RuleHandler) bindRule(c *gin.Context) (service.RuleParams, bool) {
	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rule payload"))
		return service.RuleParams{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule payload"))
		return service.RuleParams{}, false
	}
	return service.RuleParams{
		Name:                 req.Name,
		Description:          req.Description,
		RuleType:             models.RuleType(req.RuleType),
		Configuration:        req.Configuration,
		IsHardConstraint:     req.IsHardConstraint,
		Weight:               req.Weight,
		AppliesToDepartments: req.AppliesToDepartments,
		AppliesToYears:       req.AppliesToYears,
	}, true
}
