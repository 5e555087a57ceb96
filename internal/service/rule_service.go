package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type ruleStore interface {
	Create(ctx context.Context, rule *models.InstitutionalRule) error
	Update(ctx context.Context, rule *models.InstitutionalRule) error
	GetByID(ctx context.Context, id string) (*models.InstitutionalRule, error)
	GetByName(ctx context.Context, name string) (*models.InstitutionalRule, error)
	List(ctx context.Context, filter models.RuleFilter) ([]models.InstitutionalRule, int, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// RuleParams describes a rule write.
type RuleParams struct {
	Name                 string
	Description          *string
	RuleType             models.RuleType
	Configuration        []byte
	IsHardConstraint     bool
	Weight               float64
	AppliesToDepartments []string
	AppliesToYears       []int64
}

// RuleService manages institutional rules. Configuration is validated at
// write time so invalid rules never reach the generator.
type RuleService struct {
	repo   ruleStore
	logger *zap.Logger
}

// NewRuleService constructs the service.
func NewRuleService(repo ruleStore, logger *zap.Logger) *RuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{repo: repo, logger: logger}
}

// Create validates and stores a new rule.
func (s *RuleService) Create(ctx context.Context, params RuleParams) (*models.InstitutionalRule, error) {
	if _, err := models.ParseRuleConfig(params.RuleType, params.Configuration); err != nil {
		return nil, err
	}
	if existing, err := s.repo.GetByName(ctx, params.Name); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("rule %q already exists", params.Name))
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check rule name")
	}

	rule := &models.InstitutionalRule{
		Name:                 params.Name,
		Description:          params.Description,
		RuleType:             params.RuleType,
		Configuration:        s.configJSON(params.Configuration),
		IsHardConstraint:     params.IsHardConstraint,
		Weight:               params.Weight,
		AppliesToDepartments: pq.StringArray(params.AppliesToDepartments),
		AppliesToYears:       pq.Int64Array(params.AppliesToYears),
		IsActive:             true,
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rule")
	}
	return rule, nil
}

// Update validates and rewrites an existing rule.
func (s *RuleService) Update(ctx context.Context, id string, params RuleParams) (*models.InstitutionalRule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := models.ParseRuleConfig(params.RuleType, params.Configuration); err != nil {
		return nil, err
	}
	if params.Name != rule.Name {
		if existing, err := s.repo.GetByName(ctx, params.Name); err == nil && existing != nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("rule %q already exists", params.Name))
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check rule name")
		}
	}

	rule.Name = params.Name
	rule.Description = params.Description
	rule.RuleType = params.RuleType
	rule.Configuration = s.configJSON(params.Configuration)
	rule.IsHardConstraint = params.IsHardConstraint
	rule.Weight = params.Weight
	rule.AppliesToDepartments = pq.StringArray(params.AppliesToDepartments)
	rule.AppliesToYears = pq.Int64Array(params.AppliesToYears)
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rule")
	}
	return rule, nil
}

// Get fetches one rule.
func (s *RuleService) Get(ctx context.Context, id string) (*models.InstitutionalRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rule")
	}
	return rule, nil
}

// List returns rules matching the filter.
func (s *RuleService) List(ctx context.Context, filter models.RuleFilter) ([]models.InstitutionalRule, int, error) {
	rules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rules")
	}
	return rules, total, nil
}

// SetActive toggles a rule on or off.
func (s *RuleService) SetActive(ctx context.Context, id string, active bool) (*models.InstitutionalRule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle rule")
	}
	rule.IsActive = active
	return rule, nil
}

// Delete removes a rule.
func (s *RuleService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete rule")
	}
	return nil
}

func (s *RuleService) configJSON(raw []byte) types.JSONText {
	if len(raw) == 0 {
		return types.JSONText("{}")
	}
	return types.JSONText(raw)
}
