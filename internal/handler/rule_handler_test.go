package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
	"github.com/timeweaver/timeweaver-api/internal/service"
)

type ruleManagerMock struct {
	captured service.RuleParams
	toggled  *bool
	rule     *models.InstitutionalRule
}

func (m *ruleManagerMock) Create(ctx context.Context, params service.RuleParams) (*models.InstitutionalRule, error) {
	m.captured = params
	return m.rule, nil
}

func (m *ruleManagerMock) Update(ctx context.Context, id string, params service.RuleParams) (*models.InstitutionalRule, error) {
	m.captured = params
	return m.rule, nil
}

func (m *ruleManagerMock) Get(ctx context.Context, id string) (*models.InstitutionalRule, error) {
	return m.rule, nil
}

func (m *ruleManagerMock) List(ctx context.Context, filter models.RuleFilter) ([]models.InstitutionalRule, int, error) {
	return nil, 0, nil
}

func (m *ruleManagerMock) SetActive(ctx context.Context, id string, active bool) (*models.InstitutionalRule, error) {
	m.toggled = &active
	return m.rule, nil
}

func (m *ruleManagerMock) Delete(ctx context.Context, id string) error {
	return nil
}

func TestCreateRuleSuccess(t *testing.T) {
	mockSvc := &ruleManagerMock{rule: &models.InstitutionalRule{ID: "rule-1"}}
	handler := NewRuleHandler(mockSvc)

	payload := []byte(`{"name":"No late labs","ruleType":"TIME_WINDOW","isHardConstraint":true,"configuration":{"min_slot_index":1,"max_slot_index":6}}`)
	c, w := testContext(t, http.MethodPost, "/rules", payload)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "No late labs", mockSvc.captured.Name)
	require.Equal(t, models.RuleTimeWindow, mockSvc.captured.RuleType)
	require.True(t, mockSvc.captured.IsHardConstraint)
}

func TestCreateRuleRejectsUnknownType(t *testing.T) {
	handler := NewRuleHandler(&ruleManagerMock{})

	payload := []byte(`{"name":"bad","ruleType":"LUNCH_BREAK"}`)
	c, w := testContext(t, http.MethodPost, "/rules", payload)

	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestToggleRule(t *testing.T) {
	mockSvc := &ruleManagerMock{rule: &models.InstitutionalRule{ID: "rule-1"}}
	handler := NewRuleHandler(mockSvc)

	c, w := testContext(t, http.MethodPatch, "/rules/rule-1/toggle", []byte(`{"active":false}`))
	c.Params = gin.Params{{Key: "id", Value: "rule-1"}}

	handler.Toggle(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.toggled)
	require.False(t, *mockSvc.toggled)
}

func TestToggleRuleRequiresActiveFlag(t *testing.T) {
	handler := NewRuleHandler(&ruleManagerMock{})

	c, w := testContext(t, http.MethodPatch, "/rules/rule-1/toggle", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "rule-1"}}

	handler.Toggle(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
