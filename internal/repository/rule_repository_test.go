package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

func ruleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "rule_type", "configuration", "is_hard_constraint", "weight",
		"applies_to_departments", "applies_to_years", "is_active", "created_at",
	}).AddRow("r1", "No Saturday classes", nil, "DAY_BLACKOUT", `{"blackout_days":[6]}`, true, 1.0,
		"{}", "{}", true, time.Now())
}

func TestRuleRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRuleRepository(db)

	mock.ExpectExec("INSERT INTO institutional_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.InstitutionalRule{
		Name:          "No Saturday classes",
		RuleType:      models.RuleDayBlackout,
		Configuration: []byte(`{"blackout_days":[6]}`),
		Weight:        1.0,
		IsActive:      true,
	}
	require.NoError(t, repo.Create(context.Background(), rule))
	assert.NotEmpty(t, rule.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRuleRepository(db)

	mock.ExpectQuery("SELECT id, name, description, .+ FROM institutional_rules WHERE is_active = TRUE ORDER BY is_hard_constraint DESC, name").
		WillReturnRows(ruleRows())

	rules, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, models.RuleDayBlackout, rules[0].RuleType)
	assert.True(t, rules[0].IsHardConstraint)
}

func TestRuleRepositoryListFiltersByType(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRuleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM institutional_rules WHERE rule_type = $1")).
		WithArgs("DAY_BLACKOUT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, name, description, .+ FROM institutional_rules WHERE rule_type = .+ ORDER BY name").
		WithArgs("DAY_BLACKOUT", 20, 0).
		WillReturnRows(ruleRows())

	rules, total, err := repo.List(context.Background(), models.RuleFilter{RuleType: models.RuleDayBlackout})
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleRepositorySetActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRuleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE institutional_rules SET is_active = $2 WHERE id = $1")).
		WithArgs("r1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetActive(context.Background(), "r1", false))
	assert.NoError(t, mock.ExpectationsWereMet())
}
