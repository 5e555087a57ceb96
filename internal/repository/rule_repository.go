package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

// RuleRepository persists institutional scheduling rules.
type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository constructs the repository.
func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, name, description, rule_type, configuration, is_hard_constraint, weight,
       applies_to_departments, applies_to_years, is_active, created_at`

// Create inserts a new rule row.
func (r *RuleRepository) Create(ctx context.Context, rule *models.InstitutionalRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO institutional_rules
	(id, name, description, rule_type, configuration, is_hard_constraint, weight, applies_to_departments, applies_to_years, is_active, created_at)
	VALUES (:id, :name, :description, :rule_type, :configuration, :is_hard_constraint, :weight, :applies_to_departments, :applies_to_years, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a rule.
func (r *RuleRepository) Update(ctx context.Context, rule *models.InstitutionalRule) error {
	const query = `UPDATE institutional_rules
	SET name = :name, description = :description, rule_type = :rule_type, configuration = :configuration,
	    is_hard_constraint = :is_hard_constraint, weight = :weight,
	    applies_to_departments = :applies_to_departments, applies_to_years = :applies_to_years,
	    is_active = :is_active
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return nil
}

// GetByID fetches a rule by identifier.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.InstitutionalRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM institutional_rules WHERE id = $1`, ruleColumns)
	var rule models.InstitutionalRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// GetByName fetches a rule by its unique name.
func (r *RuleRepository) GetByName(ctx context.Context, name string) (*models.InstitutionalRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM institutional_rules WHERE name = $1`, ruleColumns)
	var rule models.InstitutionalRule
	if err := r.db.GetContext(ctx, &rule, query, name); err != nil {
		return nil, err
	}
	return &rule, nil
}

// List returns rules matching the filter with the total count.
func (r *RuleRepository) List(ctx context.Context, filter models.RuleFilter) ([]models.InstitutionalRule, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if filter.RuleType != "" {
		args = append(args, filter.RuleType)
		conditions = append(conditions, fmt.Sprintf("rule_type = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM institutional_rules"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count rules: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 || size > 100 {
		size = 20
	}
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(`SELECT %s FROM institutional_rules%s ORDER BY name LIMIT $%d OFFSET $%d`,
		ruleColumns, where, len(args)-1, len(args))

	rules := make([]models.InstitutionalRule, 0, size)
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rules: %w", err)
	}
	return rules, total, nil
}

// ListActive returns every active rule, the set the generator and validators load.
func (r *RuleRepository) ListActive(ctx context.Context) ([]models.InstitutionalRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM institutional_rules WHERE is_active = TRUE ORDER BY is_hard_constraint DESC, name`, ruleColumns)
	rules := make([]models.InstitutionalRule, 0, 16)
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return rules, nil
}

// SetActive toggles a rule without touching its configuration.
func (r *RuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE institutional_rules SET is_active = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active); err != nil {
		return fmt.Errorf("toggle rule: %w", err)
	}
	return nil
}

// Delete removes a rule permanently.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM institutional_rules WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}
