package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

// LeaveRepository persists faculty leave requests and their workflow state.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

const leaveColumns = `id, faculty_id, semester_id, timetable_id, start_date, end_date, leave_type, strategy,
       status, replacement_faculty_id, impact_analysis, resolution_details, reason, created_by,
       created_at, updated_at, approved_at, applied_at`

// Create inserts a new leave request.
func (r *LeaveRepository) Create(ctx context.Context, leave *models.FacultyLeave) error {
	if leave.ID == "" {
		leave.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if leave.CreatedAt.IsZero() {
		leave.CreatedAt = now
	}
	leave.UpdatedAt = now
	const query = `INSERT INTO faculty_leaves
	(id, faculty_id, semester_id, timetable_id, start_date, end_date, leave_type, strategy, status, replacement_faculty_id, impact_analysis, resolution_details, reason, created_by, created_at, updated_at, approved_at, applied_at)
	VALUES (:id, :faculty_id, :semester_id, :timetable_id, :start_date, :end_date, :leave_type, :strategy, :status, :replacement_faculty_id, :impact_analysis, :resolution_details, :reason, :created_by, :created_at, :updated_at, :approved_at, :applied_at)`
	if _, err := r.db.NamedExecContext(ctx, query, leave); err != nil {
		return fmt.Errorf("create leave: %w", err)
	}
	return nil
}

// GetByID fetches a leave request by identifier.
func (r *LeaveRepository) GetByID(ctx context.Context, id string) (*models.FacultyLeave, error) {
	query := fmt.Sprintf(`SELECT %s FROM faculty_leaves WHERE id = $1`, leaveColumns)
	var leave models.FacultyLeave
	if err := r.db.GetContext(ctx, &leave, query, id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// List returns leave requests matching the filter with the total count.
func (r *LeaveRepository) List(ctx context.Context, filter models.LeaveFilter) ([]models.FacultyLeave, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.SemesterID != "" {
		args = append(args, filter.SemesterID)
		conditions = append(conditions, fmt.Sprintf("semester_id = $%d", len(args)))
	}
	if filter.FacultyID != "" {
		args = append(args, filter.FacultyID)
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM faculty_leaves"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count leaves: %w", err)
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
	query := fmt.Sprintf(`SELECT %s FROM faculty_leaves%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		leaveColumns, where, len(args)-1, len(args))

	leaves := make([]models.FacultyLeave, 0, size)
	if err := r.db.SelectContext(ctx, &leaves, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list leaves: %w", err)
	}
	return leaves, total, nil
}

// UpdateStatus moves the leave to a new workflow status, stamping the matching timestamp.
func (r *LeaveRepository) UpdateStatus(ctx context.Context, id string, status models.LeaveStatus) error {
	now := time.Now().UTC()
	sets := []string{"status = $2", "updated_at = $3"}
	args := []interface{}{id, status, now}
	switch status {
	case models.LeaveApproved:
		args = append(args, now)
		sets = append(sets, fmt.Sprintf("approved_at = $%d", len(args)))
	case models.LeaveApplied:
		args = append(args, now)
		sets = append(sets, fmt.Sprintf("applied_at = $%d", len(args)))
	}
	query := fmt.Sprintf(`UPDATE faculty_leaves SET %s WHERE id = $1`, strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update leave status: %w", err)
	}
	return nil
}

// SaveImpactAnalysis stores the serialized impact analysis on the leave row.
func (r *LeaveRepository) SaveImpactAnalysis(ctx context.Context, id string, analysis types.JSONText) error {
	const query = `UPDATE faculty_leaves SET impact_analysis = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, analysis, time.Now().UTC()); err != nil {
		return fmt.Errorf("save leave impact: %w", err)
	}
	return nil
}

// SaveResolution stores the applied resolution details on the leave row.
func (r *LeaveRepository) SaveResolution(ctx context.Context, id string, details types.JSONText) error {
	const query = `UPDATE faculty_leaves SET resolution_details = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, details, time.Now().UTC()); err != nil {
		return fmt.Errorf("save leave resolution: %w", err)
	}
	return nil
}
