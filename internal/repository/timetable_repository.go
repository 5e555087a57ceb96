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

// TimetableRepository persists generated timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const timetableColumns = `id, semester_id, name, status, quality_score, conflict_count, is_published,
       published_at, algorithm, generation_time_seconds, created_by_user_id, created_at, updated_at`

// Create inserts a new timetable row.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.Timetable) error {
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now
	const query = `INSERT INTO timetables
	(id, semester_id, name, status, quality_score, conflict_count, is_published, published_at, algorithm, generation_time_seconds, created_by_user_id, created_at, updated_at)
	VALUES (:id, :semester_id, :name, :status, :quality_score, :conflict_count, :is_published, :published_at, :algorithm, :generation_time_seconds, :created_by_user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, timetable); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// GetByID fetches a timetable by identifier.
func (r *TimetableRepository) GetByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetables WHERE id = $1`, timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// List returns timetables matching the filter together with the total count.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.SemesterID != "" {
		args = append(args, filter.SemesterID)
		conditions = append(conditions, fmt.Sprintf("semester_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.IsPublished != nil {
		args = append(args, *filter.IsPublished)
		conditions = append(conditions, fmt.Sprintf("is_published = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM timetables" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
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
	query := fmt.Sprintf(`SELECT %s FROM timetables%s ORDER BY conflict_count ASC, quality_score DESC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`,
		timetableColumns, where, len(args)-1, len(args))

	timetables := make([]models.Timetable, 0, size)
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}
	return timetables, total, nil
}

// UpdateMetrics records the outcome of a generation run on the timetable row.
func (r *TimetableRepository) UpdateMetrics(ctx context.Context, id string, status models.TimetableStatus, qualityScore *float64, conflictCount int, generationTime *float64) error {
	const query = `UPDATE timetables
	SET status = $2, quality_score = $3, conflict_count = $4, generation_time_seconds = $5, updated_at = $6
	WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, qualityScore, conflictCount, generationTime, time.Now().UTC()); err != nil {
		return fmt.Errorf("update timetable metrics: %w", err)
	}
	return nil
}

// SetPublished toggles the published flag and stamps the publish time.
func (r *TimetableRepository) SetPublished(ctx context.Context, id string, published bool) error {
	var publishedAt *time.Time
	if published {
		now := time.Now().UTC()
		publishedAt = &now
	}
	const query = `UPDATE timetables SET is_published = $2, published_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, published, publishedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("set timetable published: %w", err)
	}
	return nil
}

// UpdateConflictCount refreshes the cached conflict counter after a rescan.
func (r *TimetableRepository) UpdateConflictCount(ctx context.Context, id string, count int) error {
	const query = `UPDATE timetables SET conflict_count = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, count, time.Now().UTC()); err != nil {
		return fmt.Errorf("update timetable conflict count: %w", err)
	}
	return nil
}

// Delete removes a timetable together with its slots and conflicts.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete timetable: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_conflicts WHERE timetable_id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable conflicts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_slots WHERE timetable_id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable slots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM timetables WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	return tx.Commit()
}
