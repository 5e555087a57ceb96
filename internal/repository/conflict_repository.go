package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

// ConflictRepository persists detected timetable conflicts.
type ConflictRepository struct {
	db *sqlx.DB
}

// NewConflictRepository constructs the repository.
func NewConflictRepository(db *sqlx.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

const conflictColumns = `id, timetable_id, conflict_type, severity, slot_ids, description, is_resolved, resolution_notes, detected_at, resolved_at`

// ReplaceForTimetable drops existing unresolved conflicts and stores the fresh
// detection result atomically, so a rescan never leaves stale rows behind.
func (r *ConflictRepository) ReplaceForTimetable(ctx context.Context, timetableID string, conflicts []models.Conflict) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace conflicts: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_conflicts WHERE timetable_id = $1 AND is_resolved = FALSE`, timetableID); err != nil {
		return fmt.Errorf("clear conflicts: %w", err)
	}

	const query = `INSERT INTO timetable_conflicts
	(id, timetable_id, conflict_type, severity, slot_ids, description, is_resolved, resolution_notes, detected_at, resolved_at)
	VALUES (:id, :timetable_id, :conflict_type, :severity, :slot_ids, :description, :is_resolved, :resolution_notes, :detected_at, :resolved_at)`
	now := time.Now().UTC()
	for i := range conflicts {
		if conflicts[i].ID == "" {
			conflicts[i].ID = uuid.NewString()
		}
		conflicts[i].TimetableID = timetableID
		if conflicts[i].DetectedAt.IsZero() {
			conflicts[i].DetectedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, &conflicts[i]); err != nil {
			return fmt.Errorf("insert conflict: %w", err)
		}
	}
	return tx.Commit()
}

// ListByTimetable returns conflicts for a timetable, optionally filtered by severity.
func (r *ConflictRepository) ListByTimetable(ctx context.Context, timetableID string, severity models.ConflictSeverity) ([]models.Conflict, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_conflicts WHERE timetable_id = $1`, conflictColumns)
	args := []interface{}{timetableID}
	if severity != "" {
		args = append(args, severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	query += " ORDER BY severity, conflict_type, detected_at"

	conflicts := make([]models.Conflict, 0, 8)
	if err := r.db.SelectContext(ctx, &conflicts, query, args...); err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return conflicts, nil
}

// GetByID fetches a single conflict.
func (r *ConflictRepository) GetByID(ctx context.Context, id string) (*models.Conflict, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_conflicts WHERE id = $1`, conflictColumns)
	var conflict models.Conflict
	if err := r.db.GetContext(ctx, &conflict, query, id); err != nil {
		return nil, err
	}
	return &conflict, nil
}

// Summary aggregates conflict counts per type and severity for a timetable.
func (r *ConflictRepository) Summary(ctx context.Context, timetableID string) (*models.ConflictSummary, error) {
	rows := []struct {
		ConflictType models.ConflictType     `db:"conflict_type"`
		Severity     models.ConflictSeverity `db:"severity"`
		Resolved     bool                    `db:"is_resolved"`
		Count        int                     `db:"count"`
	}{}
	const query = `SELECT conflict_type, severity, is_resolved, COUNT(*) AS count
	FROM timetable_conflicts WHERE timetable_id = $1
	GROUP BY conflict_type, severity, is_resolved`
	if err := r.db.SelectContext(ctx, &rows, query, timetableID); err != nil {
		return nil, fmt.Errorf("summarize conflicts: %w", err)
	}

	summary := &models.ConflictSummary{
		ByType:     map[models.ConflictType]int{},
		BySeverity: map[models.ConflictSeverity]int{},
	}
	for _, row := range rows {
		summary.TotalConflicts += row.Count
		summary.ByType[row.ConflictType] += row.Count
		summary.BySeverity[row.Severity] += row.Count
		if !row.Resolved {
			summary.UnresolvedCount += row.Count
		}
	}
	return summary, nil
}

// Resolve marks a conflict as handled and stores the operator's note.
func (r *ConflictRepository) Resolve(ctx context.Context, id, notes string) error {
	const query = `UPDATE timetable_conflicts SET is_resolved = TRUE, resolution_notes = $2, resolved_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	return nil
}
