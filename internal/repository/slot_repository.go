package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

// SlotRepository persists the individual scheduled slots of a timetable.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository constructs the repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

const slotColumns = `id, timetable_id, section_id, course_id, room_id, start_slot, duration_slots,
       day_of_week, primary_faculty_id, assisting_faculty_ids, batch_number, is_locked, created_at`

// BulkInsert stores all slots of a freshly generated timetable in one transaction.
func (r *SlotRepository) BulkInsert(ctx context.Context, slots []models.TimetableSlot) error {
	if len(slots) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert slots: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO timetable_slots
	(id, timetable_id, section_id, course_id, room_id, start_slot, duration_slots, day_of_week, primary_faculty_id, assisting_faculty_ids, batch_number, is_locked, created_at)
	VALUES (:id, :timetable_id, :section_id, :course_id, :room_id, :start_slot, :duration_slots, :day_of_week, :primary_faculty_id, :assisting_faculty_ids, :batch_number, :is_locked, :created_at)`
	now := time.Now().UTC()
	for i := range slots {
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		if slots[i].CreatedAt.IsZero() {
			slots[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, &slots[i]); err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}
	return tx.Commit()
}

// GetByID fetches a single slot.
func (r *SlotRepository) GetByID(ctx context.Context, id string) (*models.TimetableSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_slots WHERE id = $1`, slotColumns)
	var slot models.TimetableSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListByTimetable returns the slots of a timetable, optionally narrowed by day,
// section or lock state.
func (r *SlotRepository) ListByTimetable(ctx context.Context, timetableID string, filter models.SlotFilter) ([]models.TimetableSlot, error) {
	conditions := []string{"timetable_id = $1"}
	args := []interface{}{timetableID}
	if filter.DayOfWeek != nil {
		args = append(args, *filter.DayOfWeek)
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)))
	}
	if filter.Locked != nil {
		args = append(args, *filter.Locked)
		conditions = append(conditions, fmt.Sprintf("is_locked = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM timetable_slots WHERE %s ORDER BY day_of_week, start_slot, section_id`,
		slotColumns, strings.Join(conditions, " AND "))
	slots := make([]models.TimetableSlot, 0, 64)
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// ListByFaculty returns the slots across a timetable where the faculty member
// teaches, either as primary or as an assistant.
func (r *SlotRepository) ListByFaculty(ctx context.Context, timetableID, facultyID string) ([]models.TimetableSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_slots
	WHERE timetable_id = $1 AND (primary_faculty_id = $2 OR $2 = ANY(assisting_faculty_ids))
	ORDER BY day_of_week, start_slot`, slotColumns)
	slots := make([]models.TimetableSlot, 0, 16)
	if err := r.db.SelectContext(ctx, &slots, query, timetableID, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty slots: %w", err)
	}
	return slots, nil
}

// SetLocked flips the lock flag on the given slots and reports how many rows changed.
func (r *SlotRepository) SetLocked(ctx context.Context, timetableID string, slotIDs []string, locked bool) (int, error) {
	if len(slotIDs) == 0 {
		return 0, nil
	}
	const query = `UPDATE timetable_slots SET is_locked = $3 WHERE timetable_id = $1 AND id = ANY($2)`
	res, err := r.db.ExecContext(ctx, query, timetableID, pq.Array(slotIDs), locked)
	if err != nil {
		return 0, fmt.Errorf("set slots locked: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set slots locked rows: %w", err)
	}
	return int(affected), nil
}

// SetAllLocked flips the lock flag on every slot of a timetable.
func (r *SlotRepository) SetAllLocked(ctx context.Context, timetableID string, locked bool) (int, error) {
	const query = `UPDATE timetable_slots SET is_locked = $2 WHERE timetable_id = $1 AND is_locked <> $2`
	res, err := r.db.ExecContext(ctx, query, timetableID, locked)
	if err != nil {
		return 0, fmt.Errorf("set all slots locked: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set all slots locked rows: %w", err)
	}
	return int(affected), nil
}

// LockCounts returns the total and locked slot counts for a timetable.
func (r *SlotRepository) LockCounts(ctx context.Context, timetableID string) (total int, locked int, err error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_locked) AS locked
	FROM timetable_slots WHERE timetable_id = $1`
	row := struct {
		Total  int `db:"total"`
		Locked int `db:"locked"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, timetableID); err != nil {
		return 0, 0, fmt.Errorf("count slot locks: %w", err)
	}
	return row.Total, row.Locked, nil
}

// UpdateFaculty reassigns the teaching faculty of a slot during a swap.
func (r *SlotRepository) UpdateFaculty(ctx context.Context, slotID string, primaryFacultyID *string, assisting pq.StringArray) error {
	const query = `UPDATE timetable_slots SET primary_faculty_id = $2, assisting_faculty_ids = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, slotID, primaryFacultyID, assisting); err != nil {
		return fmt.Errorf("update slot faculty: %w", err)
	}
	return nil
}
