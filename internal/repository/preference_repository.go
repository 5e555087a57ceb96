package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

// PreferenceRepository reads faculty scheduling preferences.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository constructs the repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// ListAll returns every preference, the working set the generator weights from.
func (r *PreferenceRepository) ListAll(ctx context.Context) ([]models.FacultyPreference, error) {
	const query = `SELECT id, faculty_id, day_of_week, time_slot_index, preference_type FROM faculty_preferences`
	prefs := make([]models.FacultyPreference, 0, 64)
	if err := r.db.SelectContext(ctx, &prefs, query); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

// ListByFaculty returns one faculty member's preferences.
func (r *PreferenceRepository) ListByFaculty(ctx context.Context, facultyID string) ([]models.FacultyPreference, error) {
	const query = `SELECT id, faculty_id, day_of_week, time_slot_index, preference_type
	FROM faculty_preferences WHERE faculty_id = $1 ORDER BY day_of_week, time_slot_index`
	prefs := make([]models.FacultyPreference, 0, 8)
	if err := r.db.SelectContext(ctx, &prefs, query, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty preferences: %w", err)
	}
	return prefs, nil
}
