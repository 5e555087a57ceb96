package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

// ResourceRepository reads the scheduling reference data: semesters, sections,
// rooms, courses, curricula, the day grid and faculty. These tables are owned
// by the admin service, so this repository is read-only.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// GetSemester fetches a semester by identifier.
func (r *ResourceRepository) GetSemester(ctx context.Context, id string) (*models.Semester, error) {
	const query = `SELECT id, academic_year, semester_type, created_at FROM semesters WHERE id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// ListSections returns every section, optionally narrowed to one department.
func (r *ResourceRepository) ListSections(ctx context.Context, departmentID string) ([]models.Section, error) {
	query := `SELECT id, name, department_id, batch_year_start, batch_year_end, student_count, dedicated_room_id FROM sections`
	args := []interface{}{}
	if departmentID != "" {
		query += " WHERE department_id = $1"
		args = append(args, departmentID)
	}
	query += " ORDER BY name"
	sections := make([]models.Section, 0, 16)
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// ListRooms returns every schedulable room.
func (r *ResourceRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, room_type, has_lab_equipment FROM rooms ORDER BY name`
	rooms := make([]models.Room, 0, 32)
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListTimeSlots returns the institutional day grid ordered by slot index.
func (r *ResourceRepository) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	const query = `SELECT id, slot_index, start_time, end_time, is_break FROM time_slots ORDER BY slot_index`
	slots := make([]models.TimeSlot, 0, 10)
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// ListCourses fetches the courses referenced by the given identifiers.
func (r *ResourceRepository) ListCourses(ctx context.Context, ids []string) ([]models.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, code, name, credits, theory_hours, lab_hours, tutorial_hours, requires_lab, course_category, elective_group_id
	FROM courses WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build course query: %w", err)
	}
	query = r.db.Rebind(query)
	courses := make([]models.Course, 0, len(ids))
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListCurriculum returns the curriculum entries for a department, year level
// and semester parity.
func (r *ResourceRepository) ListCurriculum(ctx context.Context, departmentID string, yearLevel int, semesterType models.SemesterType) ([]models.CurriculumEntry, error) {
	const query = `SELECT id, department_id, course_id, year_level, semester_type, is_mandatory
	FROM curriculum_entries
	WHERE department_id = $1 AND year_level = $2 AND semester_type = $3`
	entries := make([]models.CurriculumEntry, 0, 12)
	if err := r.db.SelectContext(ctx, &entries, query, departmentID, yearLevel, semesterType); err != nil {
		return nil, fmt.Errorf("list curriculum: %w", err)
	}
	return entries, nil
}

// GetFaculty fetches a faculty member by identifier.
func (r *ResourceRepository) GetFaculty(ctx context.Context, id string) (*models.Faculty, error) {
	const query = `SELECT id, name, department_id, max_hours_per_week FROM faculty WHERE id = $1`
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, id); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// ListFaculty returns faculty members, optionally narrowed to one department.
func (r *ResourceRepository) ListFaculty(ctx context.Context, departmentID string) ([]models.Faculty, error) {
	query := `SELECT id, name, department_id, max_hours_per_week FROM faculty`
	args := []interface{}{}
	if departmentID != "" {
		query += " WHERE department_id = $1"
		args = append(args, departmentID)
	}
	query += " ORDER BY name"
	members := make([]models.Faculty, 0, 32)
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	return members, nil
}
