package models

import (
	"time"

	"github.com/lib/pq"
)

// TimetableStatus represents lifecycle phases for generated timetables.
type TimetableStatus string

const (
	TimetableStatusGenerating TimetableStatus = "generating"
	TimetableStatusCompleted  TimetableStatus = "completed"
	TimetableStatusFailed     TimetableStatus = "failed"
	TimetableStatusArchived   TimetableStatus = "archived"
)

// Timetable is one generation run for a semester.
type Timetable struct {
	ID              string          `db:"id" json:"id"`
	SemesterID      string          `db:"semester_id" json:"semester_id"`
	Name            string          `db:"name" json:"name"`
	Status          TimetableStatus `db:"status" json:"status"`
	QualityScore    *float64        `db:"quality_score" json:"quality_score,omitempty"`
	ConflictCount   int             `db:"conflict_count" json:"conflict_count"`
	IsPublished     bool            `db:"is_published" json:"is_published"`
	PublishedAt     *time.Time      `db:"published_at" json:"published_at,omitempty"`
	Algorithm       string          `db:"algorithm" json:"algorithm"`
	GenerationTime  *float64        `db:"generation_time_seconds" json:"generation_time_seconds,omitempty"`
	CreatedByUserID *string         `db:"created_by_user_id" json:"created_by_user_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableFilter describes query params for listing timetables.
type TimetableFilter struct {
	SemesterID  string
	Status      TimetableStatus
	IsPublished *bool
	Page        int
	PageSize    int
}

// TimetableSlot is one scheduled occupation inside a timetable.
type TimetableSlot struct {
	ID                  string         `db:"id" json:"id"`
	TimetableID         string         `db:"timetable_id" json:"timetable_id"`
	SectionID           string         `db:"section_id" json:"section_id"`
	CourseID            *string        `db:"course_id" json:"course_id,omitempty"`
	RoomID              string         `db:"room_id" json:"room_id"`
	StartSlot           int            `db:"start_slot" json:"start_slot"`
	DurationSlots       int            `db:"duration_slots" json:"duration_slots"`
	DayOfWeek           int            `db:"day_of_week" json:"day_of_week"`
	PrimaryFacultyID    *string        `db:"primary_faculty_id" json:"primary_faculty_id,omitempty"`
	AssistingFacultyIDs pq.StringArray `db:"assisting_faculty_ids" json:"assisting_faculty_ids"`
	BatchNumber         *int           `db:"batch_number" json:"batch_number,omitempty"`
	IsLocked            bool           `db:"is_locked" json:"is_locked"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
}

// OccupiedOffsets returns every slot index the assignment covers on its day.
func (s TimetableSlot) OccupiedOffsets() []int {
	offsets := make([]int, 0, s.DurationSlots)
	for i := 0; i < s.DurationSlots; i++ {
		offsets = append(offsets, s.StartSlot+i)
	}
	return offsets
}

// EndSlot is the last slot index the assignment covers.
func (s TimetableSlot) EndSlot() int {
	return s.StartSlot + s.DurationSlots - 1
}

// TaughtBy reports whether the faculty member is primary or assisting on the slot.
func (s TimetableSlot) TaughtBy(facultyID string) bool {
	if s.PrimaryFacultyID != nil && *s.PrimaryFacultyID == facultyID {
		return true
	}
	for _, id := range s.AssistingFacultyIDs {
		if id == facultyID {
			return true
		}
	}
	return false
}

// SlotFilter restricts slot listing queries.
type SlotFilter struct {
	DayOfWeek *int
	SectionID string
	Locked    *bool
}

// ConflictType enumerates detected violation classes.
type ConflictType string

const (
	ConflictRoomClash       ConflictType = "ROOM_CLASH"
	ConflictFacultyClash    ConflictType = "FACULTY_CLASH"
	ConflictStudentClash    ConflictType = "STUDENT_CLASH"
	ConflictCapacity        ConflictType = "CAPACITY_VIOLATION"
	ConflictLabRequirement  ConflictType = "LAB_REQUIREMENT_VIOLATION"
)

// ConflictSeverity grades how disruptive a conflict is.
type ConflictSeverity string

const (
	SeverityHigh   ConflictSeverity = "HIGH"
	SeverityMedium ConflictSeverity = "MEDIUM"
	SeverityLow    ConflictSeverity = "LOW"
)

// Conflict is a detected scheduling violation.
type Conflict struct {
	ID              string           `db:"id" json:"id"`
	TimetableID     string           `db:"timetable_id" json:"timetable_id"`
	ConflictType    ConflictType     `db:"conflict_type" json:"conflict_type"`
	Severity        ConflictSeverity `db:"severity" json:"severity"`
	SlotIDs         pq.StringArray   `db:"slot_ids" json:"slot_ids"`
	Description     string           `db:"description" json:"description"`
	IsResolved      bool             `db:"is_resolved" json:"is_resolved"`
	ResolutionNotes *string          `db:"resolution_notes" json:"resolution_notes,omitempty"`
	DetectedAt      time.Time        `db:"detected_at" json:"detected_at"`
	ResolvedAt      *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
}

// ConflictSummary aggregates conflict counts for a timetable.
type ConflictSummary struct {
	TotalConflicts  int                      `json:"total_conflicts"`
	ByType          map[ConflictType]int     `json:"by_type"`
	BySeverity      map[ConflictSeverity]int `json:"by_severity"`
	UnresolvedCount int                      `json:"unresolved_count"`
}

// LockStatistics reports how much of a timetable is frozen.
type LockStatistics struct {
	TotalSlots     int     `json:"total_slots"`
	LockedSlots    int     `json:"locked_slots"`
	UnlockedSlots  int     `json:"unlocked_slots"`
	LockPercentage float64 `json:"lock_percentage"`
}
