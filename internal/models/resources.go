package models

import "time"

// SemesterType is the parity of an academic semester.
type SemesterType string

const (
	SemesterOdd  SemesterType = "ODD"
	SemesterEven SemesterType = "EVEN"
)

// Semester is an academic term, e.g. academic year "2025-2026", ODD.
type Semester struct {
	ID           string       `db:"id" json:"id"`
	AcademicYear string       `db:"academic_year" json:"academic_year"`
	SemesterType SemesterType `db:"semester_type" json:"semester_type"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// Section is a student cohort scheduled as a unit.
type Section struct {
	ID              string  `db:"id" json:"id"`
	Name            string  `db:"name" json:"name"`
	DepartmentID    string  `db:"department_id" json:"department_id"`
	BatchYearStart  int     `db:"batch_year_start" json:"batch_year_start"`
	BatchYearEnd    int     `db:"batch_year_end" json:"batch_year_end"`
	StudentCount    int     `db:"student_count" json:"student_count"`
	DedicatedRoomID *string `db:"dedicated_room_id" json:"dedicated_room_id,omitempty"`
}

// CourseCategory partitions the curriculum.
type CourseCategory string

const (
	CategoryCore                 CourseCategory = "CORE"
	CategoryProfessionalElective CourseCategory = "PROFESSIONAL_ELECTIVE"
	CategoryFreeElective         CourseCategory = "FREE_ELECTIVE"
	CategoryProject              CourseCategory = "PROJECT"
	CategoryMentoring            CourseCategory = "MENTORING"
)

// Course is a teachable unit referenced by curriculum mappings.
type Course struct {
	ID              string         `db:"id" json:"id"`
	Code            string         `db:"code" json:"code"`
	Name            string         `db:"name" json:"name"`
	Credits         int            `db:"credits" json:"credits"`
	TheoryHours     int            `db:"theory_hours" json:"theory_hours"`
	LabHours        int            `db:"lab_hours" json:"lab_hours"`
	TutorialHours   int            `db:"tutorial_hours" json:"tutorial_hours"`
	RequiresLab     bool           `db:"requires_lab" json:"requires_lab"`
	CourseCategory  CourseCategory `db:"course_category" json:"course_category"`
	ElectiveGroupID *string        `db:"elective_group_id" json:"elective_group_id,omitempty"`
}

// Room is a schedulable space.
type Room struct {
	ID              string `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	Capacity        int    `db:"capacity" json:"capacity"`
	RoomType        string `db:"room_type" json:"room_type"`
	HasLabEquipment bool   `db:"has_lab_equipment" json:"has_lab_equipment"`
}

// IsLab reports whether the room can host lab sessions.
func (r Room) IsLab() bool {
	return r.RoomType == "lab" && r.HasLabEquipment
}

// TimeSlot is one period of the institutional day grid.
type TimeSlot struct {
	ID        string `db:"id" json:"id"`
	SlotIndex int    `db:"slot_index" json:"slot_index"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	IsBreak   bool   `db:"is_break" json:"is_break"`
}

// CurriculumEntry maps a course onto (department, year level, semester parity).
type CurriculumEntry struct {
	ID           string       `db:"id" json:"id"`
	DepartmentID string       `db:"department_id" json:"department_id"`
	CourseID     string       `db:"course_id" json:"course_id"`
	YearLevel    int          `db:"year_level" json:"year_level"`
	SemesterType SemesterType `db:"semester_type" json:"semester_type"`
	IsMandatory  bool         `db:"is_mandatory" json:"is_mandatory"`
}

// PreferenceType classifies a faculty scheduling preference.
type PreferenceType string

const (
	PreferencePreferred    PreferenceType = "preferred"
	PreferenceNotAvailable PreferenceType = "not_available"
)

// FacultyPreference is a per-slot scheduling preference for one faculty member.
type FacultyPreference struct {
	ID             string         `db:"id" json:"id"`
	FacultyID      string         `db:"faculty_id" json:"faculty_id"`
	DayOfWeek      int            `db:"day_of_week" json:"day_of_week"`
	TimeSlotIndex  int            `db:"time_slot_index" json:"time_slot_index"`
	PreferenceType PreferenceType `db:"preference_type" json:"preference_type"`
}

// Faculty is a teaching staff member.
type Faculty struct {
	ID              string `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	DepartmentID    string `db:"department_id" json:"department_id"`
	MaxHoursPerWeek int    `db:"max_hours_per_week" json:"max_hours_per_week"`
}

// FacultyWorkload summarises assigned teaching hours for a semester.
type FacultyWorkload struct {
	FacultyID              string  `json:"faculty_id"`
	TotalHours             int     `json:"total_hours"`
	MaxHours               int     `json:"max_hours"`
	IsOverloaded           bool    `json:"is_overloaded"`
	UtilizationPercentage  float64 `json:"utilization_percentage"`
	SectionCount           int     `json:"section_count"`
}

// SubstituteCandidate is one ranked replacement-faculty suggestion.
type SubstituteCandidate struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
	Utilization float64 `json:"utilization"`
	Reason      string  `json:"reason"`
}
