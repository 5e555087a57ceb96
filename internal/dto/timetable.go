package dto

// ListTimetablesQuery captures the list endpoint's query parameters.
type ListTimetablesQuery struct {
	SemesterID string `form:"semesterId" validate:"omitempty,uuid"`
	Status     string `form:"status" validate:"omitempty,oneof=generating completed failed archived"`
	Published  *bool  `form:"published"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ListSlotsQuery filters the slots of one timetable.
type ListSlotsQuery struct {
	DayOfWeek *int   `form:"dayOfWeek" validate:"omitempty,min=0,max=6"`
	SectionID string `form:"sectionId" validate:"omitempty,uuid"`
	Locked    *bool  `form:"locked"`
}

// ResolveConflictRequest marks a conflict as handled.
type ResolveConflictRequest struct {
	Notes string `json:"notes" validate:"required,max=1000"`
}

// ConflictsQuery filters conflict listing by severity.
type ConflictsQuery struct {
	Severity string `form:"severity" validate:"omitempty,oneof=HIGH MEDIUM LOW"`
}
