package dto

// CreateLeaveRequest opens a new faculty leave request.
type CreateLeaveRequest struct {
	FacultyID   string  `json:"facultyId" validate:"required,uuid"`
	SemesterID  string  `json:"semesterId" validate:"required,uuid"`
	TimetableID string  `json:"timetableId" validate:"omitempty,uuid"`
	StartDate   string  `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string  `json:"endDate" validate:"required,datetime=2006-01-02"`
	LeaveType   string  `json:"leaveType" validate:"required"`
	Strategy    string  `json:"strategy" validate:"required"`
	Reason      *string `json:"reason" validate:"omitempty,max=1000"`
}

// AnalyzeLeaveRequest asks for impact analysis without creating a leave.
// Strategy defaults to WITHIN_SECTION_SWAP when omitted.
type AnalyzeLeaveRequest struct {
	FacultyID   string `json:"facultyId" validate:"required,uuid"`
	TimetableID string `json:"timetableId" validate:"required,uuid"`
	Strategy    string `json:"strategy" validate:"omitempty"`
}

// ApplyLeaveRequest executes an approved leave.
type ApplyLeaveRequest struct {
	AppliedBy string `json:"appliedBy" validate:"omitempty,max=200"`
}

// ListLeavesQuery filters leave listing.
type ListLeavesQuery struct {
	SemesterID string `form:"semesterId" validate:"omitempty,uuid"`
	FacultyID  string `form:"facultyId" validate:"omitempty,uuid"`
	Status     string `form:"status" validate:"omitempty,oneof=PROPOSED APPROVED APPLIED REJECTED CANCELLED"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}
