package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// LeaveType classifies faculty leave requests. Carried as an opaque label.
type LeaveType string

const (
	LeaveSick       LeaveType = "SICK"
	LeaveCasual     LeaveType = "CASUAL"
	LeaveMaternity  LeaveType = "MATERNITY"
	LeavePaternity  LeaveType = "PATERNITY"
	LeaveSabbatical LeaveType = "SABBATICAL"
	LeaveStudy      LeaveType = "STUDY"
	LeaveEmergency  LeaveType = "EMERGENCY"
	LeaveOther      LeaveType = "OTHER"
)

// ValidLeaveType reports whether the value is a known leave type.
func ValidLeaveType(t LeaveType) bool {
	switch t {
	case LeaveSick, LeaveCasual, LeaveMaternity, LeavePaternity,
		LeaveSabbatical, LeaveStudy, LeaveEmergency, LeaveOther:
		return true
	}
	return false
}

// LeaveStrategy selects the resolution approach for a leave.
type LeaveStrategy string

const (
	StrategyWithinSectionSwap LeaveStrategy = "WITHIN_SECTION_SWAP"
	StrategyRedistribute      LeaveStrategy = "REDISTRIBUTE"
	StrategyReplacement       LeaveStrategy = "REPLACEMENT"
	StrategyCancel            LeaveStrategy = "CANCEL"
	StrategyManual            LeaveStrategy = "MANUAL"
)

// ValidLeaveStrategy reports whether the value is a known strategy.
func ValidLeaveStrategy(s LeaveStrategy) bool {
	switch s {
	case StrategyWithinSectionSwap, StrategyRedistribute, StrategyReplacement,
		StrategyCancel, StrategyManual:
		return true
	}
	return false
}

// LeaveStatus is the workflow state machine for a leave record.
type LeaveStatus string

const (
	LeaveProposed  LeaveStatus = "PROPOSED"
	LeaveApproved  LeaveStatus = "APPROVED"
	LeaveApplied   LeaveStatus = "APPLIED"
	LeaveRejected  LeaveStatus = "REJECTED"
	LeaveCancelled LeaveStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s LeaveStatus) Terminal() bool {
	return s == LeaveApplied || s == LeaveRejected || s == LeaveCancelled
}

// FacultyLeave is a leave request and its resolution record.
type FacultyLeave struct {
	ID                   string         `db:"id" json:"id"`
	FacultyID            string         `db:"faculty_id" json:"faculty_id"`
	SemesterID           string         `db:"semester_id" json:"semester_id"`
	TimetableID          *string        `db:"timetable_id" json:"timetable_id,omitempty"`
	StartDate            time.Time      `db:"start_date" json:"start_date"`
	EndDate              time.Time      `db:"end_date" json:"end_date"`
	LeaveType            LeaveType      `db:"leave_type" json:"leave_type"`
	Strategy             LeaveStrategy  `db:"strategy" json:"strategy"`
	Status               LeaveStatus    `db:"status" json:"status"`
	ReplacementFacultyID *string        `db:"replacement_faculty_id" json:"replacement_faculty_id,omitempty"`
	ImpactAnalysis       types.JSONText `db:"impact_analysis" json:"impact_analysis,omitempty"`
	ResolutionDetails    types.JSONText `db:"resolution_details" json:"resolution_details,omitempty"`
	Reason               *string        `db:"reason" json:"reason,omitempty"`
	CreatedBy            *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
	ApprovedAt           *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	AppliedAt            *time.Time     `db:"applied_at" json:"applied_at,omitempty"`
}

// LeaveFilter restricts leave listing queries.
type LeaveFilter struct {
	SemesterID string
	FacultyID  string
	Status     LeaveStatus
	Page       int
	PageSize   int
}

// SwapProposal is one suggested faculty substitution for an affected slot.
type SwapProposal struct {
	SlotID              string  `json:"slot_id"`
	Day                 int     `json:"day"`
	StartSlot           int     `json:"start_slot"`
	Duration            int     `json:"duration"`
	CurrentFacultyID    *string `json:"current_faculty_id,omitempty"`
	ProposedFacultyID   string  `json:"proposed_faculty_id,omitempty"`
	SameSection         bool    `json:"same_section"`
	HomeRoomMatch       bool    `json:"home_room_match"`
	CurrentRoomID       string  `json:"current_room_id"`
	Priority            string  `json:"priority"`
	Problem             string  `json:"problem,omitempty"`
	Recommendation      string  `json:"recommendation,omitempty"`
}

// ImpactAnalysis summarises the consequences of a proposed leave.
type ImpactAnalysis struct {
	AffectedSlots       []string       `json:"affected_slots"`
	AffectedSections    []string       `json:"affected_sections"`
	LockedSlots         []string       `json:"locked_slots"`
	LockedAffectedSlots []string       `json:"locked_affected_slots"`
	SwapProposals       []SwapProposal `json:"swap_proposals"`
	TotalImpact         int            `json:"total_impact"`
	SwappableSlots      int            `json:"swappable_slots"`
	LockedCount         int            `json:"locked_count"`
	AnalyzedAt          time.Time      `json:"analyzed_at"`
}

// AppliedSwap records one executed substitution.
type AppliedSwap struct {
	SlotID     string  `json:"slot_id"`
	OldFaculty *string `json:"old_faculty,omitempty"`
	NewFaculty string  `json:"new_faculty"`
}

// ResolutionDetails records what an APPLIED leave changed.
type ResolutionDetails struct {
	AppliedSwaps []AppliedSwap `json:"applied_swaps"`
	SkippedSlots []string      `json:"skipped_slots,omitempty"`
	AppliedBy    string        `json:"applied_by,omitempty"`
	AppliedAt    time.Time     `json:"applied_at"`
}
