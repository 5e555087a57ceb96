package dto

import "encoding/json"

// RuleRequest creates or replaces an institutional rule.
type RuleRequest struct {
	Name                 string          `json:"name" validate:"required,max=200"`
	Description          *string         `json:"description" validate:"omitempty,max=1000"`
	RuleType             string          `json:"ruleType" validate:"required,oneof=TIME_WINDOW SLOT_BLACKOUT DAY_BLACKOUT MAX_CONSECUTIVE ELECTIVE_SYNC FACULTY_WORKLOAD ROOM_PREFERENCE CUSTOM"`
	Configuration        json.RawMessage `json:"configuration"`
	IsHardConstraint     bool            `json:"isHardConstraint"`
	Weight               float64         `json:"weight" validate:"omitempty,min=0,max=1"`
	AppliesToDepartments []string        `json:"appliesToDepartments"`
	AppliesToYears       []int64         `json:"appliesToYears" validate:"omitempty,dive,min=1,max=4"`
}

// ToggleRuleRequest flips a rule's active flag.
type ToggleRuleRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// ListRulesQuery filters rule listing.
type ListRulesQuery struct {
	RuleType string `form:"ruleType" validate:"omitempty"`
	Active   *bool  `form:"active"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}
