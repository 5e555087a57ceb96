package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

// RuleType enumerates supported institutional rule categories.
type RuleType string

const (
	RuleTimeWindow      RuleType = "TIME_WINDOW"
	RuleSlotBlackout    RuleType = "SLOT_BLACKOUT"
	RuleDayBlackout     RuleType = "DAY_BLACKOUT"
	RuleMaxConsecutive  RuleType = "MAX_CONSECUTIVE"
	RuleElectiveSync    RuleType = "ELECTIVE_SYNC"
	RuleFacultyWorkload RuleType = "FACULTY_WORKLOAD"
	RuleRoomPreference  RuleType = "ROOM_PREFERENCE"
	RuleCustom          RuleType = "CUSTOM"
)

// InstitutionalRule is an admin-defined timetable constraint.
type InstitutionalRule struct {
	ID                   string         `db:"id" json:"id"`
	Name                 string         `db:"name" json:"name"`
	Description          *string        `db:"description" json:"description,omitempty"`
	RuleType             RuleType       `db:"rule_type" json:"rule_type"`
	Configuration        types.JSONText `db:"configuration" json:"configuration"`
	IsHardConstraint     bool           `db:"is_hard_constraint" json:"is_hard_constraint"`
	Weight               float64        `db:"weight" json:"weight"`
	AppliesToDepartments pq.StringArray `db:"applies_to_departments" json:"applies_to_departments"`
	AppliesToYears       pq.Int64Array  `db:"applies_to_years" json:"applies_to_years"`
	IsActive             bool           `db:"is_active" json:"is_active"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
}

// RuleFilter restricts rule listing queries.
type RuleFilter struct {
	RuleType RuleType
	Active   *bool
	Page     int
	PageSize int
}

// RuleConfig is the tagged union of per-type rule configurations. Exactly one
// variant is populated, matching the rule's type.
type RuleConfig struct {
	TimeWindow     *TimeWindowConfig
	SlotBlackout   *SlotBlackoutConfig
	DayBlackout    *DayBlackoutConfig
	MaxConsecutive *MaxConsecutiveConfig
	RoomPreference *RoomPreferenceConfig
	Custom         map[string]interface{}
}

// TimeWindowConfig restricts class start slots to a window.
type TimeWindowConfig struct {
	MinSlot int `json:"min_slot"`
	MaxSlot int `json:"max_slot"`
}

// SlotBlackoutConfig reserves slots (e.g. lunch) from scheduling.
type SlotBlackoutConfig struct {
	BlackoutSlots []int `json:"blackout_slots"`
	AllDays       bool  `json:"all_days"`
}

// DayBlackoutConfig removes whole weekdays from scheduling.
type DayBlackoutConfig struct {
	BlackoutDays []int `json:"blackout_days"`
}

// MaxConsecutiveConfig limits unbroken runs of classes for a section.
type MaxConsecutiveConfig struct {
	MaxConsecutiveClasses int `json:"max_consecutive_classes"`
}

// RoomPreferenceConfig weights the home-room soft constraint.
type RoomPreferenceConfig struct {
	PreferenceWeight float64 `json:"preference_weight"`
}

// ParseRuleConfig decodes and validates raw configuration against the rule
// type. Malformed or semantically invalid configuration is rejected so that
// bad rules never reach the generator.
func ParseRuleConfig(ruleType RuleType, raw []byte) (RuleConfig, error) {
	var cfg RuleConfig
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	switch ruleType {
	case RuleTimeWindow:
		var tw TimeWindowConfig
		if err := json.Unmarshal(raw, &tw); err != nil {
			return cfg, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid TIME_WINDOW configuration")
		}
		if tw.MinSlot == 0 && tw.MaxSlot == 0 {
			return cfg, appErrors.Clone(appErrors.ErrValidation, "TIME_WINDOW requires min_slot and max_slot")
		}
		if tw.MinSlot >= tw.MaxSlot {
			return cfg, appErrors.Clone(appErrors.ErrValidation, "min_slot must be less than max_slot")
		}
		cfg.TimeWindow = &tw

	case RuleSlotBlackout:
		var sb SlotBlackoutConfig
		if err := json.Unmarshal(raw, &sb); err != nil {
			return cfg, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid SLOT_BLACKOUT configuration")
		}
		if sb.BlackoutSlots == nil {
			return cfg, appErrors.Clone(appErrors.ErrValidation, "SLOT_BLACKOUT requires a blackout_slots list")
		}
		cfg.SlotBlackout = &sb

	case RuleDayBlackout:
		var db DayBlackoutConfig
		if err := json.Unmarshal(raw, &db); err != nil {
			return cfg, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid DAY_BLACKOUT configuration")
		}
		if db.BlackoutDays == nil {
			return cfg, appErrors.Clone(appErrors.ErrValidation, "DAY_BLACKOUT requires a blackout_days list")
		}
		for _, day := range db.BlackoutDays {
			if day < 0 || day > 6 {
				return cfg, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("blackout day %d outside 0-6", day))
			}
		}
		cfg.DayBlackout = &db

	case RuleMaxConsecutive:
		var mc MaxConsecutiveConfig
		if err := json.Unmarshal(raw, &mc); err != nil {
			return cfg, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid MAX_CONSECUTIVE configuration")
		}
		if mc.MaxConsecutiveClasses < 1 {
			return cfg, appErrors.Clone(appErrors.ErrValidation, "max_consecutive_classes must be >= 1")
		}
		cfg.MaxConsecutive = &mc

	case RuleRoomPreference:
		var rp RoomPreferenceConfig
		if err := json.Unmarshal(raw, &rp); err != nil {
			return cfg, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ROOM_PREFERENCE configuration")
		}
		if rp.PreferenceWeight < 0 || rp.PreferenceWeight > 1 {
			return cfg, appErrors.Clone(appErrors.ErrValidation, "preference_weight must be within [0,1]")
		}
		cfg.RoomPreference = &rp

	case RuleElectiveSync, RuleFacultyWorkload:
		// No configuration payload required.

	case RuleCustom:
		custom := map[string]interface{}{}
		if err := json.Unmarshal(raw, &custom); err != nil {
			return cfg, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid CUSTOM configuration")
		}
		cfg.Custom = custom

	default:
		return cfg, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown rule type %q", ruleType))
	}

	return cfg, nil
}

// Config decodes the persisted configuration into its typed variant.
func (r *InstitutionalRule) Config() (RuleConfig, error) {
	return ParseRuleConfig(r.RuleType, r.Configuration)
}

// AppliesTo reports whether the rule's scope covers the department and year.
// Empty scope arrays apply everywhere.
func (r *InstitutionalRule) AppliesTo(departmentID string, yearLevel int) bool {
	if len(r.AppliesToDepartments) > 0 && departmentID != "" {
		found := false
		for _, id := range r.AppliesToDepartments {
			if id == departmentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(r.AppliesToYears) > 0 && yearLevel > 0 {
		found := false
		for _, year := range r.AppliesToYears {
			if int(year) == yearLevel {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
