package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

func TestParseRuleConfigTimeWindow(t *testing.T) {
	cfg, err := ParseRuleConfig(RuleTimeWindow, []byte(`{"min_slot": 1, "max_slot": 6}`))
	require.NoError(t, err)
	require.NotNil(t, cfg.TimeWindow)
	assert.Equal(t, 1, cfg.TimeWindow.MinSlot)
	assert.Equal(t, 6, cfg.TimeWindow.MaxSlot)
}

func TestParseRuleConfigTimeWindowInverted(t *testing.T) {
	_, err := ParseRuleConfig(RuleTimeWindow, []byte(`{"min_slot": 6, "max_slot": 1}`))
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestParseRuleConfigSlotBlackoutRequiresList(t *testing.T) {
	_, err := ParseRuleConfig(RuleSlotBlackout, []byte(`{}`))
	require.Error(t, err)

	cfg, err := ParseRuleConfig(RuleSlotBlackout, []byte(`{"blackout_slots": [4], "all_days": true}`))
	require.NoError(t, err)
	require.NotNil(t, cfg.SlotBlackout)
	assert.Equal(t, []int{4}, cfg.SlotBlackout.BlackoutSlots)
	assert.True(t, cfg.SlotBlackout.AllDays)
}

func TestParseRuleConfigDayBlackoutRange(t *testing.T) {
	_, err := ParseRuleConfig(RuleDayBlackout, []byte(`{"blackout_days": [7]}`))
	require.Error(t, err)

	cfg, err := ParseRuleConfig(RuleDayBlackout, []byte(`{"blackout_days": [5, 6]}`))
	require.NoError(t, err)
	require.NotNil(t, cfg.DayBlackout)
	assert.Equal(t, []int{5, 6}, cfg.DayBlackout.BlackoutDays)
}

func TestParseRuleConfigMaxConsecutive(t *testing.T) {
	_, err := ParseRuleConfig(RuleMaxConsecutive, []byte(`{"max_consecutive_classes": 0}`))
	require.Error(t, err)

	cfg, err := ParseRuleConfig(RuleMaxConsecutive, []byte(`{"max_consecutive_classes": 3}`))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxConsecutive.MaxConsecutiveClasses)
}

func TestParseRuleConfigRoomPreferenceWeight(t *testing.T) {
	_, err := ParseRuleConfig(RuleRoomPreference, []byte(`{"preference_weight": 1.5}`))
	require.Error(t, err)

	cfg, err := ParseRuleConfig(RuleRoomPreference, []byte(`{"preference_weight": 0.9}`))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, cfg.RoomPreference.PreferenceWeight, 1e-9)
}

func TestParseRuleConfigNoPayloadTypes(t *testing.T) {
	_, err := ParseRuleConfig(RuleElectiveSync, nil)
	require.NoError(t, err)

	_, err = ParseRuleConfig(RuleFacultyWorkload, nil)
	require.NoError(t, err)
}

func TestParseRuleConfigUnknownType(t *testing.T) {
	_, err := ParseRuleConfig(RuleType("NONSENSE"), []byte(`{}`))
	require.Error(t, err)
}

func TestParseRuleConfigMalformedJSON(t *testing.T) {
	_, err := ParseRuleConfig(RuleTimeWindow, []byte(`{"min_slot":`))
	require.Error(t, err)
}

func TestRuleAppliesTo(t *testing.T) {
	rule := InstitutionalRule{
		AppliesToDepartments: []string{"dept-cs"},
		AppliesToYears:       []int64{1, 2},
	}

	assert.True(t, rule.AppliesTo("dept-cs", 1))
	assert.False(t, rule.AppliesTo("dept-me", 1))
	assert.False(t, rule.AppliesTo("dept-cs", 3))

	// Unknown scope values pass through rather than excluding everything.
	assert.True(t, rule.AppliesTo("", 2))
	assert.True(t, rule.AppliesTo("dept-cs", 0))

	unscoped := InstitutionalRule{}
	assert.True(t, unscoped.AppliesTo("dept-anything", 4))
}
