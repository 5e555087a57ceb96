package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

type activeRuleStoreStub struct {
	rules []models.InstitutionalRule
}

func (s *activeRuleStoreStub) ListActive(ctx context.Context) ([]models.InstitutionalRule, error) {
	return s.rules, nil
}

func compiledRule(t *testing.T, rule models.InstitutionalRule) CompiledRule {
	t.Helper()
	cfg, err := rule.Config()
	require.NoError(t, err)
	return CompiledRule{Rule: rule, Config: cfg}
}

func emptyContext() ScheduleContext {
	return ScheduleContext{
		Sections:   map[string]models.Section{},
		Rooms:      map[string]models.Room{},
		Courses:    map[string]models.Course{},
		Faculty:    map[string]models.Faculty{},
		YearLevels: map[string]int{},
	}
}

func TestLoadActiveSkipsBrokenConfiguration(t *testing.T) {
	store := &activeRuleStoreStub{rules: []models.InstitutionalRule{
		{ID: "r1", Name: "good", RuleType: models.RuleDayBlackout, Configuration: []byte(`{"blackout_days": [6]}`)},
		{ID: "r2", Name: "broken", RuleType: models.RuleTimeWindow, Configuration: []byte(`{"min_slot": 9, "max_slot": 1}`)},
	}}
	engine := NewRuleEngine(store, nil)

	compiled, err := engine.LoadActive(context.Background())
	require.NoError(t, err)
	require.Len(t, compiled, 1)
	assert.Equal(t, "r1", compiled[0].Rule.ID)
}

func TestEvaluateHardTimeWindow(t *testing.T) {
	engine := NewRuleEngine(nil, nil)
	rule := compiledRule(t, models.InstitutionalRule{
		ID: "r1", Name: "teaching window", RuleType: models.RuleTimeWindow,
		IsHardConstraint: true,
		Configuration:    []byte(`{"min_slot": 1, "max_slot": 6}`),
	})

	slots := []models.TimetableSlot{
		{ID: "ok", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 2, DurationSlots: 2},
		{ID: "early", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 0, DurationSlots: 1},
		{ID: "late", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 7, DurationSlots: 1},
		// Starts on the last allowed period, runs past it: still valid.
		{ID: "overrun", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 6, DurationSlots: 2},
	}

	result := engine.Evaluate([]CompiledRule{rule}, slots, emptyContext())
	require.Len(t, result.HardViolations, 1)
	assert.ElementsMatch(t, []string{"early", "late"}, result.HardViolations[0].SlotIDs)
	assert.InDelta(t, 1.0, result.SoftScore, 1e-9)
}

func TestEvaluateSoftScoreWeighted(t *testing.T) {
	engine := NewRuleEngine(nil, nil)
	// Soft day blackout on day 4, weight 0.5: two of four slots violate.
	rule := compiledRule(t, models.InstitutionalRule{
		ID: "r1", Name: "light fridays", RuleType: models.RuleDayBlackout,
		Weight:        0.5,
		Configuration: []byte(`{"blackout_days": [4]}`),
	})

	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1},
		{ID: "s2", SectionID: "sec-a", DayOfWeek: 1, StartSlot: 1, DurationSlots: 1},
		{ID: "s3", SectionID: "sec-a", DayOfWeek: 4, StartSlot: 1, DurationSlots: 1},
		{ID: "s4", SectionID: "sec-a", DayOfWeek: 4, StartSlot: 2, DurationSlots: 1},
	}

	result := engine.Evaluate([]CompiledRule{rule}, slots, emptyContext())
	assert.Empty(t, result.HardViolations)
	assert.InDelta(t, 0.5, result.SoftScore, 1e-9)
}

func TestEvaluateMaxConsecutiveRun(t *testing.T) {
	engine := NewRuleEngine(nil, nil)
	rule := compiledRule(t, models.InstitutionalRule{
		ID: "r1", Name: "max 3 in a row", RuleType: models.RuleMaxConsecutive,
		IsHardConstraint: true,
		Configuration:    []byte(`{"max_consecutive_classes": 3}`),
	})

	// Four unbroken periods on one day break the limit; a gap resets the run.
	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 1, DurationSlots: 2},
		{ID: "s2", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 3, DurationSlots: 2},
		{ID: "s3", SectionID: "sec-a", DayOfWeek: 1, StartSlot: 1, DurationSlots: 2},
		{ID: "s4", SectionID: "sec-a", DayOfWeek: 1, StartSlot: 5, DurationSlots: 2},
	}

	result := engine.Evaluate([]CompiledRule{rule}, slots, emptyContext())
	require.Len(t, result.HardViolations, 1)
	assert.ElementsMatch(t, []string{"s1", "s2"}, result.HardViolations[0].SlotIDs)
}

func TestEvaluateSlotBlackoutExpandsDuration(t *testing.T) {
	engine := NewRuleEngine(nil, nil)
	rule := compiledRule(t, models.InstitutionalRule{
		ID: "r1", Name: "lunch", RuleType: models.RuleSlotBlackout,
		IsHardConstraint: true,
		Configuration:    []byte(`{"blackout_slots": [4]}`),
	})

	// s1 starts before the blackout but runs into it.
	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 3, DurationSlots: 2},
		{ID: "s2", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 5, DurationSlots: 1},
	}

	result := engine.Evaluate([]CompiledRule{rule}, slots, emptyContext())
	require.Len(t, result.HardViolations, 1)
	assert.Equal(t, []string{"s1"}, result.HardViolations[0].SlotIDs)
}

func TestEvaluateElectiveSync(t *testing.T) {
	engine := NewRuleEngine(nil, nil)
	rule := compiledRule(t, models.InstitutionalRule{
		ID: "r1", Name: "elective sync", RuleType: models.RuleElectiveSync,
		IsHardConstraint: true,
	})

	group := "grp-1"
	sctx := emptyContext()
	sctx.Courses["crs-1"] = models.Course{ID: "crs-1", ElectiveGroupID: &group}
	sctx.Courses["crs-2"] = models.Course{ID: "crs-2", ElectiveGroupID: &group}

	// Two sections at (day 0, slot 2), one deviant at (day 1, slot 2).
	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 2, DurationSlots: 1, CourseID: strPtr("crs-1")},
		{ID: "s2", SectionID: "sec-b", DayOfWeek: 0, StartSlot: 2, DurationSlots: 1, CourseID: strPtr("crs-2")},
		{ID: "s3", SectionID: "sec-c", DayOfWeek: 1, StartSlot: 2, DurationSlots: 1, CourseID: strPtr("crs-1")},
	}

	result := engine.Evaluate([]CompiledRule{rule}, slots, sctx)
	require.Len(t, result.HardViolations, 1)
	assert.Equal(t, []string{"s3"}, result.HardViolations[0].SlotIDs)
}

func TestEvaluateFacultyWorkload(t *testing.T) {
	engine := NewRuleEngine(nil, nil)
	rule := compiledRule(t, models.InstitutionalRule{
		ID: "r1", Name: "workload cap", RuleType: models.RuleFacultyWorkload,
		IsHardConstraint: true,
	})

	sctx := emptyContext()
	sctx.Faculty["fac-1"] = models.Faculty{ID: "fac-1", MaxHoursPerWeek: 3}

	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 1, DurationSlots: 2, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s2", SectionID: "sec-a", DayOfWeek: 1, StartSlot: 1, DurationSlots: 2, PrimaryFacultyID: strPtr("fac-1")},
	}

	result := engine.Evaluate([]CompiledRule{rule}, slots, sctx)
	require.Len(t, result.HardViolations, 1)
	assert.ElementsMatch(t, []string{"s1", "s2"}, result.HardViolations[0].SlotIDs)
}

func TestEvaluateScopedByDepartment(t *testing.T) {
	engine := NewRuleEngine(nil, nil)
	rule := compiledRule(t, models.InstitutionalRule{
		ID: "r1", Name: "cs only", RuleType: models.RuleDayBlackout,
		IsHardConstraint:     true,
		AppliesToDepartments: []string{"dept-cs"},
		Configuration:        []byte(`{"blackout_days": [0]}`),
	})

	sctx := emptyContext()
	sctx.Sections["sec-cs"] = models.Section{ID: "sec-cs", DepartmentID: "dept-cs"}
	sctx.Sections["sec-me"] = models.Section{ID: "sec-me", DepartmentID: "dept-me"}

	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-cs", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1},
		{ID: "s2", SectionID: "sec-me", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1},
	}

	result := engine.Evaluate([]CompiledRule{rule}, slots, sctx)
	require.Len(t, result.HardViolations, 1)
	assert.Equal(t, []string{"s1"}, result.HardViolations[0].SlotIDs)
}
