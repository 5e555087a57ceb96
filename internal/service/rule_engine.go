package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type activeRuleStore interface {
	ListActive(ctx context.Context) ([]models.InstitutionalRule, error)
}

// CompiledRule is an active rule paired with its decoded configuration.
type CompiledRule struct {
	Rule   models.InstitutionalRule
	Config models.RuleConfig
}

// RuleViolation is one breach of an institutional rule by a candidate schedule.
type RuleViolation struct {
	RuleID      string          `json:"rule_id"`
	RuleName    string          `json:"rule_name"`
	RuleType    models.RuleType `json:"rule_type"`
	SlotIDs     []string        `json:"slot_ids,omitempty"`
	Description string          `json:"description"`
}

// ScheduleContext carries the reference data rule evaluation needs alongside
// the slots themselves.
type ScheduleContext struct {
	Sections   map[string]models.Section
	Rooms      map[string]models.Room
	Courses    map[string]models.Course
	Faculty    map[string]models.Faculty
	YearLevels map[string]int // section id -> year of study
}

// EvaluationResult is the outcome of checking a schedule against all rules.
type EvaluationResult struct {
	HardViolations []RuleViolation
	SoftScore      float64 // weighted satisfaction in [0,1]
}

// RuleEngine loads active institutional rules and evaluates candidate
// schedules against them, splitting hard constraints from soft preferences.
type RuleEngine struct {
	repo   activeRuleStore
	logger *zap.Logger
}

// NewRuleEngine constructs the engine.
func NewRuleEngine(repo activeRuleStore, logger *zap.Logger) *RuleEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleEngine{repo: repo, logger: logger}
}

// LoadActive fetches and compiles every active rule. Rules whose stored
// configuration no longer decodes are skipped with a warning rather than
// failing the whole run.
func (e *RuleEngine) LoadActive(ctx context.Context) ([]CompiledRule, error) {
	rules, err := e.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active rules")
	}

	compiled := make([]CompiledRule, 0, len(rules))
	for _, rule := range rules {
		cfg, err := rule.Config()
		if err != nil {
			e.logger.Warn("skipping rule with invalid configuration",
				zap.String("rule_id", rule.ID), zap.String("rule_name", rule.Name), zap.Error(err))
			continue
		}
		compiled = append(compiled, CompiledRule{Rule: rule, Config: cfg})
	}
	return compiled, nil
}

// Evaluate checks the slots against every compiled rule. Hard rule breaches
// are returned as violations; soft rules contribute to a weighted
// satisfaction score in [0,1] (1.0 when no soft rules apply).
func (e *RuleEngine) Evaluate(rules []CompiledRule, slots []models.TimetableSlot, sctx ScheduleContext) EvaluationResult {
	result := EvaluationResult{SoftScore: 1.0}

	var weightedSum, weightTotal float64
	for _, compiled := range rules {
		scoped := e.scopedSlots(compiled.Rule, slots, sctx)
		if len(scoped) == 0 {
			continue
		}
		violations := e.evaluateRule(compiled, scoped, sctx)
		if compiled.Rule.IsHardConstraint {
			result.HardViolations = append(result.HardViolations, violations...)
			continue
		}

		satisfaction := 1.0
		if len(scoped) > 0 {
			violating := 0
			for _, v := range violations {
				violating += len(v.SlotIDs)
			}
			if violating > len(scoped) {
				violating = len(scoped)
			}
			satisfaction = 1.0 - float64(violating)/float64(len(scoped))
		}
		weight := compiled.Rule.Weight
		if weight <= 0 {
			weight = 1.0
		}
		weightedSum += satisfaction * weight
		weightTotal += weight
	}

	if weightTotal > 0 {
		result.SoftScore = weightedSum / weightTotal
	}
	return result
}

// scopedSlots narrows the slots to those whose section the rule covers.
func (e *RuleEngine) scopedSlots(rule models.InstitutionalRule, slots []models.TimetableSlot, sctx ScheduleContext) []models.TimetableSlot {
	if len(rule.AppliesToDepartments) == 0 && len(rule.AppliesToYears) == 0 {
		return slots
	}
	scoped := make([]models.TimetableSlot, 0, len(slots))
	for _, slot := range slots {
		section, ok := sctx.Sections[slot.SectionID]
		if !ok {
			continue
		}
		if rule.AppliesTo(section.DepartmentID, sctx.YearLevels[slot.SectionID]) {
			scoped = append(scoped, slot)
		}
	}
	return scoped
}

func (e *RuleEngine) evaluateRule(compiled CompiledRule, slots []models.TimetableSlot, sctx ScheduleContext) []RuleViolation {
	switch compiled.Rule.RuleType {
	case models.RuleTimeWindow:
		return evalTimeWindow(compiled, slots)
	case models.RuleSlotBlackout:
		return evalSlotBlackout(compiled, slots)
	case models.RuleDayBlackout:
		return evalDayBlackout(compiled, slots)
	case models.RuleMaxConsecutive:
		return evalMaxConsecutive(compiled, slots)
	case models.RuleElectiveSync:
		return evalElectiveSync(compiled, slots, sctx)
	case models.RuleFacultyWorkload:
		return evalFacultyWorkload(compiled, slots, sctx)
	case models.RuleRoomPreference:
		return evalRoomPreference(compiled, slots, sctx)
	case models.RuleCustom:
		// Custom rules are carried for external tooling; the engine does not
		// interpret their payloads.
		return nil
	}
	return nil
}

func evalTimeWindow(compiled CompiledRule, slots []models.TimetableSlot) []RuleViolation {
	cfg := compiled.Config.TimeWindow
	if cfg == nil {
		return nil
	}
	offending := make([]string, 0)
	for _, slot := range slots {
		// Only the starting period is windowed; a class may run past max_slot.
		if slot.StartSlot < cfg.MinSlot || slot.StartSlot > cfg.MaxSlot {
			offending = append(offending, slot.ID)
		}
	}
	if len(offending) == 0 {
		return nil
	}
	return []RuleViolation{ruleViolation(compiled, offending,
		fmt.Sprintf("%d slot(s) scheduled outside window [%d, %d]", len(offending), cfg.MinSlot, cfg.MaxSlot))}
}

func evalSlotBlackout(compiled CompiledRule, slots []models.TimetableSlot) []RuleViolation {
	cfg := compiled.Config.SlotBlackout
	if cfg == nil {
		return nil
	}
	blackout := make(map[int]bool, len(cfg.BlackoutSlots))
	for _, idx := range cfg.BlackoutSlots {
		blackout[idx] = true
	}
	offending := make([]string, 0)
	for _, slot := range slots {
		for _, offset := range slot.OccupiedOffsets() {
			if blackout[offset] {
				offending = append(offending, slot.ID)
				break
			}
		}
	}
	if len(offending) == 0 {
		return nil
	}
	return []RuleViolation{ruleViolation(compiled, offending,
		fmt.Sprintf("%d slot(s) occupy blacked-out periods", len(offending)))}
}

func evalDayBlackout(compiled CompiledRule, slots []models.TimetableSlot) []RuleViolation {
	cfg := compiled.Config.DayBlackout
	if cfg == nil {
		return nil
	}
	blackout := make(map[int]bool, len(cfg.BlackoutDays))
	for _, day := range cfg.BlackoutDays {
		blackout[day] = true
	}
	offending := make([]string, 0)
	for _, slot := range slots {
		if blackout[slot.DayOfWeek] {
			offending = append(offending, slot.ID)
		}
	}
	if len(offending) == 0 {
		return nil
	}
	return []RuleViolation{ruleViolation(compiled, offending,
		fmt.Sprintf("%d slot(s) scheduled on blacked-out days", len(offending)))}
}

func evalMaxConsecutive(compiled CompiledRule, slots []models.TimetableSlot) []RuleViolation {
	cfg := compiled.Config.MaxConsecutive
	if cfg == nil {
		return nil
	}

	type sectionDay struct {
		section string
		day     int
	}
	occupied := map[sectionDay]map[int][]string{}
	for _, slot := range slots {
		key := sectionDay{slot.SectionID, slot.DayOfWeek}
		if occupied[key] == nil {
			occupied[key] = map[int][]string{}
		}
		for _, offset := range slot.OccupiedOffsets() {
			occupied[key][offset] = append(occupied[key][offset], slot.ID)
		}
	}

	violations := make([]RuleViolation, 0)
	for key, byOffset := range occupied {
		offsets := make([]int, 0, len(byOffset))
		for offset := range byOffset {
			offsets = append(offsets, offset)
		}
		sort.Ints(offsets)

		run := []int{}
		flush := func() {
			if len(run) > cfg.MaxConsecutiveClasses {
				ids := map[string]bool{}
				for _, offset := range run {
					for _, id := range byOffset[offset] {
						ids[id] = true
					}
				}
				slotIDs := make([]string, 0, len(ids))
				for id := range ids {
					slotIDs = append(slotIDs, id)
				}
				sort.Strings(slotIDs)
				violations = append(violations, ruleViolation(compiled, slotIDs,
					fmt.Sprintf("section %s has %d consecutive periods on day %d, limit is %d",
						key.section, len(run), key.day, cfg.MaxConsecutiveClasses)))
			}
			run = run[:0]
		}
		for i, offset := range offsets {
			if i > 0 && offset != offsets[i-1]+1 {
				flush()
			}
			run = append(run, offset)
		}
		flush()
	}
	return violations
}

// evalElectiveSync checks that all slots of the same elective group share the
// same (day, start slot) placement so students can mix across sections.
func evalElectiveSync(compiled CompiledRule, slots []models.TimetableSlot, sctx ScheduleContext) []RuleViolation {
	type placement struct {
		day   int
		start int
	}
	groups := map[string]map[placement][]string{}
	for _, slot := range slots {
		if slot.CourseID == nil {
			continue
		}
		course, ok := sctx.Courses[*slot.CourseID]
		if !ok || course.ElectiveGroupID == nil {
			continue
		}
		group := *course.ElectiveGroupID
		if groups[group] == nil {
			groups[group] = map[placement][]string{}
		}
		key := placement{slot.DayOfWeek, slot.StartSlot}
		groups[group][key] = append(groups[group][key], slot.ID)
	}

	violations := make([]RuleViolation, 0)
	for group, placements := range groups {
		if len(placements) <= 1 {
			continue
		}
		// The modal placement is the anchor; everything else is out of sync.
		var anchor placement
		best := -1
		for key, ids := range placements {
			if len(ids) > best {
				best = len(ids)
				anchor = key
			}
		}
		offending := make([]string, 0)
		for key, ids := range placements {
			if key != anchor {
				offending = append(offending, ids...)
			}
		}
		sort.Strings(offending)
		violations = append(violations, ruleViolation(compiled, offending,
			fmt.Sprintf("elective group %s is scheduled at %d different times", group, len(placements))))
	}
	return violations
}

func evalFacultyWorkload(compiled CompiledRule, slots []models.TimetableSlot, sctx ScheduleContext) []RuleViolation {
	hours := map[string]int{}
	slotIDs := map[string][]string{}
	for _, slot := range slots {
		if slot.PrimaryFacultyID == nil {
			continue
		}
		id := *slot.PrimaryFacultyID
		hours[id] += slot.DurationSlots
		slotIDs[id] = append(slotIDs[id], slot.ID)
	}

	violations := make([]RuleViolation, 0)
	for facultyID, total := range hours {
		faculty, ok := sctx.Faculty[facultyID]
		if !ok || faculty.MaxHoursPerWeek <= 0 {
			continue
		}
		if total > faculty.MaxHoursPerWeek {
			sort.Strings(slotIDs[facultyID])
			violations = append(violations, ruleViolation(compiled, slotIDs[facultyID],
				fmt.Sprintf("faculty %s assigned %d weekly hours, limit is %d", facultyID, total, faculty.MaxHoursPerWeek)))
		}
	}
	return violations
}

func evalRoomPreference(compiled CompiledRule, slots []models.TimetableSlot, sctx ScheduleContext) []RuleViolation {
	offending := make([]string, 0)
	for _, slot := range slots {
		section, ok := sctx.Sections[slot.SectionID]
		if !ok || section.DedicatedRoomID == nil {
			continue
		}
		// Lab sessions legitimately leave the home room.
		if slot.CourseID != nil {
			if course, ok := sctx.Courses[*slot.CourseID]; ok && course.RequiresLab {
				continue
			}
		}
		if slot.RoomID != *section.DedicatedRoomID {
			offending = append(offending, slot.ID)
		}
	}
	if len(offending) == 0 {
		return nil
	}
	return []RuleViolation{ruleViolation(compiled, offending,
		fmt.Sprintf("%d slot(s) scheduled away from the section home room", len(offending)))}
}

func ruleViolation(compiled CompiledRule, slotIDs []string, description string) RuleViolation {
	return RuleViolation{
		RuleID:      compiled.Rule.ID,
		RuleName:    compiled.Rule.Name,
		RuleType:    compiled.Rule.RuleType,
		SlotIDs:     slotIDs,
		Description: description,
	}
}
