package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type conflictStore interface {
	ReplaceForTimetable(ctx context.Context, timetableID string, conflicts []models.Conflict) error
	ListByTimetable(ctx context.Context, timetableID string, severity models.ConflictSeverity) ([]models.Conflict, error)
	Summary(ctx context.Context, timetableID string) (*models.ConflictSummary, error)
}

type detectorSlotStore interface {
	ListByTimetable(ctx context.Context, timetableID string, filter models.SlotFilter) ([]models.TimetableSlot, error)
}

type conflictCountUpdater interface {
	UpdateConflictCount(ctx context.Context, id string, count int) error
}

// ConflictDetector finds scheduling violations in a timetable: resource
// clashes, capacity breaches and lab mismatches.
type ConflictDetector struct {
	conflicts  conflictStore
	slots      detectorSlotStore
	timetables conflictCountUpdater
	logger     *zap.Logger
}

// NewConflictDetector constructs the detector.
func NewConflictDetector(conflicts conflictStore, slots detectorSlotStore, timetables conflictCountUpdater, logger *zap.Logger) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{conflicts: conflicts, slots: slots, timetables: timetables, logger: logger}
}

// Detect runs every check against an in-memory slot set. This is the pure
// core shared by the persisted rescan and the generator's fitness scoring.
func (d *ConflictDetector) Detect(slots []models.TimetableSlot, sctx ScheduleContext) []models.Conflict {
	conflicts := make([]models.Conflict, 0)
	conflicts = append(conflicts, d.detectRoomClashes(slots)...)
	conflicts = append(conflicts, d.detectFacultyClashes(slots)...)
	conflicts = append(conflicts, d.detectStudentClashes(slots)...)
	conflicts = append(conflicts, d.detectCapacityViolations(slots, sctx)...)
	conflicts = append(conflicts, d.detectLabViolations(slots, sctx)...)
	return conflicts
}

// Rescan recomputes and persists the conflicts of a stored timetable,
// refreshing the timetable's conflict counter. Repeated rescans of an
// unchanged timetable yield the same result.
func (d *ConflictDetector) Rescan(ctx context.Context, timetableID string, sctx ScheduleContext) ([]models.Conflict, error) {
	slots, err := d.slots.ListByTimetable(ctx, timetableID, models.SlotFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots for conflict scan")
	}

	conflicts := d.Detect(slots, sctx)
	if err := d.conflicts.ReplaceForTimetable(ctx, timetableID, conflicts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store conflicts")
	}
	if err := d.timetables.UpdateConflictCount(ctx, timetableID, len(conflicts)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update conflict count")
	}

	d.logger.Info("conflict rescan finished",
		zap.String("timetable_id", timetableID), zap.Int("conflicts", len(conflicts)))
	return conflicts, nil
}

// occupancyKey identifies one claim on a shared resource at one period.
type occupancyKey struct {
	resource string
	day      int
	offset   int
}

// clashGroups expands each slot over its occupied offsets, groups claims on
// the same resource and period, and collapses multi-period overlaps of the
// same slot pair into a single group.
func clashGroups(slots []models.TimetableSlot, keysOf func(models.TimetableSlot) []string) [][]models.TimetableSlot {
	cells := map[occupancyKey][]models.TimetableSlot{}
	for _, slot := range slots {
		for _, resource := range keysOf(slot) {
			for _, offset := range slot.OccupiedOffsets() {
				key := occupancyKey{resource, slot.DayOfWeek, offset}
				cells[key] = append(cells[key], slot)
			}
		}
	}

	seen := map[string]bool{}
	groups := make([][]models.TimetableSlot, 0)
	for key, members := range cells {
		if len(members) < 2 {
			continue
		}
		ids := make([]string, 0, len(members))
		for _, slot := range members {
			ids = append(ids, slot.ID)
		}
		sort.Strings(ids)
		signature := key.resource + "|" + fmt.Sprint(key.day) + "|" + strings.Join(ids, ",")
		if seen[signature] {
			continue
		}
		seen[signature] = true
		groups = append(groups, members)
	}
	return groups
}

func (d *ConflictDetector) detectRoomClashes(slots []models.TimetableSlot) []models.Conflict {
	groups := clashGroups(slots, func(s models.TimetableSlot) []string {
		return []string{"room:" + s.RoomID}
	})
	conflicts := make([]models.Conflict, 0, len(groups))
	for _, group := range groups {
		conflicts = append(conflicts, groupConflict(group, models.ConflictRoomClash, models.SeverityHigh,
			fmt.Sprintf("room %s double-booked on day %d", group[0].RoomID, group[0].DayOfWeek)))
	}
	return conflicts
}

func (d *ConflictDetector) detectFacultyClashes(slots []models.TimetableSlot) []models.Conflict {
	groups := clashGroups(slots, func(s models.TimetableSlot) []string {
		keys := make([]string, 0, 1+len(s.AssistingFacultyIDs))
		if s.PrimaryFacultyID != nil {
			keys = append(keys, "faculty:"+*s.PrimaryFacultyID)
		}
		for _, id := range s.AssistingFacultyIDs {
			keys = append(keys, "faculty:"+id)
		}
		return keys
	})
	conflicts := make([]models.Conflict, 0, len(groups))
	for _, group := range groups {
		conflicts = append(conflicts, groupConflict(group, models.ConflictFacultyClash, models.SeverityHigh,
			fmt.Sprintf("faculty double-booked on day %d", group[0].DayOfWeek)))
	}
	return conflicts
}

func (d *ConflictDetector) detectStudentClashes(slots []models.TimetableSlot) []models.Conflict {
	groups := clashGroups(slots, func(s models.TimetableSlot) []string {
		return []string{"section:" + s.SectionID}
	})
	conflicts := make([]models.Conflict, 0, len(groups))
	for _, group := range groups {
		// Distinct lab batches of the same section run in parallel by design
		// of the curriculum, so a group is only a clash when some pair shares
		// a batch (or has no batch split at all).
		if allDistinctBatches(group) {
			continue
		}
		conflicts = append(conflicts, groupConflict(group, models.ConflictStudentClash, models.SeverityHigh,
			fmt.Sprintf("section %s double-booked on day %d", group[0].SectionID, group[0].DayOfWeek)))
	}
	return conflicts
}

func allDistinctBatches(group []models.TimetableSlot) bool {
	seen := map[int]bool{}
	for _, slot := range group {
		if slot.BatchNumber == nil {
			return false
		}
		if seen[*slot.BatchNumber] {
			return false
		}
		seen[*slot.BatchNumber] = true
	}
	return true
}

func (d *ConflictDetector) detectCapacityViolations(slots []models.TimetableSlot, sctx ScheduleContext) []models.Conflict {
	conflicts := make([]models.Conflict, 0)
	for _, slot := range slots {
		room, okRoom := sctx.Rooms[slot.RoomID]
		section, okSection := sctx.Sections[slot.SectionID]
		if !okRoom || !okSection {
			continue
		}
		if room.Capacity >= section.StudentCount {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			ConflictType: models.ConflictCapacity,
			Severity:     models.SeverityHigh,
			SlotIDs:      []string{slot.ID},
			Description: fmt.Sprintf("room %s holds %d but section %s has %d students",
				room.Name, room.Capacity, section.Name, section.StudentCount),
		})
	}
	return conflicts
}

func (d *ConflictDetector) detectLabViolations(slots []models.TimetableSlot, sctx ScheduleContext) []models.Conflict {
	conflicts := make([]models.Conflict, 0)
	for _, slot := range slots {
		if slot.CourseID == nil {
			continue
		}
		course, okCourse := sctx.Courses[*slot.CourseID]
		room, okRoom := sctx.Rooms[slot.RoomID]
		if !okCourse || !okRoom {
			continue
		}
		if !course.RequiresLab || room.IsLab() {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			ConflictType: models.ConflictLabRequirement,
			Severity:     models.SeverityMedium,
			SlotIDs:      []string{slot.ID},
			Description:  fmt.Sprintf("course %s needs a lab but is scheduled in %s", course.Code, room.Name),
		})
	}
	return conflicts
}

func groupConflict(group []models.TimetableSlot, conflictType models.ConflictType, severity models.ConflictSeverity, description string) models.Conflict {
	ids := make([]string, 0, len(group))
	for _, slot := range group {
		ids = append(ids, slot.ID)
	}
	sort.Strings(ids)
	return models.Conflict{
		ConflictType: conflictType,
		Severity:     severity,
		SlotIDs:      ids,
		Description:  description,
	}
}
