package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

type conflictStoreStub struct {
	replaced map[string][]models.Conflict
}

func (s *conflictStoreStub) ReplaceForTimetable(ctx context.Context, timetableID string, conflicts []models.Conflict) error {
	if s.replaced == nil {
		s.replaced = map[string][]models.Conflict{}
	}
	s.replaced[timetableID] = conflicts
	return nil
}

func (s *conflictStoreStub) ListByTimetable(ctx context.Context, timetableID string, severity models.ConflictSeverity) ([]models.Conflict, error) {
	return s.replaced[timetableID], nil
}

func (s *conflictStoreStub) Summary(ctx context.Context, timetableID string) (*models.ConflictSummary, error) {
	return &models.ConflictSummary{}, nil
}

type detectorSlotStoreStub struct {
	slots []models.TimetableSlot
}

func (s *detectorSlotStoreStub) ListByTimetable(ctx context.Context, timetableID string, filter models.SlotFilter) ([]models.TimetableSlot, error) {
	return s.slots, nil
}

func (s *detectorSlotStoreStub) ListByFaculty(ctx context.Context, timetableID, facultyID string) ([]models.TimetableSlot, error) {
	matched := make([]models.TimetableSlot, 0, len(s.slots))
	for _, slot := range s.slots {
		if slot.PrimaryFacultyID != nil && *slot.PrimaryFacultyID == facultyID {
			matched = append(matched, slot)
			continue
		}
		for _, assisting := range slot.AssistingFacultyIDs {
			if assisting == facultyID {
				matched = append(matched, slot)
				break
			}
		}
	}
	return matched, nil
}

type conflictCountStub struct {
	counts map[string]int
}

func (s *conflictCountStub) UpdateConflictCount(ctx context.Context, id string, count int) error {
	if s.counts == nil {
		s.counts = map[string]int{}
	}
	s.counts[id] = count
	return nil
}

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func detectorContext() ScheduleContext {
	return ScheduleContext{
		Sections: map[string]models.Section{
			"sec-a": {ID: "sec-a", Name: "CS-A", StudentCount: 60},
			"sec-b": {ID: "sec-b", Name: "CS-B", StudentCount: 40},
		},
		Rooms: map[string]models.Room{
			"room-1": {ID: "room-1", Name: "R101", Capacity: 70, RoomType: "classroom"},
			"room-2": {ID: "room-2", Name: "R102", Capacity: 50, RoomType: "classroom"},
			"lab-1":  {ID: "lab-1", Name: "Lab 1", Capacity: 35, RoomType: "lab", HasLabEquipment: true},
		},
		Courses: map[string]models.Course{
			"crs-theory": {ID: "crs-theory", Code: "CS101"},
			"crs-lab":    {ID: "crs-lab", Code: "CS102L", RequiresLab: true},
		},
		Faculty:    map[string]models.Faculty{},
		YearLevels: map[string]int{},
	}
}

func TestDetectRoomClashSingleConflictForOverlap(t *testing.T) {
	detector := NewConflictDetector(nil, nil, nil, nil)

	// Two slots share room-1 on day 0 for two overlapping periods; the overlap
	// must collapse to a single conflict naming both slots.
	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 2},
		{ID: "s2", SectionID: "sec-b", RoomID: "room-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 2},
	}

	conflicts := detector.Detect(slots, detectorContext())

	roomClashes := filterConflicts(conflicts, models.ConflictRoomClash)
	require.Len(t, roomClashes, 1)
	assert.Equal(t, models.SeverityHigh, roomClashes[0].Severity)
	assert.ElementsMatch(t, []string{"s1", "s2"}, []string(roomClashes[0].SlotIDs))
}

func TestDetectRoomClashDifferentDaysNoConflict(t *testing.T) {
	detector := NewConflictDetector(nil, nil, nil, nil)

	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1},
		{ID: "s2", SectionID: "sec-b", RoomID: "room-1", DayOfWeek: 1, StartSlot: 1, DurationSlots: 1},
	}

	conflicts := detector.Detect(slots, detectorContext())
	assert.Empty(t, filterConflicts(conflicts, models.ConflictRoomClash))
}

func TestDetectFacultyClashIncludesAssisting(t *testing.T) {
	detector := NewConflictDetector(nil, nil, nil, nil)

	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 2, StartSlot: 3, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s2", SectionID: "sec-b", RoomID: "room-2", DayOfWeek: 2, StartSlot: 3, DurationSlots: 1, AssistingFacultyIDs: []string{"fac-1"}},
	}

	conflicts := detector.Detect(slots, detectorContext())

	facultyClashes := filterConflicts(conflicts, models.ConflictFacultyClash)
	require.Len(t, facultyClashes, 1)
	assert.ElementsMatch(t, []string{"s1", "s2"}, []string(facultyClashes[0].SlotIDs))
}

func TestDetectStudentClashExemptsParallelLabBatches(t *testing.T) {
	detector := NewConflictDetector(nil, nil, nil, nil)

	// Batch 1 and batch 2 of the same section legitimately run in parallel.
	parallel := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "lab-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 2, BatchNumber: intPtr(1)},
		{ID: "s2", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 2, BatchNumber: intPtr(2)},
	}
	conflicts := detector.Detect(parallel, detectorContext())
	assert.Empty(t, filterConflicts(conflicts, models.ConflictStudentClash))

	// Whole-section slots at the same period are a genuine clash.
	clashing := []models.TimetableSlot{
		{ID: "s3", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1},
		{ID: "s4", SectionID: "sec-a", RoomID: "room-2", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1},
	}
	conflicts = detector.Detect(clashing, detectorContext())
	require.Len(t, filterConflicts(conflicts, models.ConflictStudentClash), 1)
}

func TestDetectCapacityViolation(t *testing.T) {
	detector := NewConflictDetector(nil, nil, nil, nil)

	// sec-a has 60 students; room-2 holds 50.
	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-2", DayOfWeek: 1, StartSlot: 2, DurationSlots: 1},
	}

	conflicts := detector.Detect(slots, detectorContext())

	capacity := filterConflicts(conflicts, models.ConflictCapacity)
	require.Len(t, capacity, 1)
	assert.Equal(t, models.SeverityHigh, capacity[0].Severity)
	assert.Equal(t, []string{"s1"}, []string(capacity[0].SlotIDs))
}

func TestDetectLabRequirementViolation(t *testing.T) {
	detector := NewConflictDetector(nil, nil, nil, nil)

	slots := []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-b", RoomID: "room-2", DayOfWeek: 1, StartSlot: 2, DurationSlots: 2, CourseID: strPtr("crs-lab")},
		{ID: "s2", SectionID: "sec-b", RoomID: "lab-1", DayOfWeek: 2, StartSlot: 2, DurationSlots: 2, CourseID: strPtr("crs-lab")},
	}

	conflicts := detector.Detect(slots, detectorContext())

	lab := filterConflicts(conflicts, models.ConflictLabRequirement)
	require.Len(t, lab, 1)
	assert.Equal(t, models.SeverityMedium, lab[0].Severity)
	assert.Equal(t, []string{"s1"}, []string(lab[0].SlotIDs))
}

func TestRescanPersistsAndCountsIdempotently(t *testing.T) {
	store := &conflictStoreStub{}
	slots := &detectorSlotStoreStub{slots: []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1},
		{ID: "s2", SectionID: "sec-b", RoomID: "room-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1},
	}}
	counter := &conflictCountStub{}
	detector := NewConflictDetector(store, slots, counter, nil)

	first, err := detector.Rescan(context.Background(), "tt-1", detectorContext())
	require.NoError(t, err)
	second, err := detector.Rescan(context.Background(), "tt-1", detectorContext())
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second))
	assert.Equal(t, len(first), counter.counts["tt-1"])
	assert.Len(t, store.replaced["tt-1"], len(first))
}

func filterConflicts(conflicts []models.Conflict, conflictType models.ConflictType) []models.Conflict {
	out := make([]models.Conflict, 0, len(conflicts))
	for _, conflict := range conflicts {
		if conflict.ConflictType == conflictType {
			out = append(out, conflict)
		}
	}
	return out
}
