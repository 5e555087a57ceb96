package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type leaveStoreStub struct {
	leave       *models.FacultyLeave
	created     *models.FacultyLeave
	statusSet   []models.LeaveStatus
	resolution  types.JSONText
	analysisSet types.JSONText
}

func (s *leaveStoreStub) Create(ctx context.Context, leave *models.FacultyLeave) error {
	leave.ID = "leave-1"
	s.created = leave
	return nil
}

func (s *leaveStoreStub) GetByID(ctx context.Context, id string) (*models.FacultyLeave, error) {
	if s.leave == nil {
		return nil, sql.ErrNoRows
	}
	copied := *s.leave
	return &copied, nil
}

func (s *leaveStoreStub) List(ctx context.Context, filter models.LeaveFilter) ([]models.FacultyLeave, int, error) {
	if s.leave == nil {
		return nil, 0, nil
	}
	return []models.FacultyLeave{*s.leave}, 1, nil
}

func (s *leaveStoreStub) UpdateStatus(ctx context.Context, id string, status models.LeaveStatus) error {
	s.statusSet = append(s.statusSet, status)
	return nil
}

func (s *leaveStoreStub) SaveImpactAnalysis(ctx context.Context, id string, analysis types.JSONText) error {
	s.analysisSet = analysis
	return nil
}

func (s *leaveStoreStub) SaveResolution(ctx context.Context, id string, details types.JSONText) error {
	s.resolution = details
	return nil
}

type leaveSlotStoreStub struct {
	slots    []models.TimetableSlot
	swapped  map[string]string
	swapErrs map[string]error
}

func (s *leaveSlotStoreStub) ListByTimetable(ctx context.Context, timetableID string, filter models.SlotFilter) ([]models.TimetableSlot, error) {
	return s.slots, nil
}

func (s *leaveSlotStoreStub) UpdateFaculty(ctx context.Context, slotID string, primaryFacultyID *string, assisting pq.StringArray) error {
	if err := s.swapErrs[slotID]; err != nil {
		return err
	}
	if s.swapped == nil {
		s.swapped = map[string]string{}
	}
	if primaryFacultyID != nil {
		s.swapped[slotID] = *primaryFacultyID
	}
	return nil
}

type leaveResourceStoreStub struct {
	faculty  *models.Faculty
	sections []models.Section
	grid     []models.TimeSlot
}

func (s *leaveResourceStoreStub) GetFaculty(ctx context.Context, id string) (*models.Faculty, error) {
	if s.faculty == nil {
		return nil, sql.ErrNoRows
	}
	return s.faculty, nil
}

func (s *leaveResourceStoreStub) ListSections(ctx context.Context, departmentID string) ([]models.Section, error) {
	return s.sections, nil
}

func (s *leaveResourceStoreStub) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	return s.grid, nil
}

type rescanEnqueuerStub struct {
	enqueued []string
}

func (s *rescanEnqueuerStub) EnqueueRescan(timetableID string) {
	s.enqueued = append(s.enqueued, timetableID)
}

func leaveFixture(leaves *leaveStoreStub, slots *leaveSlotStoreStub, resources *leaveResourceStoreStub, rescan rescanEnqueuer) *LeaveService {
	return NewLeaveService(
		leaves, slots, resources,
		&lockTimetableStoreStub{timetable: &models.Timetable{ID: "tt-1"}},
		NewRuleEngine(&activeRuleStoreStub{}, nil),
		nil, rescan, nil, NewTimetableMutex(), nil,
	)
}

func leaveResources() *leaveResourceStoreStub {
	return &leaveResourceStoreStub{
		faculty: &models.Faculty{ID: "fac-1", Name: "Dr. Rao", DepartmentID: "dept-cs"},
		sections: []models.Section{
			{ID: "sec-a", DepartmentID: "dept-cs", StudentCount: 60},
		},
		grid: []models.TimeSlot{
			{ID: "t1", SlotIndex: 0}, {ID: "t2", SlotIndex: 1},
			{ID: "t3", SlotIndex: 2}, {ID: "t4", SlotIndex: 3},
		},
	}
}

func TestAnalyzeCountsSwappableSlots(t *testing.T) {
	slots := &leaveSlotStoreStub{slots: []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s2", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 1, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1"), IsLocked: true},
		{ID: "s3", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 2, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-2")},
	}}
	svc := leaveFixture(&leaveStoreStub{}, slots, leaveResources(), nil)

	analysis, err := svc.Analyze(context.Background(), "tt-1", "fac-1", models.StrategyWithinSectionSwap)
	require.NoError(t, err)

	assert.Equal(t, 2, analysis.TotalImpact)
	assert.Equal(t, 1, analysis.LockedCount)
	assert.Equal(t, 1, analysis.SwappableSlots)
	assert.ElementsMatch(t, []string{"s1", "s2"}, analysis.AffectedSlots)
	assert.Equal(t, []string{"sec-a"}, analysis.AffectedSections)

	// The movable slot gets a proposal; fac-2 serves the section and is free
	// on day 0.
	require.Len(t, analysis.SwapProposals, 1)
	assert.Equal(t, "s1", analysis.SwapProposals[0].SlotID)
	assert.Equal(t, "fac-2", analysis.SwapProposals[0].ProposedFacultyID)
}

func TestAnalyzeProposalWithoutCandidate(t *testing.T) {
	// fac-2 teaches the section but is busy at the same period.
	slots := &leaveSlotStoreStub{slots: []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s2", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-2")},
	}}
	svc := leaveFixture(&leaveStoreStub{}, slots, leaveResources(), nil)

	analysis, err := svc.Analyze(context.Background(), "tt-1", "fac-1", models.StrategyWithinSectionSwap)
	require.NoError(t, err)

	require.Len(t, analysis.SwapProposals, 1)
	assert.Empty(t, analysis.SwapProposals[0].ProposedFacultyID)
	assert.Equal(t, "no_faculty_available", analysis.SwapProposals[0].Problem)
	assert.Equal(t, "REPLACEMENT or REDISTRIBUTE", analysis.SwapProposals[0].Recommendation)
}

func TestAnalyzeUnknownFaculty(t *testing.T) {
	svc := leaveFixture(&leaveStoreStub{}, &leaveSlotStoreStub{}, &leaveResourceStoreStub{}, nil)

	_, err := svc.Analyze(context.Background(), "tt-1", "missing", models.StrategyWithinSectionSwap)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateRejectsBadDates(t *testing.T) {
	svc := leaveFixture(&leaveStoreStub{}, &leaveSlotStoreStub{}, leaveResources(), nil)

	_, err := svc.Create(context.Background(), CreateLeaveParams{
		FacultyID:  "fac-1",
		SemesterID: "sem-1",
		StartDate:  time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		LeaveType:  models.LeaveSick,
		Strategy:   models.StrategyWithinSectionSwap,
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc := leaveFixture(&leaveStoreStub{}, &leaveSlotStoreStub{}, leaveResources(), nil)

	_, err := svc.Create(context.Background(), CreateLeaveParams{
		FacultyID: "fac-1",
		LeaveType: "HOLIDAY",
		Strategy:  models.StrategyManual,
	})
	require.Error(t, err)
}

func TestCreateStoresAnalysisForTimetable(t *testing.T) {
	leaves := &leaveStoreStub{}
	slots := &leaveSlotStoreStub{slots: []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
	}}
	svc := leaveFixture(leaves, slots, leaveResources(), nil)

	leave, err := svc.Create(context.Background(), CreateLeaveParams{
		FacultyID:   "fac-1",
		SemesterID:  "sem-1",
		TimetableID: "tt-1",
		StartDate:   time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		LeaveType:   models.LeaveSick,
		Strategy:    models.StrategyWithinSectionSwap,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LeaveProposed, leave.Status)
	require.NotNil(t, leave.TimetableID)

	var analysis models.ImpactAnalysis
	require.NoError(t, json.Unmarshal(leave.ImpactAnalysis, &analysis))
	assert.Equal(t, 1, analysis.TotalImpact)
}

func TestTransitionRules(t *testing.T) {
	tests := []struct {
		name string
		from models.LeaveStatus
		call func(svc *LeaveService) error
		ok   bool
	}{
		{"approve proposed", models.LeaveProposed, func(svc *LeaveService) error {
			_, err := svc.Approve(context.Background(), "leave-1")
			return err
		}, true},
		{"reject proposed", models.LeaveProposed, func(svc *LeaveService) error {
			_, err := svc.Reject(context.Background(), "leave-1")
			return err
		}, true},
		{"cancel approved", models.LeaveApproved, func(svc *LeaveService) error {
			_, err := svc.Cancel(context.Background(), "leave-1")
			return err
		}, true},
		{"approve twice", models.LeaveApproved, func(svc *LeaveService) error {
			_, err := svc.Approve(context.Background(), "leave-1")
			return err
		}, false},
		{"reject applied", models.LeaveApplied, func(svc *LeaveService) error {
			_, err := svc.Reject(context.Background(), "leave-1")
			return err
		}, false},
		{"cancel rejected", models.LeaveRejected, func(svc *LeaveService) error {
			_, err := svc.Cancel(context.Background(), "leave-1")
			return err
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaves := &leaveStoreStub{leave: &models.FacultyLeave{ID: "leave-1", Status: tt.from}}
			svc := leaveFixture(leaves, &leaveSlotStoreStub{}, leaveResources(), nil)

			err := tt.call(svc)
			if tt.ok {
				require.NoError(t, err)
				require.Len(t, leaves.statusSet, 1)
				return
			}
			require.Error(t, err)
			assert.Empty(t, leaves.statusSet, "status must not change on a rejected transition")

			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
		})
	}
}

func TestApplyExecutesStoredProposals(t *testing.T) {
	analysis := models.ImpactAnalysis{
		SwapProposals: []models.SwapProposal{
			{SlotID: "s1", CurrentFacultyID: strPtr("fac-1"), ProposedFacultyID: "fac-2"},
			{SlotID: "s2", CurrentFacultyID: strPtr("fac-1")},
		},
	}
	payload, err := json.Marshal(analysis)
	require.NoError(t, err)

	timetableID := "tt-1"
	leaves := &leaveStoreStub{leave: &models.FacultyLeave{
		ID:             "leave-1",
		Status:         models.LeaveApproved,
		TimetableID:    &timetableID,
		ImpactAnalysis: types.JSONText(payload),
	}}
	slots := &leaveSlotStoreStub{}
	rescan := &rescanEnqueuerStub{}
	svc := leaveFixture(leaves, slots, leaveResources(), rescan)

	leave, err := svc.Apply(context.Background(), "leave-1", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveApplied, leave.Status)

	assert.Equal(t, map[string]string{"s1": "fac-2"}, slots.swapped)
	assert.Equal(t, []models.LeaveStatus{models.LeaveApplied}, leaves.statusSet)
	assert.Equal(t, []string{"tt-1"}, rescan.enqueued)

	var details models.ResolutionDetails
	require.NoError(t, json.Unmarshal(leaves.resolution, &details))
	assert.Equal(t, "admin", details.AppliedBy)
	require.Len(t, details.AppliedSwaps, 1)
	assert.Equal(t, "s1", details.AppliedSwaps[0].SlotID)
	assert.Equal(t, []string{"s2"}, details.SkippedSlots)
}

func TestApplyRequiresApprovedStatus(t *testing.T) {
	timetableID := "tt-1"
	leaves := &leaveStoreStub{leave: &models.FacultyLeave{
		ID: "leave-1", Status: models.LeaveProposed, TimetableID: &timetableID,
	}}
	svc := leaveFixture(leaves, &leaveSlotStoreStub{}, leaveResources(), nil)

	_, err := svc.Apply(context.Background(), "leave-1", "admin")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestLockedAnalysisPinsCrossDepartmentPeriods(t *testing.T) {
	resources := leaveResources()
	resources.sections = []models.Section{
		{ID: "sec-a", DepartmentID: "dept-cs"},
		{ID: "sec-b", DepartmentID: "dept-me"},
	}
	// fac-1's slot shares (day 0, slot 0) with another department's class, so
	// it counts as synchronized and must not be proposed for a swap.
	slots := &leaveSlotStoreStub{slots: []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s2", SectionID: "sec-b", RoomID: "room-2", DayOfWeek: 0, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-2")},
	}}
	svc := leaveFixture(&leaveStoreStub{}, slots, resources, nil)

	analysis, err := svc.Analyze(context.Background(), "tt-1", "fac-1", models.StrategyWithinSectionSwap)
	require.NoError(t, err)

	assert.Equal(t, 1, analysis.TotalImpact)
	assert.Equal(t, 1, analysis.LockedCount)
	assert.Zero(t, analysis.SwappableSlots)
	assert.Empty(t, analysis.SwapProposals)
}

func TestLockedAnalysisPinsBreakPeriodSlots(t *testing.T) {
	resources := leaveResources()
	resources.grid = []models.TimeSlot{
		{ID: "t1", SlotIndex: 0},
		{ID: "t2", SlotIndex: 1, IsBreak: true},
		{ID: "t3", SlotIndex: 2},
	}
	// s1 starts in the break period and must be pinned; s2 starts right after
	// the break and stays movable.
	slots := &leaveSlotStoreStub{slots: []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s2", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 1, StartSlot: 2, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
	}}
	svc := leaveFixture(&leaveStoreStub{}, slots, resources, nil)

	analysis, err := svc.Analyze(context.Background(), "tt-1", "fac-1", models.StrategyWithinSectionSwap)
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, analysis.LockedSlots)
	assert.Equal(t, 1, analysis.LockedCount)
	assert.Equal(t, 1, analysis.SwappableSlots)
	require.Len(t, analysis.SwapProposals, 1)
	assert.Equal(t, "s2", analysis.SwapProposals[0].SlotID)
}

func TestAnalyzeRanksHomeRoomMatchesFirst(t *testing.T) {
	home := "room-home"
	resources := leaveResources()
	resources.sections = []models.Section{
		{ID: "sec-a", DepartmentID: "dept-cs", DedicatedRoomID: &home},
	}
	// s1 sits in an outside room, s2 in the section's home room; fac-2 is free
	// to cover both.
	slots := &leaveSlotStoreStub{slots: []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-other", DayOfWeek: 0, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s2", SectionID: "sec-a", RoomID: "room-home", DayOfWeek: 1, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s3", SectionID: "sec-a", RoomID: "room-other", DayOfWeek: 2, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-2")},
	}}
	svc := leaveFixture(&leaveStoreStub{}, slots, resources, nil)

	analysis, err := svc.Analyze(context.Background(), "tt-1", "fac-1", models.StrategyWithinSectionSwap)
	require.NoError(t, err)

	require.Len(t, analysis.SwapProposals, 2)
	first := analysis.SwapProposals[0]
	assert.Equal(t, "s2", first.SlotID)
	assert.True(t, first.HomeRoomMatch)
	assert.Equal(t, "high", first.Priority)
	assert.False(t, analysis.SwapProposals[1].HomeRoomMatch)
}

func TestAnalyzeSkipsProposalsForOtherStrategies(t *testing.T) {
	slots := &leaveSlotStoreStub{slots: []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s2", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 1, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-2")},
	}}
	svc := leaveFixture(&leaveStoreStub{}, slots, leaveResources(), nil)

	analysis, err := svc.Analyze(context.Background(), "tt-1", "fac-1", models.StrategyReplacement)
	require.NoError(t, err)

	assert.Equal(t, 1, analysis.TotalImpact)
	assert.Equal(t, 1, analysis.SwappableSlots)
	assert.Empty(t, analysis.SwapProposals)
}
