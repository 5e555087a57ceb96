package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type leaveStore interface {
	Create(ctx context.Context, leave *models.FacultyLeave) error
	GetByID(ctx context.Context, id string) (*models.FacultyLeave, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.FacultyLeave, int, error)
	UpdateStatus(ctx context.Context, id string, status models.LeaveStatus) error
	SaveImpactAnalysis(ctx context.Context, id string, analysis types.JSONText) error
	SaveResolution(ctx context.Context, id string, details types.JSONText) error
}

type leaveSlotStore interface {
	ListByTimetable(ctx context.Context, timetableID string, filter models.SlotFilter) ([]models.TimetableSlot, error)
	UpdateFaculty(ctx context.Context, slotID string, primaryFacultyID *string, assisting pq.StringArray) error
}

type leaveResourceStore interface {
	GetFaculty(ctx context.Context, id string) (*models.Faculty, error)
	ListSections(ctx context.Context, departmentID string) ([]models.Section, error)
	ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error)
}

type rescanEnqueuer interface {
	EnqueueRescan(timetableID string)
}

type leaveMetrics interface {
	RecordLeaveTransition(status string)
}

// leaveTransitions is the workflow state machine. A leave starts PROPOSED and
// ends in exactly one of the terminal states.
var leaveTransitions = map[models.LeaveStatus][]models.LeaveStatus{
	models.LeaveProposed: {models.LeaveApproved, models.LeaveRejected, models.LeaveCancelled},
	models.LeaveApproved: {models.LeaveApplied, models.LeaveCancelled},
}

func transitionAllowed(from, to models.LeaveStatus) bool {
	for _, allowed := range leaveTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LeaveService runs the faculty leave workflow: impact analysis, the
// PROPOSED -> APPROVED -> APPLIED state machine, and swap execution.
type LeaveService struct {
	leaves     leaveStore
	slots      leaveSlotStore
	resources  leaveResourceStore
	timetables lockTimetableStore
	rules      *RuleEngine
	cache      *CacheService
	rescan     rescanEnqueuer
	metrics    leaveMetrics
	mutex      *TimetableMutex
	logger     *zap.Logger
}

// NewLeaveService constructs the service.
func NewLeaveService(
	leaves leaveStore,
	slots leaveSlotStore,
	resources leaveResourceStore,
	timetables lockTimetableStore,
	rules *RuleEngine,
	cache *CacheService,
	rescan rescanEnqueuer,
	metrics leaveMetrics,
	mutex *TimetableMutex,
	logger *zap.Logger,
) *LeaveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mutex == nil {
		mutex = NewTimetableMutex()
	}
	return &LeaveService{
		leaves:     leaves,
		slots:      slots,
		resources:  resources,
		timetables: timetables,
		rules:      rules,
		cache:      cache,
		rescan:     rescan,
		metrics:    metrics,
		mutex:      mutex,
		logger:     logger,
	}
}

// CreateLeaveParams describes a new leave request.
type CreateLeaveParams struct {
	FacultyID   string
	SemesterID  string
	TimetableID string
	StartDate   time.Time
	EndDate     time.Time
	LeaveType   models.LeaveType
	Strategy    models.LeaveStrategy
	Reason      *string
	CreatedBy   *string
}

// Analyze computes the impact of a faculty absence on a timetable without
// persisting anything. Swap proposals are built only for the
// WITHIN_SECTION_SWAP strategy; other strategies report impact counts alone.
func (s *LeaveService) Analyze(ctx context.Context, timetableID, facultyID string, strategy models.LeaveStrategy) (*models.ImpactAnalysis, error) {
	if _, err := s.resources.GetFaculty(ctx, facultyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}

	allSlots, err := s.slots.ListByTimetable(ctx, timetableID, models.SlotFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable slots")
	}

	lockedSet, err := s.lockedSlotSet(ctx, timetableID, allSlots)
	if err != nil {
		return nil, err
	}

	affected := make([]models.TimetableSlot, 0)
	for _, slot := range allSlots {
		if slot.TaughtBy(facultyID) {
			affected = append(affected, slot)
		}
	}

	analysis := &models.ImpactAnalysis{
		AffectedSlots:    make([]string, 0, len(affected)),
		AffectedSections: make([]string, 0),
		LockedSlots:      setToSorted(lockedSet),
		SwapProposals:    make([]models.SwapProposal, 0, len(affected)),
		AnalyzedAt:       time.Now().UTC(),
	}

	sections := map[string]bool{}
	lockedAffected := make([]string, 0)
	for _, slot := range affected {
		analysis.AffectedSlots = append(analysis.AffectedSlots, slot.ID)
		if !sections[slot.SectionID] {
			sections[slot.SectionID] = true
			analysis.AffectedSections = append(analysis.AffectedSections, slot.SectionID)
		}
		if lockedSet[slot.ID] {
			lockedAffected = append(lockedAffected, slot.ID)
		}
	}
	sort.Strings(analysis.AffectedSections)
	analysis.LockedAffectedSlots = lockedAffected
	analysis.TotalImpact = len(affected)
	analysis.LockedCount = len(lockedAffected)
	analysis.SwappableSlots = len(affected) - len(lockedAffected)

	if strategy == models.StrategyWithinSectionSwap {
		proposals, err := s.buildSwapProposals(ctx, facultyID, affected, allSlots, lockedSet)
		if err != nil {
			return nil, err
		}
		analysis.SwapProposals = proposals
	}
	return analysis, nil
}

// lockedSlotSet computes (or loads from cache) the slots that must not move
// during leave resolution: explicitly locked slots, slots synchronized across
// departments at the same period, slots starting in a break period, and
// slots intersecting blacked-out periods.
func (s *LeaveService) lockedSlotSet(ctx context.Context, timetableID string, allSlots []models.TimetableSlot) (map[string]bool, error) {
	if s.cache != nil {
		var cached []string
		if s.cache.GetLockedAnalysis(ctx, timetableID, &cached) {
			set := make(map[string]bool, len(cached))
			for _, id := range cached {
				set[id] = true
			}
			return set, nil
		}
	}

	set := map[string]bool{}
	for _, slot := range allSlots {
		if slot.IsLocked {
			set[slot.ID] = true
		}
	}

	sections, err := s.resources.ListSections(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	departmentOf := make(map[string]string, len(sections))
	for _, section := range sections {
		departmentOf[section.ID] = section.DepartmentID
	}

	// Slots that share a (day, start) across departments are synchronized
	// electives; moving one breaks the sync for every other department.
	type period struct {
		day   int
		start int
	}
	groups := map[period][]models.TimetableSlot{}
	for _, slot := range allSlots {
		key := period{slot.DayOfWeek, slot.StartSlot}
		groups[key] = append(groups[key], slot)
	}
	for _, group := range groups {
		departments := map[string]bool{}
		for _, slot := range group {
			departments[departmentOf[slot.SectionID]] = true
		}
		if len(departments) > 1 {
			for _, slot := range group {
				set[slot.ID] = true
			}
		}
	}

	// Slots anchored on a designated break period never move.
	grid, err := s.resources.ListTimeSlots(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	breakPeriods := map[int]bool{}
	for _, p := range grid {
		if p.IsBreak {
			breakPeriods[p.SlotIndex] = true
		}
	}
	for _, slot := range allSlots {
		if breakPeriods[slot.StartSlot] {
			set[slot.ID] = true
		}
	}

	// Slots intersecting configured blackout periods are pinned by rule.
	compiled, err := s.rules.LoadActive(ctx)
	if err != nil {
		return nil, err
	}
	blackout := map[int]bool{}
	for _, rule := range compiled {
		if rule.Config.SlotBlackout == nil {
			continue
		}
		for _, idx := range rule.Config.SlotBlackout.BlackoutSlots {
			blackout[idx] = true
		}
	}
	if len(blackout) > 0 {
		for _, slot := range allSlots {
			for _, offset := range slot.OccupiedOffsets() {
				if blackout[offset] {
					set[slot.ID] = true
					break
				}
			}
		}
	}

	if s.cache != nil {
		s.cache.PutLockedAnalysis(ctx, timetableID, setToSorted(set))
	}
	return set, nil
}

// buildSwapProposals suggests a within-section substitution for every movable
// affected slot: another teacher already serving the section takes the class.
func (s *LeaveService) buildSwapProposals(ctx context.Context, facultyID string, affected, allSlots []models.TimetableSlot, lockedSet map[string]bool) ([]models.SwapProposal, error) {
	sections, err := s.resources.ListSections(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	homeRoomOf := map[string]string{}
	for _, section := range sections {
		if section.DedicatedRoomID != nil {
			homeRoomOf[section.ID] = *section.DedicatedRoomID
		}
	}

	// Teachers already serving each section, first come first proposed.
	sectionFaculty := map[string][]string{}
	for _, slot := range allSlots {
		if slot.PrimaryFacultyID == nil || *slot.PrimaryFacultyID == facultyID {
			continue
		}
		id := *slot.PrimaryFacultyID
		already := false
		for _, existing := range sectionFaculty[slot.SectionID] {
			if existing == id {
				already = true
				break
			}
		}
		if !already {
			sectionFaculty[slot.SectionID] = append(sectionFaculty[slot.SectionID], id)
		}
	}

	// Occupied periods per candidate teacher, to avoid proposing a clash.
	type period struct {
		day    int
		offset int
	}
	busy := map[string]map[period]bool{}
	for _, slot := range allSlots {
		if slot.PrimaryFacultyID == nil {
			continue
		}
		id := *slot.PrimaryFacultyID
		if busy[id] == nil {
			busy[id] = map[period]bool{}
		}
		for _, offset := range slot.OccupiedOffsets() {
			busy[id][period{slot.DayOfWeek, offset}] = true
		}
	}

	proposals := make([]models.SwapProposal, 0, len(affected))
	for _, slot := range affected {
		if lockedSet[slot.ID] {
			continue
		}
		proposal := models.SwapProposal{
			SlotID:           slot.ID,
			Day:              slot.DayOfWeek,
			StartSlot:        slot.StartSlot,
			Duration:         slot.DurationSlots,
			CurrentFacultyID: slot.PrimaryFacultyID,
			SameSection:      true,
			CurrentRoomID:    slot.RoomID,
			HomeRoomMatch:    homeRoomOf[slot.SectionID] == slot.RoomID,
			Priority:         "normal",
		}

		for _, candidateID := range sectionFaculty[slot.SectionID] {
			free := true
			for _, offset := range slot.OccupiedOffsets() {
				if busy[candidateID][period{slot.DayOfWeek, offset}] {
					free = false
					break
				}
			}
			if free {
				proposal.ProposedFacultyID = candidateID
				break
			}
		}

		if proposal.ProposedFacultyID == "" {
			proposal.Problem = "no_faculty_available"
			proposal.Recommendation = "REPLACEMENT or REDISTRIBUTE"
		} else if proposal.HomeRoomMatch {
			proposal.Priority = "high"
		}
		proposals = append(proposals, proposal)
	}

	// Workable substitutions first, home-room matches ahead within each group.
	sort.SliceStable(proposals, func(i, j int) bool {
		iWorkable := proposals[i].ProposedFacultyID != ""
		jWorkable := proposals[j].ProposedFacultyID != ""
		if iWorkable != jWorkable {
			return iWorkable
		}
		if proposals[i].HomeRoomMatch != proposals[j].HomeRoomMatch {
			return proposals[i].HomeRoomMatch
		}
		return false
	})
	return proposals, nil
}

// Create validates and stores a new leave request in PROPOSED state together
// with its impact analysis.
func (s *LeaveService) Create(ctx context.Context, params CreateLeaveParams) (*models.FacultyLeave, error) {
	if !models.ValidLeaveType(params.LeaveType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown leave type %q", params.LeaveType))
	}
	if !models.ValidLeaveStrategy(params.Strategy) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown leave strategy %q", params.Strategy))
	}
	if params.EndDate.Before(params.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}

	leave := &models.FacultyLeave{
		FacultyID:  params.FacultyID,
		SemesterID: params.SemesterID,
		StartDate:  params.StartDate,
		EndDate:    params.EndDate,
		LeaveType:  params.LeaveType,
		Strategy:   params.Strategy,
		Status:     models.LeaveProposed,
		Reason:     params.Reason,
		CreatedBy:  params.CreatedBy,
	}
	if params.TimetableID != "" {
		leave.TimetableID = &params.TimetableID
		analysis, err := s.Analyze(ctx, params.TimetableID, params.FacultyID, params.Strategy)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(analysis)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize impact analysis")
		}
		leave.ImpactAnalysis = types.JSONText(payload)
	}

	if err := s.leaves.Create(ctx, leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave request")
	}
	if s.metrics != nil {
		s.metrics.RecordLeaveTransition(string(models.LeaveProposed))
	}
	return leave, nil
}

// Get fetches one leave request.
func (s *LeaveService) Get(ctx context.Context, id string) (*models.FacultyLeave, error) {
	leave, err := s.leaves.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave request")
	}
	return leave, nil
}

// List returns leave requests matching the filter.
func (s *LeaveService) List(ctx context.Context, filter models.LeaveFilter) ([]models.FacultyLeave, int, error) {
	leaves, total, err := s.leaves.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave requests")
	}
	return leaves, total, nil
}

// Approve moves a PROPOSED leave to APPROVED.
func (s *LeaveService) Approve(ctx context.Context, id string) (*models.FacultyLeave, error) {
	return s.transition(ctx, id, models.LeaveApproved)
}

// Reject moves a PROPOSED leave to REJECTED.
func (s *LeaveService) Reject(ctx context.Context, id string) (*models.FacultyLeave, error) {
	return s.transition(ctx, id, models.LeaveRejected)
}

// Cancel moves any non-terminal leave to CANCELLED.
func (s *LeaveService) Cancel(ctx context.Context, id string) (*models.FacultyLeave, error) {
	return s.transition(ctx, id, models.LeaveCancelled)
}

func (s *LeaveService) transition(ctx context.Context, id string, target models.LeaveStatus) (*models.FacultyLeave, error) {
	leave, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(leave.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move leave from %s to %s", leave.Status, target))
	}
	if err := s.leaves.UpdateStatus(ctx, id, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave status")
	}
	if s.metrics != nil {
		s.metrics.RecordLeaveTransition(string(target))
	}
	leave.Status = target
	return leave, nil
}

// Apply executes an APPROVED leave: accepted swap proposals are applied to
// the timetable, the resolution is recorded, and a conflict rescan is queued.
func (s *LeaveService) Apply(ctx context.Context, id string, appliedBy string) (*models.FacultyLeave, error) {
	leave, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(leave.Status, models.LeaveApplied) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot apply leave in status %s", leave.Status))
	}
	if leave.TimetableID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "leave has no timetable to apply against")
	}

	var analysis models.ImpactAnalysis
	if len(leave.ImpactAnalysis) > 0 {
		if err := json.Unmarshal(leave.ImpactAnalysis, &analysis); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrDataFormat.Code, appErrors.ErrDataFormat.Status, "stored impact analysis is unreadable")
		}
	}

	timetableID := *leave.TimetableID
	unlock := s.mutex.Lock(timetableID)
	defer unlock()

	details := models.ResolutionDetails{
		AppliedBy: appliedBy,
		AppliedAt: time.Now().UTC(),
	}
	for _, proposal := range analysis.SwapProposals {
		if proposal.ProposedFacultyID == "" {
			details.SkippedSlots = append(details.SkippedSlots, proposal.SlotID)
			continue
		}
		newPrimary := proposal.ProposedFacultyID
		if err := s.slots.UpdateFaculty(ctx, proposal.SlotID, &newPrimary, nil); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply faculty swap")
		}
		details.AppliedSwaps = append(details.AppliedSwaps, models.AppliedSwap{
			SlotID:     proposal.SlotID,
			OldFaculty: proposal.CurrentFacultyID,
			NewFaculty: newPrimary,
		})
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize resolution details")
	}
	if err := s.leaves.SaveResolution(ctx, id, types.JSONText(payload)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store resolution details")
	}
	if err := s.leaves.UpdateStatus(ctx, id, models.LeaveApplied); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave status")
	}

	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx, timetableID)
	}
	if s.rescan != nil {
		s.rescan.EnqueueRescan(timetableID)
	}
	if s.metrics != nil {
		s.metrics.RecordLeaveTransition(string(models.LeaveApplied))
	}

	s.logger.Info("leave applied",
		zap.String("leave_id", id),
		zap.String("timetable_id", timetableID),
		zap.Int("swaps", len(details.AppliedSwaps)),
		zap.Int("skipped", len(details.SkippedSlots)))

	leave.Status = models.LeaveApplied
	leave.ResolutionDetails = types.JSONText(payload)
	return leave, nil
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
