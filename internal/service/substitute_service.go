package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

// SubstituteService ranks replacement teachers for a slot whose assigned
// faculty is absent. The score favours availability, then light utilization,
// then department affinity.
type SubstituteService struct {
	slots       workloadSlotStore
	resources   workloadResourceStore
	preferences *PreferenceService
	logger      *zap.Logger
}

// NewSubstituteService constructs the service.
func NewSubstituteService(slots workloadSlotStore, resources workloadResourceStore, preferences *PreferenceService, logger *zap.Logger) *SubstituteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubstituteService{slots: slots, resources: resources, preferences: preferences, logger: logger}
}

// RecommendForSlot looks up a slot by id and ranks substitutes for it.
func (s *SubstituteService) RecommendForSlot(ctx context.Context, timetableID, slotID, departmentID string, limit int) ([]models.SubstituteCandidate, error) {
	slots, err := s.slots.ListByTimetable(ctx, timetableID, models.SlotFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}
	for _, slot := range slots {
		if slot.ID == slotID {
			return s.Recommend(ctx, timetableID, slot, departmentID, limit)
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found on timetable")
}

// Recommend ranks candidate substitutes for one slot of a timetable.
func (s *SubstituteService) Recommend(ctx context.Context, timetableID string, slot models.TimetableSlot, departmentID string, limit int) ([]models.SubstituteCandidate, error) {
	faculty, err := s.resources.ListFaculty(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	allSlots, err := s.slots.ListByTimetable(ctx, timetableID, models.SlotFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}
	prefs, err := s.preferences.BuildIndex(ctx)
	if err != nil {
		return nil, err
	}

	hours := map[string]int{}
	for _, existing := range allSlots {
		if existing.PrimaryFacultyID != nil {
			hours[*existing.PrimaryFacultyID] += existing.DurationSlots
		}
	}

	candidates := make([]models.SubstituteCandidate, 0, len(faculty))
	for _, member := range faculty {
		if slot.TaughtBy(member.ID) {
			continue
		}
		if busyAt(allSlots, member.ID, slot) {
			continue
		}

		available := 1.0
		for _, offset := range slot.OccupiedOffsets() {
			if !prefs.Available(member.ID, slot.DayOfWeek, offset) {
				available = 0
				break
			}
		}

		utilization := 0.0
		if member.MaxHoursPerWeek > 0 {
			utilization = float64(hours[member.ID]) / float64(member.MaxHoursPerWeek) * 100
		}
		deptMatch := 0.0
		if departmentID != "" && member.DepartmentID == departmentID {
			deptMatch = 1.0
		}

		score := available*100 + (1-utilization/100)*50 + deptMatch*25
		candidates = append(candidates, models.SubstituteCandidate{
			CandidateID: member.ID,
			Score:       score,
			Utilization: utilization,
			Reason:      substituteReason(available > 0, utilization, deptMatch > 0),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].CandidateID < candidates[j].CandidateID
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// busyAt reports whether the faculty member already teaches during the slot's
// periods.
func busyAt(slots []models.TimetableSlot, facultyID string, target models.TimetableSlot) bool {
	occupied := map[int]bool{}
	for _, offset := range target.OccupiedOffsets() {
		occupied[offset] = true
	}
	for _, slot := range slots {
		if slot.ID == target.ID || slot.DayOfWeek != target.DayOfWeek || !slot.TaughtBy(facultyID) {
			continue
		}
		for _, offset := range slot.OccupiedOffsets() {
			if occupied[offset] {
				return true
			}
		}
	}
	return false
}

func substituteReason(available bool, utilization float64, deptMatch bool) string {
	switch {
	case !available:
		return "marked unavailable at this period"
	case deptMatch:
		return fmt.Sprintf("same department, %.0f%% utilized", utilization)
	default:
		return fmt.Sprintf("%.0f%% utilized", utilization)
	}
}
