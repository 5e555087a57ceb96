package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type workloadSlotStore interface {
	ListByTimetable(ctx context.Context, timetableID string, filter models.SlotFilter) ([]models.TimetableSlot, error)
	ListByFaculty(ctx context.Context, timetableID, facultyID string) ([]models.TimetableSlot, error)
}

type workloadResourceStore interface {
	GetFaculty(ctx context.Context, id string) (*models.Faculty, error)
	ListFaculty(ctx context.Context, departmentID string) ([]models.Faculty, error)
}

// WorkloadService computes weekly teaching hours per faculty member from a
// timetable's slots.
type WorkloadService struct {
	slots     workloadSlotStore
	resources workloadResourceStore
	logger    *zap.Logger
}

// NewWorkloadService constructs the service.
func NewWorkloadService(slots workloadSlotStore, resources workloadResourceStore, logger *zap.Logger) *WorkloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkloadService{slots: slots, resources: resources, logger: logger}
}

// Compute returns the workload of every faculty member teaching on the
// timetable, heaviest first.
func (s *WorkloadService) Compute(ctx context.Context, timetableID string) ([]models.FacultyWorkload, error) {
	slots, err := s.slots.ListByTimetable(ctx, timetableID, models.SlotFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}
	faculty, err := s.resources.ListFaculty(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}

	maxHours := make(map[string]int, len(faculty))
	for _, member := range faculty {
		maxHours[member.ID] = member.MaxHoursPerWeek
	}

	hours := map[string]int{}
	sections := map[string]map[string]bool{}
	for _, slot := range slots {
		if slot.PrimaryFacultyID == nil {
			continue
		}
		id := *slot.PrimaryFacultyID
		hours[id] += slot.DurationSlots
		if sections[id] == nil {
			sections[id] = map[string]bool{}
		}
		sections[id][slot.SectionID] = true
	}

	workloads := make([]models.FacultyWorkload, 0, len(hours))
	for facultyID, total := range hours {
		workload := models.FacultyWorkload{
			FacultyID:    facultyID,
			TotalHours:   total,
			MaxHours:     maxHours[facultyID],
			SectionCount: len(sections[facultyID]),
		}
		if workload.MaxHours > 0 {
			workload.UtilizationPercentage = float64(total) / float64(workload.MaxHours) * 100
			workload.IsOverloaded = total > workload.MaxHours
		}
		workloads = append(workloads, workload)
	}
	sort.Slice(workloads, func(i, j int) bool {
		if workloads[i].TotalHours != workloads[j].TotalHours {
			return workloads[i].TotalHours > workloads[j].TotalHours
		}
		return workloads[i].FacultyID < workloads[j].FacultyID
	})
	return workloads, nil
}

// ComputeFor returns the workload of one faculty member on the timetable.
func (s *WorkloadService) ComputeFor(ctx context.Context, timetableID, facultyID string) (*models.FacultyWorkload, error) {
	member, err := s.resources.GetFaculty(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
	}
	slots, err := s.slots.ListByFaculty(ctx, timetableID, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}

	workload := &models.FacultyWorkload{FacultyID: facultyID, MaxHours: member.MaxHoursPerWeek}
	sectionSet := map[string]bool{}
	for _, slot := range slots {
		// Assisting appearances do not count toward teaching hours.
		if slot.PrimaryFacultyID == nil || *slot.PrimaryFacultyID != facultyID {
			continue
		}
		workload.TotalHours += slot.DurationSlots
		sectionSet[slot.SectionID] = true
	}
	workload.SectionCount = len(sectionSet)
	if workload.MaxHours > 0 {
		workload.UtilizationPercentage = float64(workload.TotalHours) / float64(workload.MaxHours) * 100
		workload.IsOverloaded = workload.TotalHours > workload.MaxHours
	}
	return workload, nil
}
