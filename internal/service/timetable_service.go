package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type timetableStore interface {
	GetByID(ctx context.Context, id string) (*models.Timetable, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
}

type timetableSlotStore interface {
	ListByTimetable(ctx context.Context, timetableID string, filter models.SlotFilter) ([]models.TimetableSlot, error)
	SetAllLocked(ctx context.Context, timetableID string, locked bool) (int, error)
}

type timetableConflictStore interface {
	GetByID(ctx context.Context, id string) (*models.Conflict, error)
	ListByTimetable(ctx context.Context, timetableID string, severity models.ConflictSeverity) ([]models.Conflict, error)
	Summary(ctx context.Context, timetableID string) (*models.ConflictSummary, error)
	Resolve(ctx context.Context, id, notes string) error
}

type timetableResourceStore interface {
	ListSections(ctx context.Context, departmentID string) ([]models.Section, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListCourses(ctx context.Context, ids []string) ([]models.Course, error)
	ListFaculty(ctx context.Context, departmentID string) ([]models.Faculty, error)
}

// TimetableService serves stored timetables: listing, slot retrieval,
// publication, deletion and conflict inspection.
type TimetableService struct {
	timetables timetableStore
	slots      timetableSlotStore
	conflicts  timetableConflictStore
	resources  timetableResourceStore
	detector   *ConflictDetector
	cache      *CacheService
	mutex      *TimetableMutex
	logger     *zap.Logger
}

// NewTimetableService constructs the service.
func NewTimetableService(
	timetables timetableStore,
	slots timetableSlotStore,
	conflicts timetableConflictStore,
	resources timetableResourceStore,
	detector *ConflictDetector,
	cache *CacheService,
	mutex *TimetableMutex,
	logger *zap.Logger,
) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mutex == nil {
		mutex = NewTimetableMutex()
	}
	return &TimetableService{
		timetables: timetables,
		slots:      slots,
		conflicts:  conflicts,
		resources:  resources,
		detector:   detector,
		cache:      cache,
		mutex:      mutex,
		logger:     logger,
	}
}

// Get fetches one timetable.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.timetables.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetable, nil
}

// List returns timetables matching the filter.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	timetables, total, err := s.timetables.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	return timetables, total, nil
}

// Slots returns the slots of a timetable, optionally filtered.
func (s *TimetableService) Slots(ctx context.Context, id string, filter models.SlotFilter) ([]models.TimetableSlot, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByTimetable(ctx, id, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	return slots, nil
}

// Publish marks the timetable as the released schedule and freezes every slot
// so later runs and leave resolutions cannot disturb it.
func (s *TimetableService) Publish(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if timetable.Status != models.TimetableStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only completed timetables can be published")
	}

	unlock := s.mutex.Lock(id)
	defer unlock()

	if err := s.timetables.SetPublished(ctx, id, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
	}
	if _, err := s.slots.SetAllLocked(ctx, id, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock published slots")
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx, id)
	}
	s.logger.Info("timetable published", zap.String("timetable_id", id))

	timetable.IsPublished = true
	return timetable, nil
}

// Unpublish withdraws a published timetable. Slots stay locked; unlocking is
// an explicit separate decision.
func (s *TimetableService) Unpublish(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !timetable.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "timetable is not published")
	}
	if err := s.timetables.SetPublished(ctx, id, false); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unpublish timetable")
	}
	timetable.IsPublished = false
	timetable.PublishedAt = nil
	return timetable, nil
}

// Delete removes a timetable and its dependents. Published timetables are
// protected.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	timetable, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if timetable.IsPublished {
		return appErrors.Clone(appErrors.ErrConflict, "published timetables cannot be deleted")
	}

	unlock := s.mutex.Lock(id)
	defer unlock()

	if err := s.timetables.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx, id)
	}
	return nil
}

// Conflicts lists a timetable's conflicts, optionally filtered by severity.
func (s *TimetableService) Conflicts(ctx context.Context, id string, severity models.ConflictSeverity) ([]models.Conflict, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	conflicts, err := s.conflicts.ListByTimetable(ctx, id, severity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conflicts")
	}
	return conflicts, nil
}

// ConflictSummary aggregates conflict counts, memoized behind the cache.
func (s *TimetableService) ConflictSummary(ctx context.Context, id string) (*models.ConflictSummary, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached models.ConflictSummary
		if s.cache.GetSummary(ctx, id, &cached) {
			return &cached, nil
		}
	}

	summary, err := s.conflicts.Summary(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize conflicts")
	}
	if s.cache != nil {
		s.cache.PutSummary(ctx, id, summary)
	}
	return summary, nil
}

// ResolveConflict marks one conflict as handled.
func (s *TimetableService) ResolveConflict(ctx context.Context, conflictID, notes string) error {
	conflict, err := s.conflicts.GetByID(ctx, conflictID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "conflict not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflict")
	}
	if conflict.IsResolved {
		return appErrors.Clone(appErrors.ErrConflict, "conflict is already resolved")
	}
	if err := s.conflicts.Resolve(ctx, conflictID, notes); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve conflict")
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx, conflict.TimetableID)
	}
	return nil
}

// Rescan recomputes and persists the timetable's conflicts.
func (s *TimetableService) Rescan(ctx context.Context, id string) ([]models.Conflict, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	sctx, err := s.BuildScheduleContext(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.mutex.Lock(id)
	defer unlock()

	conflicts, err := s.detector.Rescan(ctx, id, *sctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx, id)
	}
	return conflicts, nil
}

// BuildScheduleContext loads the reference data conflict detection needs for
// a stored timetable.
func (s *TimetableService) BuildScheduleContext(ctx context.Context, timetableID string) (*ScheduleContext, error) {
	sections, err := s.resources.ListSections(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	rooms, err := s.resources.ListRooms(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	faculty, err := s.resources.ListFaculty(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}

	slots, err := s.slots.ListByTimetable(ctx, timetableID, models.SlotFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}
	courseIDs := make([]string, 0, len(slots))
	seen := map[string]bool{}
	for _, slot := range slots {
		if slot.CourseID != nil && !seen[*slot.CourseID] {
			seen[*slot.CourseID] = true
			courseIDs = append(courseIDs, *slot.CourseID)
		}
	}
	courses, err := s.resources.ListCourses(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	sctx := &ScheduleContext{
		Sections:   make(map[string]models.Section, len(sections)),
		Rooms:      make(map[string]models.Room, len(rooms)),
		Courses:    make(map[string]models.Course, len(courses)),
		Faculty:    make(map[string]models.Faculty, len(faculty)),
		YearLevels: map[string]int{},
	}
	for _, section := range sections {
		sctx.Sections[section.ID] = section
	}
	for _, room := range rooms {
		sctx.Rooms[room.ID] = room
	}
	for _, course := range courses {
		sctx.Courses[course.ID] = course
	}
	for _, member := range faculty {
		sctx.Faculty[member.ID] = member
	}
	return sctx, nil
}
