package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type lockSlotStore interface {
	ListByTimetable(ctx context.Context, timetableID string, filter models.SlotFilter) ([]models.TimetableSlot, error)
	SetLocked(ctx context.Context, timetableID string, slotIDs []string, locked bool) (int, error)
	SetAllLocked(ctx context.Context, timetableID string, locked bool) (int, error)
	LockCounts(ctx context.Context, timetableID string) (int, int, error)
}

type lockTimetableStore interface {
	GetByID(ctx context.Context, id string) (*models.Timetable, error)
}

type lockCacheInvalidator interface {
	InvalidateTimetable(ctx context.Context, timetableID string)
}

// SlotLockService freezes and thaws individual slots so that regeneration and
// leave resolution leave approved placements alone.
type SlotLockService struct {
	slots      lockSlotStore
	timetables lockTimetableStore
	cache      lockCacheInvalidator
	mutex      *TimetableMutex
	logger     *zap.Logger
}

// NewSlotLockService constructs the service.
func NewSlotLockService(slots lockSlotStore, timetables lockTimetableStore, cache lockCacheInvalidator, mutex *TimetableMutex, logger *zap.Logger) *SlotLockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mutex == nil {
		mutex = NewTimetableMutex()
	}
	return &SlotLockService{slots: slots, timetables: timetables, cache: cache, mutex: mutex, logger: logger}
}

// Lock freezes the given slots. Returns the number of slots whose state changed.
func (s *SlotLockService) Lock(ctx context.Context, timetableID string, slotIDs []string) (int, error) {
	return s.setLocked(ctx, timetableID, slotIDs, true)
}

// Unlock thaws the given slots.
func (s *SlotLockService) Unlock(ctx context.Context, timetableID string, slotIDs []string) (int, error) {
	return s.setLocked(ctx, timetableID, slotIDs, false)
}

func (s *SlotLockService) setLocked(ctx context.Context, timetableID string, slotIDs []string, locked bool) (int, error) {
	if len(slotIDs) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "slot_ids must not be empty")
	}
	if err := s.ensureTimetable(ctx, timetableID); err != nil {
		return 0, err
	}

	unlock := s.mutex.Lock(timetableID)
	defer unlock()

	changed, err := s.slots.SetLocked(ctx, timetableID, slotIDs, locked)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot locks")
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx, timetableID)
	}
	s.logger.Info("slot locks updated",
		zap.String("timetable_id", timetableID), zap.Bool("locked", locked), zap.Int("changed", changed))
	return changed, nil
}

// LockAll freezes every slot of the timetable.
func (s *SlotLockService) LockAll(ctx context.Context, timetableID string) (int, error) {
	return s.setAllLocked(ctx, timetableID, true)
}

// UnlockAll thaws every slot of the timetable.
func (s *SlotLockService) UnlockAll(ctx context.Context, timetableID string) (int, error) {
	return s.setAllLocked(ctx, timetableID, false)
}

func (s *SlotLockService) setAllLocked(ctx context.Context, timetableID string, locked bool) (int, error) {
	if err := s.ensureTimetable(ctx, timetableID); err != nil {
		return 0, err
	}

	unlock := s.mutex.Lock(timetableID)
	defer unlock()

	changed, err := s.slots.SetAllLocked(ctx, timetableID, locked)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot locks")
	}
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx, timetableID)
	}
	return changed, nil
}

// ListLocked returns the locked slots of a timetable.
func (s *SlotLockService) ListLocked(ctx context.Context, timetableID string) ([]models.TimetableSlot, error) {
	if err := s.ensureTimetable(ctx, timetableID); err != nil {
		return nil, err
	}
	locked := true
	slots, err := s.slots.ListByTimetable(ctx, timetableID, models.SlotFilter{Locked: &locked})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locked slots")
	}
	return slots, nil
}

// Statistics reports how much of the timetable is frozen.
func (s *SlotLockService) Statistics(ctx context.Context, timetableID string) (*models.LockStatistics, error) {
	if err := s.ensureTimetable(ctx, timetableID); err != nil {
		return nil, err
	}
	total, locked, err := s.slots.LockCounts(ctx, timetableID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count slot locks")
	}

	stats := &models.LockStatistics{
		TotalSlots:    total,
		LockedSlots:   locked,
		UnlockedSlots: total - locked,
	}
	if total > 0 {
		stats.LockPercentage = float64(locked) / float64(total) * 100
	}
	return stats, nil
}

func (s *SlotLockService) ensureTimetable(ctx context.Context, timetableID string) error {
	if _, err := s.timetables.GetByID(ctx, timetableID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return nil
}
