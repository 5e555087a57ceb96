package service

import (
	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

// homeRoomWeight is the soft score of a class held in the section's
// dedicated room. Any other placement scores zero.
const homeRoomWeight = 0.9

// ConstraintService holds the placement predicates shared by the generator
// and the conflict detector: hard room constraints that must never be broken
// and soft scores the search optimizes.
type ConstraintService struct {
	logger *zap.Logger
}

// NewConstraintService constructs the service.
func NewConstraintService(logger *zap.Logger) *ConstraintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConstraintService{logger: logger}
}

// CapacityFits reports whether the room can hold the cohort. Hard constraint.
func (s *ConstraintService) CapacityFits(room models.Room, studentCount int) bool {
	return room.Capacity >= studentCount
}

// LabSatisfied reports whether a course's lab requirement is met by the room.
// Hard constraint for courses with RequiresLab.
func (s *ConstraintService) LabSatisfied(course models.Course, room models.Room) bool {
	if !course.RequiresLab {
		return true
	}
	return room.IsLab()
}

// RoomAllowed combines the hard room constraints for one placement.
func (s *ConstraintService) RoomAllowed(section models.Section, course models.Course, room models.Room, batchSize int) bool {
	size := batchSize
	if size <= 0 {
		size = section.StudentCount
	}
	return s.CapacityFits(room, size) && s.LabSatisfied(course, room)
}

// HomeRoomScore rewards placing a class in the section's dedicated room.
// Sections without a home room score zero everywhere.
func (s *ConstraintService) HomeRoomScore(section models.Section, roomID string) float64 {
	if section.DedicatedRoomID != nil && *section.DedicatedRoomID == roomID {
		return homeRoomWeight
	}
	return 0
}

// DayFits reports whether a class of the given duration can start at the slot
// without running past the end of the teaching day.
func (s *ConstraintService) DayFits(startSlot, durationSlots, maxDailySlots int) bool {
	return startSlot >= 0 && startSlot+durationSlots <= maxDailySlots
}
