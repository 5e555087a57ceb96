package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	"github.com/timeweaver/timeweaver-api/pkg/config"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type preferenceStore interface {
	ListAll(ctx context.Context) ([]models.FacultyPreference, error)
	ListByFaculty(ctx context.Context, facultyID string) ([]models.FacultyPreference, error)
}

type prefKey struct {
	facultyID string
	day       int
	slot      int
}

// PreferenceIndex is a prebuilt lookup from (faculty, day, slot) to a signed
// weight. Preferred slots pull the score up; unavailable slots carry a weight
// large enough to dominate any aggregate, making them effectively hard.
type PreferenceIndex struct {
	weights map[prefKey]float64
}

// Weight returns the signed weight for a placement, zero when the faculty has
// expressed nothing about the slot.
func (i *PreferenceIndex) Weight(facultyID string, day, slot int) float64 {
	if i == nil || i.weights == nil {
		return 0
	}
	return i.weights[prefKey{facultyID, day, slot}]
}

// Available reports whether the faculty member has not blocked the slot.
func (i *PreferenceIndex) Available(facultyID string, day, slot int) bool {
	if i == nil || i.weights == nil {
		return true
	}
	return i.weights[prefKey{facultyID, day, slot}] > notAvailableThreshold
}

// notAvailableThreshold separates genuine scoring weights from the sentinel
// weight used for blocked slots.
const notAvailableThreshold = -1000

// PreferenceService builds preference indexes for the generator and the
// substitute recommender.
type PreferenceService struct {
	repo   preferenceStore
	cfg    config.PreferenceConfig
	logger *zap.Logger
}

// NewPreferenceService constructs the service.
func NewPreferenceService(repo preferenceStore, cfg config.PreferenceConfig, logger *zap.Logger) *PreferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{repo: repo, cfg: cfg, logger: logger}
}

// BuildIndex loads every stored preference into a weighted lookup.
func (s *PreferenceService) BuildIndex(ctx context.Context) (*PreferenceIndex, error) {
	prefs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty preferences")
	}
	return s.indexOf(prefs), nil
}

// BuildFacultyIndex loads one faculty member's preferences.
func (s *PreferenceService) BuildFacultyIndex(ctx context.Context, facultyID string) (*PreferenceIndex, error) {
	prefs, err := s.repo.ListByFaculty(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty preferences")
	}
	return s.indexOf(prefs), nil
}

func (s *PreferenceService) indexOf(prefs []models.FacultyPreference) *PreferenceIndex {
	weights := make(map[prefKey]float64, len(prefs))
	for _, pref := range prefs {
		key := prefKey{pref.FacultyID, pref.DayOfWeek, pref.TimeSlotIndex}
		switch pref.PreferenceType {
		case models.PreferencePreferred:
			weights[key] = s.cfg.PreferredWeight
		case models.PreferenceNotAvailable:
			weights[key] = s.cfg.NotAvailableWeight
		default:
			s.logger.Warn("unknown preference type ignored",
				zap.String("faculty_id", pref.FacultyID), zap.String("type", string(pref.PreferenceType)))
		}
	}
	return &PreferenceIndex{weights: weights}
}
