package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

func substituteFixture(slots []models.TimetableSlot, faculty []models.Faculty, prefs []models.FacultyPreference) *SubstituteService {
	return NewSubstituteService(
		&detectorSlotStoreStub{slots: slots},
		&workloadResourceStoreStub{faculty: faculty},
		NewPreferenceService(&preferenceStoreStub{prefs: prefs}, preferenceConfig(), nil),
		nil,
	)
}

func TestRecommendRanksCandidates(t *testing.T) {
	target := models.TimetableSlot{
		ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 2, DurationSlots: 1,
		PrimaryFacultyID: strPtr("fac-absent"),
	}
	slots := []models.TimetableSlot{
		target,
		// fac-busy teaches elsewhere at the same period.
		{ID: "s2", SectionID: "sec-b", DayOfWeek: 0, StartSlot: 2, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-busy")},
		// fac-loaded carries hours but is free at the period.
		{ID: "s3", SectionID: "sec-b", DayOfWeek: 1, StartSlot: 0, DurationSlots: 8, PrimaryFacultyID: strPtr("fac-loaded")},
	}
	faculty := []models.Faculty{
		{ID: "fac-absent", DepartmentID: "dept-cs", MaxHoursPerWeek: 10},
		{ID: "fac-busy", DepartmentID: "dept-cs", MaxHoursPerWeek: 10},
		{ID: "fac-loaded", DepartmentID: "dept-cs", MaxHoursPerWeek: 10},
		{ID: "fac-free", DepartmentID: "dept-me", MaxHoursPerWeek: 10},
	}
	svc := substituteFixture(slots, faculty, nil)

	candidates, err := svc.Recommend(context.Background(), "tt-1", target, "", 0)
	require.NoError(t, err)

	// The absent teacher and the clashing one are excluded.
	require.Len(t, candidates, 2)
	assert.Equal(t, "fac-free", candidates[0].CandidateID)
	assert.Equal(t, "fac-loaded", candidates[1].CandidateID)
	assert.Greater(t, candidates[0].Score, candidates[1].Score)
	assert.InDelta(t, 80.0, candidates[1].Utilization, 1e-9)
}

func TestRecommendDepartmentAffinityBreaksTies(t *testing.T) {
	target := models.TimetableSlot{ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 2, DurationSlots: 1}
	faculty := []models.Faculty{
		{ID: "fac-cs", DepartmentID: "dept-cs", MaxHoursPerWeek: 10},
		{ID: "fac-me", DepartmentID: "dept-me", MaxHoursPerWeek: 10},
	}
	svc := substituteFixture([]models.TimetableSlot{target}, faculty, nil)

	candidates, err := svc.Recommend(context.Background(), "tt-1", target, "dept-cs", 0)
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, "fac-cs", candidates[0].CandidateID)
	assert.InDelta(t, 25.0, candidates[0].Score-candidates[1].Score, 1e-9)
}

func TestRecommendPenalizesUnavailable(t *testing.T) {
	target := models.TimetableSlot{ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 2, DurationSlots: 1}
	faculty := []models.Faculty{{ID: "fac-1", DepartmentID: "dept-cs", MaxHoursPerWeek: 10}}
	prefs := []models.FacultyPreference{
		{ID: "p1", FacultyID: "fac-1", DayOfWeek: 0, TimeSlotIndex: 2, PreferenceType: models.PreferenceNotAvailable},
	}
	svc := substituteFixture([]models.TimetableSlot{target}, faculty, prefs)

	candidates, err := svc.Recommend(context.Background(), "tt-1", target, "", 0)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "marked unavailable at this period", candidates[0].Reason)
	assert.InDelta(t, 50.0, candidates[0].Score, 1e-9)
}

func TestRecommendHonorsLimit(t *testing.T) {
	target := models.TimetableSlot{ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 2, DurationSlots: 1}
	faculty := []models.Faculty{
		{ID: "fac-1", MaxHoursPerWeek: 10},
		{ID: "fac-2", MaxHoursPerWeek: 10},
		{ID: "fac-3", MaxHoursPerWeek: 10},
	}
	svc := substituteFixture([]models.TimetableSlot{target}, faculty, nil)

	candidates, err := svc.Recommend(context.Background(), "tt-1", target, "", 2)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestRecommendForSlotUnknownSlot(t *testing.T) {
	svc := substituteFixture(nil, nil, nil)

	_, err := svc.RecommendForSlot(context.Background(), "tt-1", "missing", "", 5)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
