package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type workloadResourceStoreStub struct {
	faculty []models.Faculty
}

func (s *workloadResourceStoreStub) GetFaculty(ctx context.Context, id string) (*models.Faculty, error) {
	for _, member := range s.faculty {
		if member.ID == id {
			copied := member
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *workloadResourceStoreStub) ListFaculty(ctx context.Context, departmentID string) ([]models.Faculty, error) {
	return s.faculty, nil
}

func workloadFixtureSlots() []models.TimetableSlot {
	return []models.TimetableSlot{
		{ID: "s1", SectionID: "sec-a", DayOfWeek: 0, StartSlot: 0, DurationSlots: 2, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s2", SectionID: "sec-b", DayOfWeek: 1, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-1")},
		{ID: "s3", SectionID: "sec-a", DayOfWeek: 2, StartSlot: 0, DurationSlots: 1, PrimaryFacultyID: strPtr("fac-2")},
		{ID: "s4", SectionID: "sec-a", DayOfWeek: 3, StartSlot: 0, DurationSlots: 1},
	}
}

func TestComputeWorkloads(t *testing.T) {
	svc := NewWorkloadService(
		&detectorSlotStoreStub{slots: workloadFixtureSlots()},
		&workloadResourceStoreStub{faculty: []models.Faculty{
			{ID: "fac-1", MaxHoursPerWeek: 2},
			{ID: "fac-2", MaxHoursPerWeek: 10},
		}},
		nil,
	)

	workloads, err := svc.Compute(context.Background(), "tt-1")
	require.NoError(t, err)
	require.Len(t, workloads, 2)

	// Heaviest first.
	first := workloads[0]
	assert.Equal(t, "fac-1", first.FacultyID)
	assert.Equal(t, 3, first.TotalHours)
	assert.Equal(t, 2, first.MaxHours)
	assert.Equal(t, 2, first.SectionCount)
	assert.True(t, first.IsOverloaded)
	assert.InDelta(t, 150.0, first.UtilizationPercentage, 1e-9)

	second := workloads[1]
	assert.Equal(t, "fac-2", second.FacultyID)
	assert.Equal(t, 1, second.TotalHours)
	assert.False(t, second.IsOverloaded)
	assert.InDelta(t, 10.0, second.UtilizationPercentage, 1e-9)
}

func TestComputeForSingleFaculty(t *testing.T) {
	svc := NewWorkloadService(
		&detectorSlotStoreStub{slots: workloadFixtureSlots()},
		&workloadResourceStoreStub{faculty: []models.Faculty{{ID: "fac-2", MaxHoursPerWeek: 10}}},
		nil,
	)

	workload, err := svc.ComputeFor(context.Background(), "tt-1", "fac-2")
	require.NoError(t, err)
	assert.Equal(t, 1, workload.TotalHours)
	assert.Equal(t, 1, workload.SectionCount)
	assert.InDelta(t, 10.0, workload.UtilizationPercentage, 1e-9)
}

func TestComputeForUnknownFaculty(t *testing.T) {
	svc := NewWorkloadService(&detectorSlotStoreStub{}, &workloadResourceStoreStub{}, nil)

	_, err := svc.ComputeFor(context.Background(), "tt-1", "missing")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
