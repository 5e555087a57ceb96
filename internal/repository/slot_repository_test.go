package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

func slotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "timetable_id", "section_id", "course_id", "room_id", "start_slot", "duration_slots",
		"day_of_week", "primary_faculty_id", "assisting_faculty_ids", "batch_number", "is_locked", "created_at",
	}).AddRow("s1", "tt-1", "sec-a", "crs-1", "room-1", 2, 1, 0, "fac-1", "{}", nil, false, time.Now())
}

func TestSlotRepositoryBulkInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO timetable_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO timetable_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	slots := []models.TimetableSlot{
		{TimetableID: "tt-1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 0, StartSlot: 1, DurationSlots: 1},
		{TimetableID: "tt-1", SectionID: "sec-a", RoomID: "room-1", DayOfWeek: 1, StartSlot: 2, DurationSlots: 1},
	}
	require.NoError(t, repo.BulkInsert(context.Background(), slots))
	assert.NotEmpty(t, slots[0].ID)
	assert.NotEmpty(t, slots[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryBulkInsertEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	require.NoError(t, repo.BulkInsert(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryListByTimetableWithFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	day := 0
	mock.ExpectQuery("SELECT id, timetable_id, section_id, .+ FROM timetable_slots WHERE timetable_id = .+ AND day_of_week = .+ ORDER BY day_of_week, start_slot, section_id").
		WithArgs("tt-1", day).
		WillReturnRows(slotRows())

	slots, err := repo.ListByTimetable(context.Background(), "tt-1", models.SlotFilter{DayOfWeek: &day})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "s1", slots[0].ID)
	require.NotNil(t, slots[0].PrimaryFacultyID)
	assert.Equal(t, "fac-1", *slots[0].PrimaryFacultyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositorySetLocked(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_slots SET is_locked = $3 WHERE timetable_id = $1 AND id = ANY($2)")).
		WithArgs("tt-1", sqlmock.AnyArg(), true).
		WillReturnResult(sqlmock.NewResult(0, 2))

	changed, err := repo.SetLocked(context.Background(), "tt-1", []string{"s1", "s2"}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositorySetLockedNoIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	changed, err := repo.SetLocked(context.Background(), "tt-1", nil, true)
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryLockCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS total, COUNT\\(\\*\\) FILTER \\(WHERE is_locked\\) AS locked").
		WithArgs("tt-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "locked"}).AddRow(40, 10))

	total, locked, err := repo.LockCounts(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 40, total)
	assert.Equal(t, 10, locked)
}

func TestSlotRepositoryUpdateFaculty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	newPrimary := "fac-2"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_slots SET primary_faculty_id = $2, assisting_faculty_ids = $3 WHERE id = $1")).
		WithArgs("s1", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateFaculty(context.Background(), "s1", &newPrimary, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
