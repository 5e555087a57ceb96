package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func timetableRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "semester_id", "name", "status", "quality_score", "conflict_count", "is_published",
		"published_at", "algorithm", "generation_time_seconds", "created_by_user_id", "created_at", "updated_at",
	}).AddRow("tt-1", "sem-1", "Fall draft", "COMPLETED", 0.92, 0, false,
		nil, "genetic", 4.2, nil, time.Now(), time.Now())
}

func TestTimetableRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetables WHERE semester_id = $1")).
		WithArgs("sem-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, semester_id, name, .+ FROM timetables WHERE semester_id = .+ ORDER BY conflict_count ASC").
		WithArgs("sem-1", 20, 0).
		WillReturnRows(timetableRows())

	list, total, err := repo.List(context.Background(), models.TimetableFilter{SemesterID: "sem-1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "tt-1", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec("INSERT INTO timetables").
		WillReturnResult(sqlmock.NewResult(1, 1))

	timetable := &models.Timetable{SemesterID: "sem-1", Name: "Fall draft", Status: models.TimetableStatusGenerating}
	require.NoError(t, repo.Create(context.Background(), timetable))
	assert.NotEmpty(t, timetable.ID)
	assert.False(t, timetable.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery("SELECT id, semester_id, name, .+ FROM timetables WHERE id = .+").
		WithArgs("tt-1").
		WillReturnRows(timetableRows())

	timetable, err := repo.GetByID(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, "Fall draft", timetable.Name)
	require.NotNil(t, timetable.QualityScore)
	assert.InDelta(t, 0.92, *timetable.QualityScore, 1e-9)
}

func TestTimetableRepositorySetPublished(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetables SET is_published = $2, published_at = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("tt-1", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SetPublished(context.Background(), "tt-1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteCascades(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_conflicts WHERE timetable_id = $1")).
		WithArgs("tt-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE timetable_id = $1")).
		WithArgs("tt-1").WillReturnResult(sqlmock.NewResult(0, 40))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetables WHERE id = $1")).
		WithArgs("tt-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "tt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
