package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeweaver/timeweaver-api/internal/models"
)

func TestLeaveRepositoryUpdateStatusStampsApproval(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE faculty_leaves SET status = $2, updated_at = $3, approved_at = $4 WHERE id = $1")).
		WithArgs("leave-1", models.LeaveApproved, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "leave-1", models.LeaveApproved))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryUpdateStatusPlainTransition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE faculty_leaves SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("leave-1", models.LeaveRejected, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "leave-1", models.LeaveRejected))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositorySaveResolution(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	payload := types.JSONText(`{"applied_swaps":[]}`)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE faculty_leaves SET resolution_details = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("leave-1", payload, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveResolution(context.Background(), "leave-1", payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}
