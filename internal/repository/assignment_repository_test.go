package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweep-app/sweep-api/internal/models"
)

func newAssignmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("INSERT INTO task_assignments").
		WithArgs(int64(100), int64(10), models.AssignmentRequested, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	assignment := &models.TaskAssignment{TaskID: 100, StudentUserID: 10}
	require.NoError(t, repo.Create(context.Background(), assignment))
	assert.Equal(t, int64(1), assignment.ID)
	assert.Equal(t, models.AssignmentRequested, assignment.Status)
	assert.False(t, assignment.RequestedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreateDuplicatePair(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("INSERT INTO task_assignments").
		WithArgs(int64(100), int64(10), models.AssignmentRequested, sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	err := repo.Create(context.Background(), &models.TaskAssignment{TaskID: 100, StudentUserID: 10})
	assert.ErrorIs(t, err, ErrDuplicatePair)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryMarkAccepted(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE task_assignments SET status").
		WithArgs(models.AssignmentAccepted, at, int64(1), models.AssignmentRequested).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkAccepted(context.Background(), 1, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryMarkAcceptedLostRace(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE task_assignments SET status").
		WithArgs(models.AssignmentAccepted, at, int64(1), models.AssignmentRequested).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkAccepted(context.Background(), 1, at)
	assert.ErrorIs(t, err, ErrStateChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, student_user_id FROM task_assignments WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "student_user_id"}).
			AddRow(string(models.AssignmentCompleted), int64(10)))
	mock.ExpectExec("UPDATE task_assignments SET status").
		WithArgs(models.AssignmentApproved, at, 75, int64(1), models.AssignmentCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE student_profiles SET token_balance").
		WithArgs(75, at, int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"token_balance"}).AddRow(175))
	mock.ExpectCommit()

	balance, err := repo.Approve(context.Background(), 1, 75, at)
	require.NoError(t, err)
	assert.Equal(t, 175, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryApproveWrongState(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, student_user_id FROM task_assignments WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "student_user_id"}).
			AddRow(string(models.AssignmentApproved), int64(10)))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), 1, 75, time.Now().UTC())
	assert.ErrorIs(t, err, ErrStateChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("DELETE FROM task_assignments").
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 404)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryExistsForTask(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM task_assignments WHERE task_id = $1 LIMIT 1")).
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsForTask(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM task_assignments WHERE task_id = $1 LIMIT 1")).
		WithArgs(int64(200)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err = repo.ExistsForTask(context.Background(), 200)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListByStudentFilter(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "task_id", "student_user_id", "status",
		"requested_at", "accepted_at", "completed_at", "approved_at", "tokens_awarded",
		"task_title", "task_deadline", "task_complexity", "employer_user_id", "student_name",
	}).AddRow(
		int64(1), int64(100), int64(10), string(models.AssignmentCompleted),
		time.Now(), time.Now(), time.Now(), nil, nil,
		"Annotate dataset", time.Now().Add(time.Hour), string(models.ComplexityMedium), int64(1), "Ada",
	)

	mock.ExpectQuery("FROM task_assignments a").
		WithArgs(int64(10)).
		WillReturnRows(rows)

	completed := true
	assignments, err := repo.ListByStudent(context.Background(), 10, models.StudentAssignmentFilter{Completed: &completed})
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, models.AssignmentCompleted, assignments[0].Status)
	assert.Equal(t, "Annotate dataset", assignments[0].TaskTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}
