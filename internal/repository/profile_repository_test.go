package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweep-app/sweep-api/internal/models"
)

func newProfileMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func availableStudentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "full_name", "email", "field_id", "prior_experience_years", "cgpa"}).
		AddRow(int64(10), "Ada Student", "ada@example.com", int64(7), 2, nil)
}

func TestProfileRepositoryListAvailableStudentsRequiresExperience(t *testing.T) {
	db, mock, cleanup := newProfileMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	// Pair exclusion and the experience filter must both be present.
	mock.ExpectQuery("(?s)NOT EXISTS.*" + regexp.QuoteMeta(") AND sp.prior_experience_years > 0 ORDER BY u.full_name ASC")).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(availableStudentRows())

	task := &models.JobTask{ID: 42, FieldID: 7, RequiresExperience: true}
	students, err := repo.ListAvailableStudents(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, int64(10), students[0].UserID)
	assert.Equal(t, 2, students[0].PriorExperienceYears)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryListAvailableStudentsWithoutExperienceFilter(t *testing.T) {
	db, mock, cleanup := newProfileMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	// Pair exclusion always applies; the experience predicate must be
	// absent, so ORDER BY directly follows the NOT EXISTS close paren.
	mock.ExpectQuery("(?s)NOT EXISTS.*" + regexp.QuoteMeta(") ORDER BY u.full_name ASC")).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(availableStudentRows())

	task := &models.JobTask{ID: 42, FieldID: 7, RequiresExperience: false}
	students, err := repo.ListAvailableStudents(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
