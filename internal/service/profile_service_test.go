package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweep-app/sweep-api/internal/models"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
)

type stubProfileRepo struct {
	students  map[int64]*models.StudentProfile
	employers map[int64]*models.EmployerProfile
}

func newStubProfileRepo() *stubProfileRepo {
	return &stubProfileRepo{
		students:  make(map[int64]*models.StudentProfile),
		employers: make(map[int64]*models.EmployerProfile),
	}
}

func (s *stubProfileRepo) FindStudent(_ context.Context, userID int64) (*models.StudentProfile, error) {
	profile, ok := s.students[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *profile
	return &copied, nil
}

func (s *stubProfileRepo) FindEmployer(_ context.Context, userID int64) (*models.EmployerProfile, error) {
	profile, ok := s.employers[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *profile
	return &copied, nil
}

func (s *stubProfileRepo) UpsertStudent(_ context.Context, profile *models.StudentProfile) error {
	if existing, ok := s.students[profile.UserID]; ok {
		// The balance lives with the stored row, never the payload.
		profile.TokenBalance = existing.TokenBalance
	}
	copied := *profile
	s.students[profile.UserID] = &copied
	return nil
}

func (s *stubProfileRepo) UpsertEmployer(_ context.Context, profile *models.EmployerProfile) error {
	copied := *profile
	s.employers[profile.UserID] = &copied
	return nil
}

func newProfileService(repo *stubProfileRepo) *ProfileService {
	fields := &stubFieldReader{fields: map[int64]*models.Field{1: {ID: 1, Name: "Software"}}}
	return NewProfileService(repo, fields, nil, zap.NewNop())
}

func TestProfileUpsertStudent(t *testing.T) {
	repo := newStubProfileRepo()
	svc := newProfileService(repo)
	student := Actor{UserID: 10, Role: models.RoleStudent}

	profile, err := svc.UpsertStudent(context.Background(), student, UpsertStudentProfileRequest{FieldID: 1, PriorExperienceYears: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(10), profile.UserID)
	assert.Zero(t, profile.TokenBalance)
}

func TestProfileUpsertStudentKeepsBalance(t *testing.T) {
	repo := newStubProfileRepo()
	repo.students[10] = &models.StudentProfile{UserID: 10, FieldID: 1, TokenBalance: 120}
	svc := newProfileService(repo)
	student := Actor{UserID: 10, Role: models.RoleStudent}

	_, err := svc.UpsertStudent(context.Background(), student, UpsertStudentProfileRequest{FieldID: 1, PriorExperienceYears: 5})
	require.NoError(t, err)
	assert.Equal(t, 120, repo.students[10].TokenBalance)
	assert.Equal(t, 5, repo.students[10].PriorExperienceYears)
}

func TestProfileUpsertStudentRoleGate(t *testing.T) {
	svc := newProfileService(newStubProfileRepo())
	employer := Actor{UserID: 1, Role: models.RoleEmployer}

	_, err := svc.UpsertStudent(context.Background(), employer, UpsertStudentProfileRequest{FieldID: 1})
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestProfileUpsertStudentUnknownField(t *testing.T) {
	svc := newProfileService(newStubProfileRepo())
	student := Actor{UserID: 10, Role: models.RoleStudent}

	_, err := svc.UpsertStudent(context.Background(), student, UpsertStudentProfileRequest{FieldID: 9})
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestProfileUpsertEmployer(t *testing.T) {
	repo := newStubProfileRepo()
	svc := newProfileService(repo)
	employer := Actor{UserID: 1, Role: models.RoleEmployer}

	profile, err := svc.UpsertEmployer(context.Background(), employer, UpsertEmployerProfileRequest{Organization: "  Acme Corp  "})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", profile.Organization)

	student := Actor{UserID: 10, Role: models.RoleStudent}
	_, err = svc.UpsertEmployer(context.Background(), student, UpsertEmployerProfileRequest{Organization: "Acme"})
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestProfileGetStudentNotFound(t *testing.T) {
	svc := newProfileService(newStubProfileRepo())
	_, err := svc.GetStudent(context.Background(), 404)
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}
