package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sweep-app/sweep-api/internal/models"
	"github.com/sweep-app/sweep-api/internal/repository"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
)

type stubUserRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	nextID        int64
	revokedAll    int
	audits        []*models.AuditLog
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		users:         make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserRepo) FindByID(_ context.Context, id int64) (*models.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) Create(_ context.Context, user *models.User) error {
	if _, ok := s.users[user.Email]; ok {
		return repository.ErrEmailTaken
	}
	s.nextID++
	user.ID = s.nextID
	copied := *user
	s.users[user.Email] = &copied
	return nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id int64, ts time.Time) error {
	for _, user := range s.users {
		if user.ID == id {
			user.LastLogin = &ts
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *stubUserRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	copied := *token
	s.refreshTokens[token.Token] = &copied
	return nil
}

func (s *stubUserRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := s.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (s *stubUserRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, token := range s.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *stubUserRepo) RevokeUserRefreshTokens(_ context.Context, userID int64) error {
	s.revokedAll++
	for _, token := range s.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (s *stubUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.audits = append(s.audits, log)
	return nil
}

func newAuthService(repo *stubUserRepo) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "sweep-api",
	})
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: email, PasswordHash: string(hash), FullName: "Test User", Role: role, Active: true}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestAuthRegisterAndDuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(repo)
	ctx := context.Background()

	req := models.RegisterRequest{
		Email:    "student@example.com",
		Password: "secret123",
		FullName: "Ada Student",
		Role:     models.RoleStudent,
	}
	info, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, info.Role)
	assert.NotZero(t, info.ID)

	_, err = svc.Register(ctx, req)
	assertAppError(t, err, appErrors.ErrConflict.Code)
}

func TestAuthRegisterRejectsAdminRole(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "admin@example.com",
		Password: "secret123",
		FullName: "Not An Admin",
		Role:     models.RoleAdmin,
	})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestAuthLoginAndTokenValidation(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(repo)
	user := seedUser(t, repo, "employer@example.com", "secret123", models.RoleEmployer)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleEmployer, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(repo)
	user := seedUser(t, repo, "employer@example.com", "secret123", models.RoleEmployer)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(repo)
	user := seedUser(t, repo, "employer@example.com", "secret123", models.RoleEmployer)
	repo.users[user.Email].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	assertAppError(t, err, appErrors.ErrInactiveAccount.Code)
}

func TestAuthRefreshRotation(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(repo)
	user := seedUser(t, repo, "student@example.com", "secret123", models.RoleStudent)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, rotated.RefreshToken)

	// The old token is revoked by rotation and cannot be replayed.
	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	assertAppError(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(newStubUserRepo())
	_, err := svc.ValidateToken("not-a-jwt")
	assertAppError(t, err, appErrors.ErrUnauthorized.Code)
}
