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

type stubFieldRepo struct {
	fields map[int64]*models.Field
	nextID int64
}

func newStubFieldRepo() *stubFieldRepo {
	return &stubFieldRepo{fields: make(map[int64]*models.Field), nextID: 1}
}

func (s *stubFieldRepo) List(ctx context.Context) ([]models.Field, error) {
	out := make([]models.Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, *f)
	}
	return out, nil
}

func (s *stubFieldRepo) FindByID(ctx context.Context, id int64) (*models.Field, error) {
	f, ok := s.fields[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *f
	return &copied, nil
}

func (s *stubFieldRepo) Create(ctx context.Context, field *models.Field) error {
	field.ID = s.nextID
	s.nextID++
	copied := *field
	s.fields[field.ID] = &copied
	return nil
}

func (s *stubFieldRepo) Rename(ctx context.Context, id int64, name string) error {
	f, ok := s.fields[id]
	if !ok {
		return sql.ErrNoRows
	}
	f.Name = name
	return nil
}

func TestFieldServiceCreateTrimsName(t *testing.T) {
	svc := NewFieldService(newStubFieldRepo(), nil, zap.NewNop())

	field, err := svc.Create(context.Background(), CreateFieldRequest{Name: "  Data Labeling  "})
	require.NoError(t, err)
	assert.Equal(t, "Data Labeling", field.Name)
	assert.NotZero(t, field.ID)
}

func TestFieldServiceCreateRejectsEmptyName(t *testing.T) {
	svc := NewFieldService(newStubFieldRepo(), nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateFieldRequest{Name: ""})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestFieldServiceRename(t *testing.T) {
	repo := newStubFieldRepo()
	svc := NewFieldService(repo, nil, zap.NewNop())

	field, err := svc.Create(context.Background(), CreateFieldRequest{Name: "ML"})
	require.NoError(t, err)

	renamed, err := svc.Rename(context.Background(), field.ID, CreateFieldRequest{Name: "Machine Learning"})
	require.NoError(t, err)
	assert.Equal(t, "Machine Learning", renamed.Name)

	_, err = svc.Rename(context.Background(), 999, CreateFieldRequest{Name: "Nope"})
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}
