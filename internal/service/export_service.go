package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweep-app/sweep-api/internal/models"
	appErrors "github.com/sweep-app/sweep-api/pkg/errors"
	"github.com/sweep-app/sweep-api/pkg/export"
	"github.com/sweep-app/sweep-api/pkg/jobs"
	"github.com/sweep-app/sweep-api/pkg/storage"
)

const exportJobType = "assignment.export"

type exportRepository interface {
	Create(ctx context.Context, export *models.AssignmentExport) error
	FindByID(ctx context.Context, id string) (*models.AssignmentExport, error)
	SetStatus(ctx context.Context, id string, status models.ExportStatus) error
	MarkFinished(ctx context.Context, id, resultURL string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
}

type exportAssignmentReader interface {
	ListByEmployer(ctx context.Context, employerUserID int64, taskID *int64) ([]models.AssignmentDetail, error)
	ListByStudent(ctx context.Context, studentUserID int64, filter models.StudentAssignmentFilter) ([]models.AssignmentDetail, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders assignment history reports in the background and
// serves them through signed download URLs.
type ExportService struct {
	exports     exportRepository
	assignments exportAssignmentReader
	storage     exportFileStorage
	signer      *storage.SignedURLSigner
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	queue       *jobs.Queue
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService. Call BindQueue before
// requesting exports.
func NewExportService(exports exportRepository, assignments exportAssignmentReader, store exportFileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		exports:     exports,
		assignments: assignments,
		storage:     store,
		signer:      signer,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
		cfg:         cfg,
	}
}

// BindQueue attaches the worker queue that drives Process.
func (s *ExportService) BindQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Request persists a queued export for the caller and hands it to the
// worker pool.
func (s *ExportService) Request(ctx context.Context, actor Actor, format models.ExportFormat) (*models.AssignmentExport, error) {
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if actor.Role != models.RoleEmployer && actor.Role != models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "exports are not enabled")
	}

	exp := &models.AssignmentExport{
		ID:     uuid.NewString(),
		UserID: actor.UserID,
		Role:   actor.Role,
		Format: format,
		Status: models.ExportStatusQueued,
	}
	if err := s.exports.Create(ctx, exp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: exp.ID, Type: exportJobType, Payload: exp.ID}); err != nil {
		now := time.Now().UTC()
		if markErr := s.exports.MarkFailed(ctx, exp.ID, "queue unavailable", now); markErr != nil {
			s.logger.Warn("failed to mark export failed", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}
	return exp, nil
}

// Get returns an export job owned by the caller.
func (s *ExportService) Get(ctx context.Context, actor Actor, id string) (*models.AssignmentExport, error) {
	exp, err := s.exports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export")
	}
	if exp.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export belongs to another user")
	}
	return exp, nil
}

// Process is the queue handler: render, store, sign, finish.
func (s *ExportService) Process(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected export payload %T", job.Payload)
	}

	exp, err := s.exports.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load export %s: %w", id, err)
	}
	if exp.Status == models.ExportStatusFinished {
		return nil
	}
	if err := s.exports.SetStatus(ctx, id, models.ExportStatusProcessing); err != nil {
		return err
	}

	table, err := s.buildTable(ctx, exp)
	if err != nil {
		return s.fail(ctx, id, err)
	}

	var rendered []byte
	filename := fmt.Sprintf("assignments/%s.%s", exp.ID, exp.Format)
	switch exp.Format {
	case models.ExportFormatPDF:
		rendered, err = s.pdf.Render(table, "assignment report")
	default:
		rendered, err = s.csv.Render(table)
	}
	if err != nil {
		return s.fail(ctx, id, err)
	}

	relPath, err := s.storage.Save(filename, rendered)
	if err != nil {
		return s.fail(ctx, id, err)
	}

	token, _, err := s.signer.Generate(exp.ID, relPath)
	if err != nil {
		return s.fail(ctx, id, err)
	}
	resultURL := fmt.Sprintf("%s/exports/download?token=%s", s.cfg.APIPrefix, token)

	if err := s.exports.MarkFinished(ctx, id, resultURL, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.Info("export finished", zap.String("export_id", id), zap.String("format", string(exp.Format)))
	return nil
}

// Download validates a signed token and opens the rendered file.
func (s *ExportService) Download(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

// Cleanup removes rendered files older than the result TTL.
func (s *ExportService) Cleanup() {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("export cleanup removed files", zap.Int("count", len(deleted)))
	}
}

func (s *ExportService) buildTable(ctx context.Context, exp *models.AssignmentExport) (export.Table, error) {
	var (
		assignments []models.AssignmentDetail
		err         error
	)
	if exp.Role == models.RoleEmployer {
		assignments, err = s.assignments.ListByEmployer(ctx, exp.UserID, nil)
	} else {
		assignments, err = s.assignments.ListByStudent(ctx, exp.UserID, models.StudentAssignmentFilter{})
	}
	if err != nil {
		return export.Table{}, err
	}

	table := export.Table{
		Columns: []string{"assignment_id", "task", "student", "status", "requested_at", "approved_at", "tokens_awarded"},
	}
	for _, a := range assignments {
		approvedAt := ""
		if a.ApprovedAt != nil {
			approvedAt = a.ApprovedAt.Format(time.RFC3339)
		}
		tokens := ""
		if a.TokensAwarded != nil {
			tokens = strconv.Itoa(*a.TokensAwarded)
		}
		table.Rows = append(table.Rows, []string{
			strconv.FormatInt(a.ID, 10),
			a.TaskTitle,
			a.StudentName,
			string(a.Status),
			a.RequestedAt.Format(time.RFC3339),
			approvedAt,
			tokens,
		})
	}
	return table, nil
}

func (s *ExportService) fail(ctx context.Context, id string, cause error) error {
	if err := s.exports.MarkFailed(ctx, id, cause.Error(), time.Now().UTC()); err != nil {
		s.logger.Warn("failed to mark export failed", zap.Error(err))
	}
	return cause
}
