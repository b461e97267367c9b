package models

import "time"

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background export lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// AssignmentExport is a persisted assignment-report export job.
type AssignmentExport struct {
	ID           string       `db:"id" json:"id"`
	UserID       int64        `db:"user_id" json:"user_id"`
	Role         UserRole     `db:"role" json:"role"`
	Format       ExportFormat `db:"format" json:"format"`
	Status       ExportStatus `db:"status" json:"status"`
	ResultURL    *string      `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}
