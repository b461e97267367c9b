package models

import "time"

// Audit actions recorded by the service.
const (
	AuditActionLogin               = "auth.login"
	AuditActionRegister            = "auth.register"
	AuditActionAssignmentRequested = "assignment.requested"
	AuditActionAssignmentAccepted  = "assignment.accepted"
	AuditActionAssignmentRejected  = "assignment.rejected"
	AuditActionAssignmentCompleted = "assignment.completed"
	AuditActionAssignmentApproved  = "assignment.approved"
)

// AuditLog records a user-visible action for traceability.
type AuditLog struct {
	ID         int64     `db:"id" json:"id"`
	UserID     *int64    `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *int64    `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
