package models

import "time"

// AssignmentStatus is the explicit lifecycle state of a TaskAssignment.
// The transition timestamps are metadata; status is the source of truth.
type AssignmentStatus string

const (
	AssignmentRequested AssignmentStatus = "REQUESTED"
	AssignmentAccepted  AssignmentStatus = "ACCEPTED"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentApproved  AssignmentStatus = "APPROVED"
)

// TaskAssignment tracks one student's engagement with one task. The
// (task_id, student_user_id) pair is unique at the storage layer; a
// rejected or unassigned record is deleted, freeing the pair.
type TaskAssignment struct {
	ID            int64            `db:"id" json:"id"`
	TaskID        int64            `db:"task_id" json:"task_id"`
	StudentUserID int64            `db:"student_user_id" json:"student_user_id"`
	Status        AssignmentStatus `db:"status" json:"status"`
	RequestedAt   time.Time        `db:"requested_at" json:"requested_at"`
	AcceptedAt    *time.Time       `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt   *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	ApprovedAt    *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	TokensAwarded *int             `db:"tokens_awarded" json:"tokens_awarded,omitempty"`
}

// AssignmentDetail joins an assignment with task and student context.
type AssignmentDetail struct {
	TaskAssignment
	TaskTitle      string     `db:"task_title" json:"task_title"`
	TaskDeadline   time.Time  `db:"task_deadline" json:"task_deadline"`
	TaskComplexity Complexity `db:"task_complexity" json:"task_complexity"`
	EmployerUserID int64      `db:"employer_user_id" json:"employer_user_id"`
	StudentName    string     `db:"student_name" json:"student_name"`
}

// EmployerAssignmentList is the employer view of assignments with the
// derived activity flags.
type EmployerAssignmentList struct {
	Assignments           []AssignmentDetail `json:"assignments"`
	HasAwaitingAcceptance bool               `json:"has_awaiting_acceptance"`
	HasActiveAssignments  bool               `json:"has_active_assignments"`
}

// StudentAssignmentFilter narrows the student's own assignment listing.
type StudentAssignmentFilter struct {
	Completed *bool
}
