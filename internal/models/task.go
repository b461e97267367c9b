package models

import "time"

// Complexity is an enumerated difficulty tier, also used as the
// suggested token award for a task.
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// SuggestedTokens maps a complexity tier to its default token award.
func (c Complexity) SuggestedTokens() int {
	switch c {
	case ComplexityLow:
		return 50
	case ComplexityMedium:
		return 100
	case ComplexityHigh:
		return 200
	default:
		return 0
	}
}

// Valid reports whether the tier is one of the known values.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// JobTask is an employer-authored unit of work posted for students.
type JobTask struct {
	ID                   int64      `db:"id" json:"id"`
	EmployerUserID       int64      `db:"employer_user_id" json:"employer_user_id"`
	Title                string     `db:"title" json:"title"`
	Description          string     `db:"description" json:"description"`
	Deadline             time.Time  `db:"deadline" json:"deadline"`
	RequiresExperience   bool       `db:"requires_experience" json:"requires_experience"`
	Complexity           Complexity `db:"complexity" json:"complexity"`
	MonetaryCompensation *float64   `db:"monetary_compensation" json:"monetary_compensation,omitempty"`
	FieldID              int64      `db:"field_id" json:"field_id"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// TaskFilter captures filtering criteria for listing tasks.
type TaskFilter struct {
	FieldID        *int64
	EmployerUserID *int64
	OpenOnly       bool
	Search         string
	Page           int
	PageSize       int
}
