package models

import "time"

// StudentProfile is the one-to-one student extension of a User. The token
// balance is written only by the approval transition.
type StudentProfile struct {
	UserID               int64     `db:"user_id" json:"user_id"`
	FieldID              int64     `db:"field_id" json:"field_id"`
	TokenBalance         int       `db:"token_balance" json:"token_balance"`
	PriorExperienceYears int       `db:"prior_experience_years" json:"prior_experience_years"`
	CGPA                 *float64  `db:"cgpa" json:"cgpa,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// EmployerProfile is the one-to-one employer extension of a User.
type EmployerProfile struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	Organization string    `db:"organization" json:"organization"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AvailableStudent is a student profile eligible for a given task,
// joined with the user's display data.
type AvailableStudent struct {
	UserID               int64    `db:"user_id" json:"user_id"`
	FullName             string   `db:"full_name" json:"full_name"`
	Email                string   `db:"email" json:"email"`
	FieldID              int64    `db:"field_id" json:"field_id"`
	PriorExperienceYears int      `db:"prior_experience_years" json:"prior_experience_years"`
	CGPA                 *float64 `db:"cgpa" json:"cgpa,omitempty"`
}
