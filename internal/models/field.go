package models

import "time"

// Field is a subject-matter category used to match students to tasks.
type Field struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
