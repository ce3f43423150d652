package models

import (
	"database/sql"
	"time"
)

// Keyword represents a row in the 'keywords' table
type Keyword struct {
	ID        int64          `db:"id"`
	Phrase    string         `db:"phrase"`
	Comments  sql.NullString `db:"comments"`
	Status    string         `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// NewKeyword creates a new Keyword with default values
func NewKeyword(phrase string) *Keyword {
	now := time.Now()
	return &Keyword{
		Phrase:    phrase,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
}
