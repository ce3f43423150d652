package models

import (
	"database/sql"
	"fmt"
	"time"
)

// LeadStatus is the triage state of a lead. Transitions are unconstrained:
// a human may move a lead between any two states.
type LeadStatus string

const (
	StatusNew     LeadStatus = "new"
	StatusPitched LeadStatus = "pitched"
	StatusFixed   LeadStatus = "fixed"
)

// ParseLeadStatus validates a status string from user input.
func ParseLeadStatus(s string) (LeadStatus, error) {
	switch LeadStatus(s) {
	case StatusNew, StatusPitched, StatusFixed:
		return LeadStatus(s), nil
	}
	return "", fmt.Errorf("unknown lead status %q", s)
}

// Lead represents a row in the 'leads' table
type Lead struct {
	ID             int64          `db:"id" json:"-"`
	ExternalID     string         `db:"external_id" json:"external_id"`
	Title          string         `db:"title" json:"title"`
	Body           string         `db:"body" json:"body"`
	SourceURL      string         `db:"source_url" json:"source_url"`
	Subreddit      string         `db:"subreddit" json:"subreddit,omitempty"`
	MatchedKeyword string         `db:"matched_keyword" json:"matched_keyword,omitempty"`
	Status         LeadStatus     `db:"status" json:"status"`
	PitchDraft     sql.NullString `db:"pitch_draft" json:"-"`
	DiscoveredAt   time.Time      `db:"discovered_at" json:"discovered_at"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// NewLead creates a Lead from a raw post sighting. DiscoveredAt is the post's
// creation time when known and not in the future, otherwise now.
func NewLead(post RawPost, now time.Time) *Lead {
	discovered := now
	if !post.CreatedAt.IsZero() && !post.CreatedAt.After(now) {
		discovered = post.CreatedAt
	}
	return &Lead{
		ExternalID:     post.ExternalID,
		Title:          post.Title,
		Body:           post.Body,
		SourceURL:      post.SourceURL,
		Subreddit:      post.Subreddit,
		MatchedKeyword: post.MatchedKeyword,
		Status:         StatusNew,
		DiscoveredAt:   discovered,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Pitch returns the last generated pitch draft, empty if none exists.
func (l *Lead) Pitch() string {
	if l.PitchDraft.Valid {
		return l.PitchDraft.String
	}
	return ""
}
