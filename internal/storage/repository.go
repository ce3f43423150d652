package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bounty-watch/leadscout/internal/database"
	"bounty-watch/leadscout/internal/models"
)

const timeFormat = "2006-01-02 15:04:05"

// LeadRepository defines the operations the ingestion pipeline and the
// dashboard API perform against the lead store.
type LeadRepository interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	Insert(ctx context.Context, lead *models.Lead) error
	UpdateStatus(ctx context.Context, externalID string, status models.LeadStatus) error
	UpdatePitchDraft(ctx context.Context, externalID string, draft string) error
	GetByExternalID(ctx context.Context, externalID string) (*models.Lead, error)
	ListFresh(ctx context.Context, within time.Duration, statuses []models.LeadStatus, limit int, cursorTime *time.Time, cursorID *int64) ([]models.Lead, error)
	Search(ctx context.Context, query string, limit int) ([]models.Lead, error)
}

// Repository implements LeadRepository plus the keyword-rule queries used by
// the scanner and the importer.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Exists reports whether a lead with the given external_id is present.
func (r *Repository) Exists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, "SELECT 1 FROM leads WHERE external_id = ?", externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: existence check: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

// Insert stores a new lead. The external_id uniqueness constraint lives in
// the schema, so a concurrent second writer gets ErrDuplicateKey instead of
// a duplicate row regardless of any prior existence check.
func (r *Repository) Insert(ctx context.Context, lead *models.Lead) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO leads (external_id, title, body, source_url, subreddit, matched_keyword, status, discovered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		lead.ExternalID,
		lead.Title,
		lead.Body,
		lead.SourceURL,
		lead.Subreddit,
		lead.MatchedKeyword,
		lead.Status,
		lead.DiscoveredAt.UTC().Format(timeFormat),
		lead.CreatedAt.UTC().Format(timeFormat),
		lead.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("%w: insert lead %s: %v", ErrStoreUnavailable, lead.ExternalID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected for %s: %v", ErrStoreUnavailable, lead.ExternalID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, lead.ExternalID)
	}

	if id, err := res.LastInsertId(); err == nil {
		lead.ID = id
	}
	return nil
}

// UpdateStatus sets the triage status of a lead. Setting the current status
// again succeeds idempotently.
func (r *Repository) UpdateStatus(ctx context.Context, externalID string, status models.LeadStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE leads SET status = ?, updated_at = ? WHERE external_id = ?",
		status, time.Now().UTC().Format(timeFormat), externalID)
	if err != nil {
		return fmt.Errorf("%w: update status for %s: %v", ErrStoreUnavailable, externalID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected for %s: %v", ErrStoreUnavailable, externalID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, externalID)
	}
	return nil
}

// UpdatePitchDraft overwrites the last generated pitch for a lead.
func (r *Repository) UpdatePitchDraft(ctx context.Context, externalID string, draft string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE leads SET pitch_draft = ?, updated_at = ? WHERE external_id = ?",
		draft, time.Now().UTC().Format(timeFormat), externalID)
	if err != nil {
		return fmt.Errorf("%w: update pitch draft for %s: %v", ErrStoreUnavailable, externalID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected for %s: %v", ErrStoreUnavailable, externalID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, externalID)
	}
	return nil
}

// GetByExternalID fetches a single lead.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.GetContext(ctx, &lead, "SELECT * FROM leads WHERE external_id = ?", externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, externalID)
		}
		return nil, fmt.Errorf("%w: get lead %s: %v", ErrStoreUnavailable, externalID, err)
	}
	return &lead, nil
}

// ListFresh returns leads discovered within the given window, newest first,
// optionally filtered by status. Freshness is computed at query time from
// discovered_at; nothing is stored for it.
//
// cursorTime/cursorID continue a previous page (the last item's sort key).
func (r *Repository) ListFresh(ctx context.Context, within time.Duration, statuses []models.LeadStatus, limit int, cursorTime *time.Time, cursorID *int64) ([]models.Lead, error) {
	cutoff := time.Now().UTC().Add(-within).Format(timeFormat)

	query := "SELECT * FROM leads WHERE discovered_at >= ?"
	args := []any{cutoff}

	if len(statuses) > 0 {
		in, inArgs, err := sqlx.In("status IN (?)", statuses)
		if err != nil {
			return nil, fmt.Errorf("building status filter: %w", err)
		}
		query += " AND " + in
		args = append(args, inArgs...)
	}

	if cursorTime != nil && cursorID != nil {
		ct := cursorTime.UTC().Format(timeFormat)
		query += " AND ((discovered_at < ?) OR (discovered_at = ? AND id < ?))"
		args = append(args, ct, ct, *cursorID)
	}

	query += " ORDER BY discovered_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Lead{}, nil
		}
		return nil, fmt.Errorf("%w: list fresh leads: %v", ErrStoreUnavailable, err)
	}
	return leads, nil
}

// Search matches leads whose title or body contains the query text,
// most recent first.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]models.Lead, error) {
	pattern := "%" + query + "%"

	var leads []models.Lead
	err := r.db.SelectContext(ctx, &leads, `
		SELECT * FROM leads
		WHERE title LIKE ? OR body LIKE ?
		ORDER BY discovered_at DESC, id DESC
		LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Lead{}, nil
		}
		return nil, fmt.Errorf("%w: search leads: %v", ErrStoreUnavailable, err)
	}
	return leads, nil
}

// ActiveKeywords returns the watch phrases the scanner matches posts against.
func (r *Repository) ActiveKeywords(ctx context.Context) ([]models.Keyword, error) {
	var keywords []models.Keyword
	err := r.db.SelectContext(ctx, &keywords,
		"SELECT * FROM keywords WHERE status = 'active' ORDER BY id ASC")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Keyword{}, nil
		}
		return nil, fmt.Errorf("%w: load active keywords: %v", ErrStoreUnavailable, err)
	}
	return keywords, nil
}

// AllKeywords returns every keyword rule, for export.
func (r *Repository) AllKeywords(ctx context.Context) ([]models.Keyword, error) {
	var keywords []models.Keyword
	err := r.db.SelectContext(ctx, &keywords, "SELECT * FROM keywords ORDER BY id ASC")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Keyword{}, nil
		}
		return nil, fmt.Errorf("%w: load keywords: %v", ErrStoreUnavailable, err)
	}
	return keywords, nil
}

// UpsertKeyword inserts a watch phrase or refreshes its comments/status when
// it is already present.
func (r *Repository) UpsertKeyword(ctx context.Context, kw *models.Keyword) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO keywords (phrase, comments, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phrase) DO UPDATE SET
			comments = excluded.comments,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		kw.Phrase,
		kw.Comments,
		kw.Status,
		kw.CreatedAt.UTC().Format(timeFormat),
		kw.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert keyword %q: %v", ErrStoreUnavailable, kw.Phrase, err)
	}
	return nil
}
