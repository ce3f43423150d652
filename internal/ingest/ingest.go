package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"bounty-watch/leadscout/internal/models"
	"bounty-watch/leadscout/internal/storage"
)

// LeadStore is the slice of the repository the pipeline writes through.
type LeadStore interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	Insert(ctx context.Context, lead *models.Lead) error
}

// Notifier receives each newly inserted lead. Delivery is fire-and-forget:
// a failure is logged and never rolls back or retries the insert.
type Notifier interface {
	Notify(ctx context.Context, lead *models.Lead) error
}

// Summary reports the outcome of one ingestion batch.
type Summary struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Pipeline turns raw posts into tracked leads. One lead per distinct
// external_id; later sightings never refresh title or body.
type Pipeline struct {
	store         LeadStore
	notifier      Notifier
	notifyTimeout time.Duration
	now           func() time.Time
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(store LeadStore, notifier Notifier, notifyTimeout time.Duration) *Pipeline {
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}
	return &Pipeline{
		store:         store,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		now:           time.Now,
	}
}

// Ingest processes posts in batch order. A single-post failure is counted as
// skipped and never aborts the batch; only a store-level outage stops the
// cycle, with everything inserted so far retained.
func (p *Pipeline) Ingest(ctx context.Context, posts []models.RawPost) (Summary, error) {
	var summary Summary

	for _, post := range posts {
		exists, err := p.store.Exists(ctx, post.ExternalID)
		if err != nil {
			if errors.Is(err, storage.ErrStoreUnavailable) {
				return summary, err
			}
			log.Error().Err(err).Str("external_id", post.ExternalID).Msg("Existence check failed, skipping post")
			summary.Skipped++
			continue
		}
		if exists {
			summary.Skipped++
			continue
		}

		lead := models.NewLead(post, p.now())
		if err := p.store.Insert(ctx, lead); err != nil {
			switch {
			case errors.Is(err, storage.ErrDuplicateKey):
				// A concurrent writer won the race; the store's key
				// constraint turned our attempt into a normal skip.
				log.Debug().Str("external_id", post.ExternalID).Msg("Duplicate detected at insert")
				summary.Skipped++
			case errors.Is(err, storage.ErrStoreUnavailable):
				return summary, err
			default:
				log.Error().Err(err).Str("external_id", post.ExternalID).Msg("Insert failed, skipping post")
				summary.Skipped++
			}
			continue
		}

		summary.Inserted++
		log.Info().
			Str("external_id", lead.ExternalID).
			Str("title", lead.Title).
			Str("keyword", lead.MatchedKeyword).
			Msg("New lead ingested")

		p.notify(ctx, lead)
	}

	return summary, nil
}

// notify delivers the new-lead alert within a bounded timeout, logging and
// swallowing any failure.
func (p *Pipeline) notify(ctx context.Context, lead *models.Lead) {
	if p.notifier == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, p.notifyTimeout)
	defer cancel()

	if err := p.notifier.Notify(notifyCtx, lead); err != nil {
		log.Warn().Err(err).Str("external_id", lead.ExternalID).Msg("Lead notification failed")
	}
}
