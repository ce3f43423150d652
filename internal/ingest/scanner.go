package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"bounty-watch/leadscout/internal/models"
	"bounty-watch/leadscout/internal/source"
)

// PostFetcher is the source adapter boundary.
type PostFetcher interface {
	FetchNew(ctx context.Context, subreddits string, limit int) ([]models.RawPost, error)
}

// KeywordSource supplies the active watch phrases for a cycle.
type KeywordSource interface {
	ActiveKeywords(ctx context.Context) ([]models.Keyword, error)
}

// Scanner runs one sequential scan-and-ingest cycle: load watch phrases,
// fetch the recent listing window, keep keyword matches, ingest.
type Scanner struct {
	fetcher    PostFetcher
	keywords   KeywordSource
	pipeline   *Pipeline
	subreddits string
	fetchLimit int
}

// NewScanner creates a scanner over the given source and pipeline.
func NewScanner(fetcher PostFetcher, keywords KeywordSource, pipeline *Pipeline, subreddits string, fetchLimit int) *Scanner {
	return &Scanner{
		fetcher:    fetcher,
		keywords:   keywords,
		pipeline:   pipeline,
		subreddits: subreddits,
		fetchLimit: fetchLimit,
	}
}

// RunCycle executes a single cycle. A source fetch failure skips the cycle
// without losing anything: unseen posts surface again on the next run.
func (s *Scanner) RunCycle(ctx context.Context) (Summary, error) {
	keywords, err := s.keywords.ActiveKeywords(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("loading watch phrases: %w", err)
	}
	if len(keywords) == 0 {
		log.Warn().Msg("No active watch phrases configured, nothing to scan for")
		return Summary{}, nil
	}

	phrases := make([]string, len(keywords))
	for i, kw := range keywords {
		phrases[i] = kw.Phrase
	}

	posts, err := s.fetcher.FetchNew(ctx, s.subreddits, s.fetchLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("fetching listing: %w", err)
	}

	matched := make([]models.RawPost, 0, len(posts))
	for _, post := range posts {
		if phrase, ok := source.MatchKeyword(phrases, post); ok {
			post.MatchedKeyword = phrase
			matched = append(matched, post)
		}
	}

	log.Info().
		Int("fetched", len(posts)).
		Int("matched", len(matched)).
		Int("phrases", len(phrases)).
		Msg("Scan cycle fetched listing")

	summary, err := s.pipeline.Ingest(ctx, matched)
	if err != nil {
		return summary, fmt.Errorf("ingesting matched posts: %w", err)
	}
	return summary, nil
}
