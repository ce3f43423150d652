package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounty-watch/leadscout/internal/models"
	"bounty-watch/leadscout/internal/source"
)

type fakeFetcher struct {
	posts []models.RawPost
	err   error
}

func (f *fakeFetcher) FetchNew(context.Context, string, int) ([]models.RawPost, error) {
	return f.posts, f.err
}

type fakeKeywords struct {
	keywords []models.Keyword
	err      error
}

func (k *fakeKeywords) ActiveKeywords(context.Context) ([]models.Keyword, error) {
	return k.keywords, k.err
}

func keyword(phrase string) models.Keyword {
	return models.Keyword{Phrase: phrase, Status: "active"}
}

func TestScannerMatchesAndIngests(t *testing.T) {
	fetcher := &fakeFetcher{posts: []models.RawPost{
		post("a1", "TurboModuleRegistry.getEnforcing is killing me"),
		post("b2", "What framework should I learn in 2025?"),
		post("c3", "Undefined symbols for architecture arm64 after upgrade"),
	}}
	keywords := &fakeKeywords{keywords: []models.Keyword{
		keyword("TurboModuleRegistry.getEnforcing"),
		keyword("Undefined symbols for architecture arm64"),
	}}
	store := newFakeStore()
	scanner := NewScanner(fetcher, keywords, NewPipeline(store, &fakeNotifier{}, time.Second), "reactnative", 20)

	summary, err := scanner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Inserted: 2, Skipped: 0}, summary)

	lead := store.leads["a1"]
	require.NotNil(t, lead)
	assert.Equal(t, "TurboModuleRegistry.getEnforcing", lead.MatchedKeyword)
	assert.NotContains(t, store.leads, "b2")
}

func TestScannerSourceUnavailableSkipsCycle(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: listing returned HTTP 503", source.ErrSourceUnavailable)}
	keywords := &fakeKeywords{keywords: []models.Keyword{keyword("anything")}}
	store := newFakeStore()
	scanner := NewScanner(fetcher, keywords, NewPipeline(store, &fakeNotifier{}, time.Second), "reactnative", 20)

	_, err := scanner.RunCycle(context.Background())
	require.ErrorIs(t, err, source.ErrSourceUnavailable)
	assert.Empty(t, store.leads)
}

func TestScannerNoActivePhrases(t *testing.T) {
	fetcher := &fakeFetcher{posts: []models.RawPost{post("a1", "TurboModuleRegistry.getEnforcing")}}
	store := newFakeStore()
	scanner := NewScanner(fetcher, &fakeKeywords{}, NewPipeline(store, &fakeNotifier{}, time.Second), "reactnative", 20)

	summary, err := scanner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.Empty(t, store.leads)
}
