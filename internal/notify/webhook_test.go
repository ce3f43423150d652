package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounty-watch/leadscout/internal/models"
)

func testLead() *models.Lead {
	return &models.Lead{
		ExternalID:     "a1",
		Title:          "Need help with a native crash",
		Body:           "TurboModuleRegistry.getEnforcing throws on startup",
		SourceURL:      "https://reddit.com/r/reactnative/comments/a1",
		MatchedKeyword: "TurboModuleRegistry.getEnforcing",
		Status:         models.StatusNew,
	}
}

func TestNotifyDeliversPayload(t *testing.T) {
	var received webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	n := NewWebhookNotifier(srv.URL, 5*time.Second)
	require.NoError(t, n.Notify(context.Background(), testLead()))

	assert.Contains(t, received.Content, "Need help with a native crash")
	assert.Contains(t, received.Content, "`TurboModuleRegistry.getEnforcing`")
	assert.Contains(t, received.Content, "https://reddit.com/r/reactnative/comments/a1")
}

func TestNotifyTruncatesLongBodies(t *testing.T) {
	var received webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	lead := testLead()
	lead.Body = strings.Repeat("x", 1000)

	n := NewWebhookNotifier(srv.URL, 5*time.Second)
	require.NoError(t, n.Notify(context.Background(), lead))

	assert.Contains(t, received.Content, "…")
	assert.NotContains(t, received.Content, strings.Repeat("x", 500))
}

func TestNotifyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	n := NewWebhookNotifier(srv.URL, 5*time.Second)
	err := n.Notify(context.Background(), testLead())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNotifyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	require.Error(t, n.Notify(context.Background(), testLead()))
}

func TestNotifyWithoutURLIsNoop(t *testing.T) {
	n := NewWebhookNotifier("", time.Second)
	require.NoError(t, n.Notify(context.Background(), testLead()))
}
