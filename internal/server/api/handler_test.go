package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounty-watch/leadscout/internal/database"
	"bounty-watch/leadscout/internal/models"
	"bounty-watch/leadscout/internal/pitch"
	"bounty-watch/leadscout/internal/storage"
)

type fakeGenerator struct {
	draft   string
	genErr  error
	pingErr error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, leadText string) (string, error) {
	g.prompts = append(g.prompts, leadText)
	if g.genErr != nil {
		return "", g.genErr
	}
	return g.draft, nil
}

func (g *fakeGenerator) Ping(context.Context) error {
	return g.pingErr
}

func newTestMux(t *testing.T, gen *fakeGenerator) (*http.ServeMux, *storage.Repository) {
	t.Helper()

	db, err := database.NewDB(database.NewConfig(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := storage.NewRepository(db)
	h := NewLeadsHandler(repo, gen, 24*time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/leads", h.ListLeads)
	mux.HandleFunc("GET /v1/leads/search", h.SearchLeads)
	mux.HandleFunc("POST /v1/leads/{external_id}/status", h.UpdateStatus)
	mux.HandleFunc("POST /v1/leads/{external_id}/pitch", h.GeneratePitch)
	mux.HandleFunc("GET /v1/ai/status", h.AIStatus)
	return mux, repo
}

func insertLead(t *testing.T, repo *storage.Repository, externalID string, discoveredAt time.Time) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.Insert(context.Background(), &models.Lead{
		ExternalID:   externalID,
		Title:        "Need Python help " + externalID,
		Body:         "TurboModuleRegistry.getEnforcing throws",
		SourceURL:    "https://reddit.com/r/reactnative/comments/" + externalID,
		Status:       models.StatusNew,
		DiscoveredAt: discoveredAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func doRequest(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestListLeadsFreshWindow(t *testing.T) {
	mux, repo := newTestMux(t, &fakeGenerator{})
	now := time.Now().UTC()
	insertLead(t, repo, "fresh", now)
	insertLead(t, repo, "stale", now.Add(-25*time.Hour))

	rec := doRequest(mux, http.MethodGet, "/v1/leads", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "fresh", resp.Items[0].ExternalID)
	assert.Nil(t, resp.NextCursor)
}

func TestListLeadsPagination(t *testing.T) {
	mux, repo := newTestMux(t, &fakeGenerator{})
	now := time.Now().UTC()
	insertLead(t, repo, "l1", now.Add(-3*time.Hour))
	insertLead(t, repo, "l2", now.Add(-2*time.Hour))
	insertLead(t, repo, "l3", now.Add(-1*time.Hour))

	rec := doRequest(mux, http.MethodGet, "/v1/leads?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var first listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Items, 2)
	assert.Equal(t, "l3", first.Items[0].ExternalID)
	require.NotNil(t, first.NextCursor)

	rec = doRequest(mux, http.MethodGet, "/v1/leads?limit=2&cursor="+*first.NextCursor, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var second listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Len(t, second.Items, 1)
	assert.Equal(t, "l1", second.Items[0].ExternalID)
	assert.Nil(t, second.NextCursor)
}

func TestListLeadsStatusFilter(t *testing.T) {
	mux, repo := newTestMux(t, &fakeGenerator{})
	now := time.Now().UTC()
	insertLead(t, repo, "a1", now)
	insertLead(t, repo, "b2", now)
	require.NoError(t, repo.UpdateStatus(context.Background(), "b2", models.StatusPitched))

	rec := doRequest(mux, http.MethodGet, "/v1/leads?status=pitched", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "b2", resp.Items[0].ExternalID)

	rec = doRequest(mux, http.MethodGet, "/v1/leads?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchLeads(t *testing.T) {
	mux, repo := newTestMux(t, &fakeGenerator{})
	insertLead(t, repo, "a1", time.Now().UTC())

	rec := doRequest(mux, http.MethodGet, "/v1/leads/search?q=getEnforcing", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)

	rec = doRequest(mux, http.MethodGet, "/v1/leads/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	mux, repo := newTestMux(t, &fakeGenerator{})
	insertLead(t, repo, "a1", time.Now().UTC())

	rec := doRequest(mux, http.MethodPost, "/v1/leads/a1/status", `{"status": "pitched"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := repo.GetByExternalID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPitched, stored.Status)
}

func TestUpdateStatusNotFound(t *testing.T) {
	mux, _ := newTestMux(t, &fakeGenerator{})

	rec := doRequest(mux, http.MethodPost, "/v1/leads/missing/status", `{"status": "fixed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatusInvalid(t *testing.T) {
	mux, repo := newTestMux(t, &fakeGenerator{})
	insertLead(t, repo, "a1", time.Now().UTC())

	rec := doRequest(mux, http.MethodPost, "/v1/leads/a1/status", `{"status": "archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(mux, http.MethodPost, "/v1/leads/a1/status", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeneratePitchPersistsDraft(t *testing.T) {
	gen := &fakeGenerator{draft: "Hi, I can fix this in 30 minutes."}
	mux, repo := newTestMux(t, gen)
	insertLead(t, repo, "a1", time.Now().UTC())

	rec := doRequest(mux, http.MethodPost, "/v1/leads/a1/pitch", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hi, I can fix this in 30 minutes.", resp["pitch_draft"])

	// The stored title and body were the generation context.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Need Python help a1")
	assert.Contains(t, gen.prompts[0], "TurboModuleRegistry.getEnforcing throws")

	stored, err := repo.GetByExternalID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Hi, I can fix this in 30 minutes.", stored.Pitch())
}

func TestGeneratePitchWithOverrideText(t *testing.T) {
	gen := &fakeGenerator{draft: "draft"}
	mux, repo := newTestMux(t, gen)
	insertLead(t, repo, "a1", time.Now().UTC())

	rec := doRequest(mux, http.MethodPost, "/v1/leads/a1/pitch", `{"lead_text": "pasted post text"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, gen.prompts, 1)
	assert.Equal(t, "pasted post text", gen.prompts[0])
}

func TestGeneratePitchLeadNotFound(t *testing.T) {
	mux, _ := newTestMux(t, &fakeGenerator{draft: "draft"})

	rec := doRequest(mux, http.MethodPost, "/v1/leads/missing/pitch", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGeneratePitchEndpointFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"timeout", fmt.Errorf("%w: deadline", pitch.ErrTimeout), http.StatusGatewayTimeout},
		{"unreachable", fmt.Errorf("%w: refused", pitch.ErrEndpointUnreachable), http.StatusBadGateway},
		{"endpoint error", fmt.Errorf("%w: HTTP 500", pitch.ErrEndpointError), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, repo := newTestMux(t, &fakeGenerator{genErr: tt.err})
			insertLead(t, repo, "a1", time.Now().UTC())

			rec := doRequest(mux, http.MethodPost, "/v1/leads/a1/pitch", "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			// A failed generation never overwrites the stored draft.
			stored, err := repo.GetByExternalID(context.Background(), "a1")
			require.NoError(t, err)
			assert.Empty(t, stored.Pitch())
		})
	}
}

func TestAIStatus(t *testing.T) {
	mux, _ := newTestMux(t, &fakeGenerator{})
	rec := doRequest(mux, http.MethodGet, "/v1/ai/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "online")
}

func TestAIStatusOffline(t *testing.T) {
	mux, _ := newTestMux(t, &fakeGenerator{pingErr: fmt.Errorf("%w: refused", pitch.ErrEndpointUnreachable)})
	rec := doRequest(mux, http.MethodGet, "/v1/ai/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "offline")
}
