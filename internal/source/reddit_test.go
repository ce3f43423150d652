package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingBody = `{
	"data": {
		"children": [
			{"data": {
				"id": "a1",
				"title": "Need Python help",
				"selftext": "TurboModuleRegistry.getEnforcing throws",
				"permalink": "/r/reactnative/comments/a1/need_python_help/",
				"subreddit": "reactnative",
				"created_utc": 1735689600
			}},
			{"data": {
				"id": "b2",
				"title": "Another post",
				"selftext": "",
				"permalink": "/r/androiddev/comments/b2/another_post/",
				"subreddit": "androiddev",
				"created_utc": 1735693200
			}}
		]
	}
}`

func newTestServer(t *testing.T, listingStatus int, listing string) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var tokenRequests atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "test-client", user)
		assert.Equal(t, "test-secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "tok-123", "token_type": "bearer", "expires_in": 3600}`)
	})
	mux.HandleFunc("GET /r/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "leadscout-test/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(listingStatus)
		fmt.Fprint(w, listing)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenRequests
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		UserAgent:    "leadscout-test/1.0",
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/api/v1/access_token",
		Timeout:      5 * time.Second,
	})
}

func TestFetchNew(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, listingBody)
	client := newTestClient(srv)

	posts, err := client.FetchNew(context.Background(), "reactnative+androiddev", 20)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "a1", posts[0].ExternalID)
	assert.Equal(t, "Need Python help", posts[0].Title)
	assert.Equal(t, "TurboModuleRegistry.getEnforcing throws", posts[0].Body)
	assert.Equal(t, "https://reddit.com/r/reactnative/comments/a1/need_python_help/", posts[0].SourceURL)
	assert.Equal(t, "reactnative", posts[0].Subreddit)
	assert.Equal(t, time.Unix(1735689600, 0).UTC(), posts[0].CreatedAt)
	assert.Equal(t, "b2", posts[1].ExternalID)
}

func TestFetchNewReusesToken(t *testing.T) {
	srv, tokenRequests := newTestServer(t, http.StatusOK, listingBody)
	client := newTestClient(srv)
	ctx := context.Background()

	_, err := client.FetchNew(ctx, "reactnative", 20)
	require.NoError(t, err)
	_, err = client.FetchNew(ctx, "reactnative", 20)
	require.NoError(t, err)

	assert.Equal(t, int64(1), tokenRequests.Load(), "token must be cached between fetches")
}

func TestFetchNewListingError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusServiceUnavailable, `{}`)
	client := newTestClient(srv)

	_, err := client.FetchNew(context.Background(), "reactnative", 20)
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchNewUnreachable(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, listingBody)
	client := newTestClient(srv)
	srv.Close()

	_, err := client.FetchNew(context.Background(), "reactnative", 20)
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchNewSkipsEntriesWithoutID(t *testing.T) {
	listing := `{"data": {"children": [
		{"data": {"id": "", "title": "ghost", "permalink": "/x", "created_utc": 0}},
		{"data": {"id": "ok1", "title": "real", "permalink": "/y", "created_utc": 1735689600}}
	]}}`
	srv, _ := newTestServer(t, http.StatusOK, listing)
	client := newTestClient(srv)

	posts, err := client.FetchNew(context.Background(), "reactnative", 20)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "ok1", posts[0].ExternalID)
}

func TestTokenErrorSurfacesAsSourceUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		ClientID:     "bad",
		ClientSecret: "bad",
		UserAgent:    "leadscout-test/1.0",
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/api/v1/access_token",
	})

	_, err := client.FetchNew(context.Background(), "reactnative", 20)
	require.ErrorIs(t, err, ErrSourceUnavailable)
}
