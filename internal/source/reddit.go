package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"bounty-watch/leadscout/internal/models"
)

// ErrSourceUnavailable wraps any failure to fetch from the content source.
// The scan cycle skips on it; no leads are lost, they show up next cycle.
var ErrSourceUnavailable = errors.New("source unavailable")

const (
	defaultAPIBaseURL = "https://oauth.reddit.com"
	defaultTokenURL   = "https://www.reddit.com/api/v1/access_token"

	// Refresh the token a bit before Reddit expires it.
	tokenExpirySlack = 60 * time.Second
)

// Config holds the credentials and endpoints for the Reddit listing API.
// BaseURL and TokenURL are overridable for tests.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
}

// Client fetches recent posts from subreddit listings using the
// application-only OAuth flow.
type Client struct {
	httpClient *http.Client
	cfg        Config

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Reddit listing client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached application-only access token, requesting a new one
// when the cached token is missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpirySlack)) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request returned HTTP %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrSourceUnavailable, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response carried no access token", ErrSourceUnavailable)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	log.Debug().Time("expires", c.tokenExpiry).Msg("Obtained source access token")
	return c.accessToken, nil
}

// Listing response shapes, trimmed to the fields the lead record needs.
type listingResponse struct {
	Data struct {
		Children []struct {
			Data listingPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type listingPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	CreatedUTC float64 `json:"created_utc"`
}

// FetchNew retrieves the most recent posts from the given subreddits
// (joined with '+', e.g. "reactnative+androiddev"). Rate limits and
// pagination stay inside this adapter; callers only see RawPosts.
func (c *Client) FetchNew(ctx context.Context, subreddits string, limit int) ([]models.RawPost, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/r/%s/new?limit=%s&raw_json=1",
		strings.TrimSuffix(c.cfg.BaseURL, "/"),
		url.PathEscape(subreddits),
		strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building listing request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: listing request: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked early; drop it so the next cycle
		// requests a fresh one.
		c.mu.Lock()
		c.accessToken = ""
		c.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: listing returned HTTP %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("%w: decoding listing: %v", ErrSourceUnavailable, err)
	}

	posts := make([]models.RawPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		if p.ID == "" {
			log.Warn().Str("permalink", p.Permalink).Msg("Skipping listing entry without id")
			continue
		}
		posts = append(posts, models.RawPost{
			ExternalID: p.ID,
			Title:      p.Title,
			Body:       p.SelfText,
			SourceURL:  "https://reddit.com" + p.Permalink,
			Subreddit:  p.Subreddit,
			CreatedAt:  time.Unix(int64(p.CreatedUTC), 0).UTC(),
		})
	}

	log.Debug().
		Str("subreddits", subreddits).
		Int("posts", len(posts)).
		Msg("Fetched listing")
	return posts, nil
}
