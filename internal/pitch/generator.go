package pitch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEndpointUnreachable covers transport-level failures reaching the
	// text-generation endpoint.
	ErrEndpointUnreachable = errors.New("ai endpoint unreachable")

	// ErrEndpointError covers non-2xx responses and malformed bodies.
	ErrEndpointError = errors.New("ai endpoint error")

	// ErrTimeout is returned when the bounded call deadline expires.
	ErrTimeout = errors.New("ai endpoint timed out")
)

// Config describes the OpenAI-compatible chat completion endpoint. All of it
// is runtime configuration; nothing here is compile-time constant.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	DemoVideoLink string
}

// Generator drafts outreach messages from lead text through a chat-style
// completion request. It is stateless: the caller persists the result.
type Generator struct {
	httpClient *http.Client
	cfg        Config
}

// NewGenerator creates a pitch generator for the configured endpoint.
func NewGenerator(cfg Config) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Generator{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// completionsURL builds the chat completions endpoint from the base URL.
func (g *Generator) completionsURL() string {
	base := strings.TrimSuffix(g.cfg.BaseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// systemPrompt frames the triage DM the model should draft. The demo video
// link is quoted verbatim when configured.
func (g *Generator) systemPrompt() string {
	prompt := "You draft short, direct outreach messages to developers who posted about a technical problem. " +
		"Name the likely error category, offer a paid quick fix over a call, and keep it under 120 words. " +
		"Do not invent details the post does not contain."
	if g.cfg.DemoVideoLink != "" {
		prompt += " End with this exact reference link: " + g.cfg.DemoVideoLink
	}
	return prompt
}

// Generate sends the lead text to the configured endpoint and returns the
// drafted message. Failures surface to the caller; nothing is retried here.
func (g *Generator) Generate(ctx context.Context, leadText string) (string, error) {
	reqBody := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: g.systemPrompt()},
			{Role: "user", Content: leadText},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrEndpointUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrEndpointError, err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("model", g.cfg.Model).
			Msg("AI endpoint returned error status")
		return "", fmt.Errorf("%w: HTTP %d", ErrEndpointError, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrEndpointError, err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: response carried no content", ErrEndpointError)
	}

	draft := strings.TrimSpace(chat.Choices[0].Message.Content)
	log.Debug().
		Str("model", g.cfg.Model).
		Int("draft_len", len(draft)).
		Msg("Pitch draft generated")
	return draft, nil
}

// Ping probes the endpoint's model listing, the cheapest request the API
// shape guarantees. Used by the dashboard's endpoint-status indicator.
func (g *Generator) Ping(ctx context.Context) error {
	base := strings.TrimSuffix(g.cfg.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return fmt.Errorf("building ping request: %w", err)
	}
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrEndpointUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrEndpointError, resp.StatusCode)
	}
	return nil
}

// isClientTimeout detects the http.Client timeout, which surfaces as a
// net.Error rather than context.DeadlineExceeded.
func isClientTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
