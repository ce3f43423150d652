package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"bounty-watch/leadscout/internal/models"
	"bounty-watch/leadscout/internal/pitch"
	"bounty-watch/leadscout/internal/server/pagination"
	"bounty-watch/leadscout/internal/storage"
)

const defaultLimit = 100
const maxLimit = 1000

// PitchGenerator is the slice of the pitch generator the dashboard uses.
type PitchGenerator interface {
	Generate(ctx context.Context, leadText string) (string, error)
	Ping(ctx context.Context) error
}

// LeadsHandler holds dependencies for the dashboard API handlers.
type LeadsHandler struct {
	repo        storage.LeadRepository
	generator   PitchGenerator
	freshWindow time.Duration
}

// NewLeadsHandler creates a new handler instance.
func NewLeadsHandler(repo storage.LeadRepository, generator PitchGenerator, freshWindow time.Duration) *LeadsHandler {
	if freshWindow <= 0 {
		freshWindow = 24 * time.Hour
	}
	return &LeadsHandler{
		repo:        repo,
		generator:   generator,
		freshWindow: freshWindow,
	}
}

// leadItem exposes the pitch draft alongside the lead fields.
type leadItem struct {
	models.Lead
	PitchDraft string `json:"pitch_draft,omitempty"`
}

// listResponse is the paginated lead listing body.
type listResponse struct {
	Items      []leadItem `json:"items"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

func toItems(leads []models.Lead) []leadItem {
	items := make([]leadItem, len(leads))
	for i, lead := range leads {
		items[i] = leadItem{Lead: lead, PitchDraft: lead.Pitch()}
	}
	return items
}

// ListLeads handles GET /v1/leads: fresh leads, newest first, optionally
// filtered by status, cursor-paginated.
func (h *LeadsHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	ctx := r.Context()
	query := r.URL.Query()

	limit := defaultLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 || parsedLimit > maxLimit {
			log.Warn().Err(err).Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		limit = parsedLimit
	}

	within := h.freshWindow
	if withinStr := query.Get("within"); withinStr != "" {
		parsed, err := time.ParseDuration(withinStr)
		if err != nil || parsed <= 0 {
			log.Warn().Err(err).Str("within", withinStr).Msg("Invalid 'within' parameter value")
			http.Error(w, "Invalid 'within' parameter: use a duration like 24h or 90m", http.StatusBadRequest)
			return
		}
		within = parsed
	}

	var statuses []models.LeadStatus
	if statusStr := query.Get("status"); statusStr != "" {
		for _, s := range strings.Split(statusStr, ",") {
			status, err := models.ParseLeadStatus(strings.TrimSpace(s))
			if err != nil {
				log.Warn().Str("status", s).Msg("Invalid 'status' parameter value")
				http.Error(w, "Invalid 'status' parameter: use new, pitched or fixed", http.StatusBadRequest)
				return
			}
			statuses = append(statuses, status)
		}
	}

	var cursorTime *time.Time
	var cursorID *int64
	if cursorStr := query.Get("cursor"); cursorStr != "" {
		ts, id, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		cursorTime = &ts
		cursorID = &id
	}

	leads, err := h.repo.ListFresh(ctx, within, statuses, limit+1, cursorTime, cursorID) // Fetch one extra
	if err != nil {
		log.Error().Err(err).Msg("Error listing fresh leads")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var nextCursorStr *string
	actualLeads := leads
	if len(leads) > limit {
		actualLeads = leads[:limit]
		lastLead := actualLeads[len(actualLeads)-1]
		cursor := pagination.EncodeCursor(lastLead.DiscoveredAt.UTC(), lastLead.ID)
		nextCursorStr = &cursor
	}

	writeJSON(w, r, http.StatusOK, listResponse{
		Items:      toItems(actualLeads),
		NextCursor: nextCursorStr,
	})
}

// SearchLeads handles GET /v1/leads/search?q=: full-text match over
// title and body.
func (h *LeadsHandler) SearchLeads(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, "Missing required parameter: 'q'", http.StatusBadRequest)
		return
	}

	leads, err := h.repo.Search(r.Context(), q, defaultLimit)
	if err != nil {
		log.Error().Err(err).Str("query", q).Msg("Error searching leads")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, listResponse{Items: toItems(leads)})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles POST /v1/leads/{external_id}/status.
func (h *LeadsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	externalID := r.PathValue("external_id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	status, err := models.ParseLeadStatus(req.Status)
	if err != nil {
		http.Error(w, "Invalid status: use new, pitched or fixed", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), externalID, status); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "Lead not found", http.StatusNotFound)
		default:
			log.Error().Err(err).Str("external_id", externalID).Msg("Error updating lead status")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	log.Info().Str("external_id", externalID).Str("status", string(status)).Msg("Lead status updated")
	writeJSON(w, r, http.StatusOK, map[string]string{
		"external_id": externalID,
		"status":      string(status),
	})
}

type pitchRequest struct {
	// LeadText overrides the stored title+body as generation context.
	LeadText string `json:"lead_text,omitempty"`
}

// GeneratePitch handles POST /v1/leads/{external_id}/pitch: drafts an
// outreach message for the lead and persists it as the current draft.
// Generator failures surface to the caller; nothing is retried silently.
func (h *LeadsHandler) GeneratePitch(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	ctx := r.Context()
	externalID := r.PathValue("external_id")

	var req pitchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	lead, err := h.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "Lead not found", http.StatusNotFound)
		default:
			log.Error().Err(err).Str("external_id", externalID).Msg("Error loading lead")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	leadText := req.LeadText
	if leadText == "" {
		leadText = strings.TrimSpace(lead.Title + "\n\n" + lead.Body)
	}

	draft, err := h.generator.Generate(ctx, leadText)
	if err != nil {
		log.Error().Err(err).Str("external_id", externalID).Msg("Pitch generation failed")
		switch {
		case errors.Is(err, pitch.ErrTimeout):
			http.Error(w, "AI endpoint timed out", http.StatusGatewayTimeout)
		case errors.Is(err, pitch.ErrEndpointUnreachable), errors.Is(err, pitch.ErrEndpointError):
			http.Error(w, "AI endpoint error", http.StatusBadGateway)
		default:
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	if err := h.repo.UpdatePitchDraft(ctx, externalID, draft); err != nil {
		log.Error().Err(err).Str("external_id", externalID).Msg("Error persisting pitch draft")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	log.Info().Str("external_id", externalID).Int("draft_len", len(draft)).Msg("Pitch draft stored")
	writeJSON(w, r, http.StatusOK, map[string]string{
		"external_id": externalID,
		"pitch_draft": draft,
	})
}

// AIStatus handles GET /v1/ai/status: probes the configured generation
// endpoint so the dashboard can show whether drafting is available.
func (h *LeadsHandler) AIStatus(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	if err := h.generator.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("AI endpoint status check failed")
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "offline",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "online"})
}

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	log := hlog.FromRequest(r)

	jsonBytes, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
	}
}
