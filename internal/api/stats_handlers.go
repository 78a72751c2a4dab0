package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/publish"
)

// HandleDeliveryStats reports the queue backlog, subscriber counts and
// the worker pool's counters (when a pool runs in this process).
//
//	GET /api/delivery/stats
func (h *Handlers) HandleDeliveryStats(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queue.PendingCount(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	counts, err := h.subscribers.CountByStatus(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	subscribers := make(map[string]int, len(counts))
	for status, n := range counts {
		subscribers[string(status)] = n
	}

	payload := map[string]any{
		"pending_deliveries": pending,
		"subscribers":        subscribers,
	}
	if h.worker != nil {
		payload["worker"] = h.worker.Stats()
	}
	httputil.OK(w, payload)
}

// HandleGetIssue returns a published issue.
//
//	GET /api/issues/{id}
func (h *Handlers) HandleGetIssue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	issue, err := h.issues.Get(r.Context(), id)
	if errors.Is(err, publish.ErrIssueNotFound) || errors.Is(err, sql.ErrNoRows) {
		httputil.NotFound(w, "issue not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, issue)
}

type draftFromFeedRequest struct {
	FeedURL string `json:"feed_url"`
}

// HandleDraftFromFeed builds an issue draft from the latest entries of
// an RSS/Atom feed. The draft is returned to the operator for review;
// publishing it goes through the normal idempotent publish path.
//
//	POST /api/newsletters/draft-from-feed
func (h *Handlers) HandleDraftFromFeed(w http.ResponseWriter, r *http.Request) {
	if h.drafter == nil {
		httputil.Error(w, http.StatusNotImplemented, "feed drafting is not configured")
		return
	}

	var req draftFromFeedRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.FeedURL = strings.TrimSpace(req.FeedURL)
	if req.FeedURL == "" {
		httputil.BadRequest(w, "feed_url is required")
		return
	}

	draft, err := h.drafter.DraftFromFeed(r.Context(), req.FeedURL)
	if err != nil {
		httputil.Error(w, http.StatusBadGateway, err.Error())
		return
	}
	httputil.OK(w, draft)
}
