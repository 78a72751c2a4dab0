package api

import (
	"context"
	"net/http"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/idempotency"
	"github.com/ignite/newsletter/internal/service/publish"
)

// Publisher is the publish path consumed by the newsletter handlers.
type Publisher interface {
	Publish(ctx context.Context, userID string, key idempotency.Key,
		draft domain.IssueDraft, resp *idempotency.SavedResponse) (*publish.Result, error)
}

// UserResolver maps a request to the stable operator ID that scopes
// idempotency keys.
type UserResolver interface {
	UserID(r *http.Request) (string, bool)
}

// IssueGetter looks up a published issue by ID.
type IssueGetter interface {
	Get(ctx context.Context, id string) (*domain.NewsletterIssue, error)
}

// QueueStats reports the delivery backlog.
type QueueStats interface {
	PendingCount(ctx context.Context) (int64, error)
}

// SubscriberStats reports subscriber counts per status.
type SubscriberStats interface {
	CountByStatus(ctx context.Context) (map[domain.SubscriberStatus]int, error)
}

// WorkerStats exposes the delivery pool's counters.
type WorkerStats interface {
	Stats() map[string]int64
}

// Drafter builds an issue draft from an RSS feed.
type Drafter interface {
	DraftFromFeed(ctx context.Context, feedURL string) (*domain.IssueDraft, error)
}

// Handlers carries the dependencies of all HTTP handlers. Optional
// fields (worker stats, drafter) may be nil; the matching endpoints
// degrade gracefully.
type Handlers struct {
	publisher   Publisher
	users       UserResolver
	issues      IssueGetter
	queue       QueueStats
	subscribers SubscriberStats
	worker      WorkerStats
	drafter     Drafter
	health      *HealthChecker
}

// NewHandlers wires the handler set.
func NewHandlers(
	publisher Publisher,
	users UserResolver,
	issues IssueGetter,
	queue QueueStats,
	subscribers SubscriberStats,
	health *HealthChecker,
) *Handlers {
	return &Handlers{
		publisher:   publisher,
		users:       users,
		issues:      issues,
		queue:       queue,
		subscribers: subscribers,
		health:      health,
	}
}

// SetWorkerStats attaches the delivery pool counters to /api/delivery/stats.
func (h *Handlers) SetWorkerStats(w WorkerStats) { h.worker = w }

// SetDrafter enables POST /api/newsletters/draft-from-feed.
func (h *Handlers) SetDrafter(d Drafter) { h.drafter = d }
