package publish

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/idempotency"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// Service orchestrates the publish transaction. Safe for concurrent use;
// concurrent publishes serialize only on the idempotency marker row when
// they share a key.
type Service struct {
	issues IssueRepository
	idem   IdempotencyStore
}

// NewService creates a publish service.
func NewService(issues IssueRepository, idem IdempotencyStore) *Service {
	return &Service{issues: issues, idem: idem}
}

// Result reports the outcome of a publish call.
type Result struct {
	// Response is what the handler must write: either the freshly saved
	// response or, on replay, the byte-identical original.
	Response *idempotency.SavedResponse

	// Replayed is true when a previous request with the same key already
	// completed and no new work was performed.
	Replayed bool

	// IssueID and Enqueued are set only on the branch that did the work.
	IssueID  string
	Enqueued int64
}

// Publish validates the draft, claims the idempotency key, and creates the
// issue plus its delivery tasks in one transaction, saving resp as the
// response to replay on retries.
//
// Error taxonomy: *domain.ValidationError for bad drafts,
// idempotency.ErrInProgress when a concurrent request holds the key, and
// wrapped storage errors for everything else. Any error after the claim
// rolls the whole transaction back — no issue without its tasks, no marker
// without a result.
func (s *Service) Publish(
	ctx context.Context,
	userID string,
	key idempotency.Key,
	draft domain.IssueDraft,
	resp *idempotency.SavedResponse,
) (*Result, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	tx, saved, err := s.idem.BeginOrReturn(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	if saved != nil {
		logger.Info("publish replayed from idempotency record",
			"user_id", userID, "idempotency_key", key.String())
		return &Result{Response: saved, Replayed: true}, nil
	}

	issue := &domain.NewsletterIssue{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(draft.Title),
		TextContent: draft.TextContent,
		HTMLContent: draft.HTMLContent,
		PublishedAt: time.Now().UTC(),
	}

	if err := s.issues.Create(ctx, tx, issue); err != nil {
		tx.Rollback()
		return nil, err
	}

	enqueued, err := s.issues.EnqueueDelivery(ctx, tx, issue.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := s.idem.Complete(ctx, tx, userID, key, resp); err != nil {
		return nil, err
	}

	logger.Info("newsletter issue published",
		"issue_id", issue.ID, "title", issue.Title, "recipients", enqueued)

	return &Result{
		Response: resp,
		IssueID:  issue.ID,
		Enqueued: enqueued,
	}, nil
}
