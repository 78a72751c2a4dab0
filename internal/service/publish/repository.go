package publish

import (
	"context"
	"database/sql"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/idempotency"
)

// IssueRepository defines the data access contract for newsletter issues
// and their delivery fan-out. Both writes run on the caller's transaction
// so they commit atomically with the idempotency record.
type IssueRepository interface {
	// Create inserts an immutable issue record.
	Create(ctx context.Context, tx *sql.Tx, issue *domain.NewsletterIssue) error

	// EnqueueDelivery inserts one delivery task per confirmed subscriber
	// in a single set-based statement and returns the number created.
	EnqueueDelivery(ctx context.Context, tx *sql.Tx, issueID string) (int64, error)
}

// IdempotencyStore is the slice of the idempotency package the service
// depends on.
type IdempotencyStore interface {
	BeginOrReturn(ctx context.Context, userID string, key idempotency.Key) (*sql.Tx, *idempotency.SavedResponse, error)
	Complete(ctx context.Context, tx *sql.Tx, userID string, key idempotency.Key, resp *idempotency.SavedResponse) error
}
