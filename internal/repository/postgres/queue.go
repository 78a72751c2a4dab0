package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// DeliveryQueueRepo exposes read-only views of the delivery backlog for the
// operational API. The worker owns task lifecycle and uses its own claim
// SQL; nothing here mutates the queue.
type DeliveryQueueRepo struct{ db *sql.DB }

// NewDeliveryQueueRepo creates a Postgres-backed queue view.
func NewDeliveryQueueRepo(db *sql.DB) *DeliveryQueueRepo { return &DeliveryQueueRepo{db: db} }

// PendingCount returns the number of delivery tasks awaiting a terminal
// outcome. Zero in steady state.
func (r *DeliveryQueueRepo) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issue_delivery_queue`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending delivery tasks: %w", err)
	}
	return n, nil
}

// PendingForIssue returns the remaining backlog for one issue.
func (r *DeliveryQueueRepo) PendingForIssue(ctx context.Context, issueID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM issue_delivery_queue WHERE newsletter_issue_id = $1
	`, issueID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending tasks for issue: %w", err)
	}
	return n, nil
}
