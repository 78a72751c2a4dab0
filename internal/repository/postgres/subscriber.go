package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/newsletter/internal/domain"
)

// SubscriberRepo is the read side of the subscriber directory. Subscriber
// lifecycle (signup, double opt-in, unsubscribe) is managed elsewhere; this
// service only ever queries it.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber directory.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

// ConfirmedEmails returns the addresses of all confirmed subscribers.
func (r *SubscriberRepo) ConfirmedEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT email FROM subscribers WHERE status = 'confirmed' ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("list confirmed subscribers: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan subscriber email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// CountByStatus returns subscriber counts keyed by status.
func (r *SubscriberRepo) CountByStatus(ctx context.Context) (map[domain.SubscriberStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM subscribers GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count subscribers: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SubscriberStatus]int)
	for rows.Next() {
		var status domain.SubscriberStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan subscriber count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
