package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/publish"
)

// IssueRepo implements publish.IssueRepository against PostgreSQL.
type IssueRepo struct{ db *sql.DB }

// NewIssueRepo creates a Postgres-backed issue repository.
func NewIssueRepo(db *sql.DB) *IssueRepo { return &IssueRepo{db: db} }

// Create inserts a newsletter issue on the caller's transaction. Issues are
// write-once; there is no update path.
func (r *IssueRepo) Create(ctx context.Context, tx *sql.Tx, issue *domain.NewsletterIssue) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO newsletter_issues (id, title, text_content, html_content, published_at)
		VALUES ($1, $2, $3, $4, $5)
	`, issue.ID, issue.Title, issue.TextContent, issue.HTMLContent, issue.PublishedAt)
	if err != nil {
		return fmt.Errorf("insert newsletter issue: %w", err)
	}
	return nil
}

// EnqueueDelivery creates one delivery task per currently-confirmed
// subscriber in a single set-based insert on the caller's transaction.
// The subscriber set is frozen at this point: anyone confirmed later is
// not retroactively targeted. Returns the number of tasks created.
func (r *IssueRepo) EnqueueDelivery(ctx context.Context, tx *sql.Tx, issueID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO issue_delivery_queue (newsletter_issue_id, subscriber_email)
		SELECT $1, email
		FROM subscribers
		WHERE status = 'confirmed'
		ON CONFLICT (newsletter_issue_id, subscriber_email) DO NOTHING
	`, issueID)
	if err != nil {
		return 0, fmt.Errorf("enqueue delivery tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected: %w", err)
	}
	return n, nil
}

// Get returns a published issue by ID. Returns publish.ErrIssueNotFound if
// it doesn't exist.
func (r *IssueRepo) Get(ctx context.Context, id string) (*domain.NewsletterIssue, error) {
	issue := &domain.NewsletterIssue{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, text_content, html_content, published_at
		FROM newsletter_issues
		WHERE id = $1
	`, id).Scan(&issue.ID, &issue.Title, &issue.TextContent, &issue.HTMLContent, &issue.PublishedAt)
	if err == sql.ErrNoRows {
		return nil, publish.ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get newsletter issue: %w", err)
	}
	return issue, nil
}
