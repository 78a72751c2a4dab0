package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/publish"
)

func newMockDB(t *testing.T) (sqlmock.Sqlmock, *IssueRepo, *DeliveryQueueRepo, *SubscriberRepo) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, NewIssueRepo(db), NewDeliveryQueueRepo(db), NewSubscriberRepo(db)
}

func testIssue() *domain.NewsletterIssue {
	return &domain.NewsletterIssue{
		ID:          "issue-1",
		Title:       "March Issue",
		TextContent: "plain",
		HTMLContent: "<p>rich</p>",
		PublishedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestIssueCreateRunsOnCallerTransaction(t *testing.T) {
	mock, issues, _, _ := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO newsletter_issues`).
		WithArgs("issue-1", "March Issue", "plain", "<p>rich</p>", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	db := issues.db
	tx, err := db.Begin()
	require.NoError(t, err)

	require.NoError(t, issues.Create(context.Background(), tx, testIssue()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDeliveryCountsCreatedTasks(t *testing.T) {
	mock, issues, _, _ := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO issue_delivery_queue`).
		WithArgs("issue-1").
		WillReturnResult(sqlmock.NewResult(0, 42))

	tx, err := issues.db.Begin()
	require.NoError(t, err)

	n, err := issues.EnqueueDelivery(context.Background(), tx, "issue-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDeliveryNoConfirmedSubscribers(t *testing.T) {
	mock, issues, _, _ := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO issue_delivery_queue`).
		WithArgs("issue-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := issues.db.Begin()
	require.NoError(t, err)

	n, err := issues.EnqueueDelivery(context.Background(), tx, "issue-1")
	require.NoError(t, err)
	assert.Zero(t, n, "an empty audience is a valid publish")
}

func TestIssueGet(t *testing.T) {
	mock, issues, _, _ := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "title", "text_content", "html_content", "published_at"}).
		AddRow("issue-1", "March Issue", "plain", "<p>rich</p>", time.Now())
	mock.ExpectQuery(`SELECT id, title, text_content, html_content, published_at`).
		WithArgs("issue-1").
		WillReturnRows(rows)

	issue, err := issues.Get(context.Background(), "issue-1")
	require.NoError(t, err)
	assert.Equal(t, "March Issue", issue.Title)
}

func TestIssueGetNotFound(t *testing.T) {
	mock, issues, _, _ := newMockDB(t)

	mock.ExpectQuery(`SELECT id, title, text_content, html_content, published_at`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "text_content", "html_content", "published_at"}))

	_, err := issues.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, publish.ErrIssueNotFound)
}

func TestPendingCount(t *testing.T) {
	mock, _, queue, _ := newMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM issue_delivery_queue`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))

	n, err := queue.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
}

func TestCountByStatus(t *testing.T) {
	mock, _, _, subscribers := newMockDB(t)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("confirmed", 120).
		AddRow("unconfirmed", 8)
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM subscribers GROUP BY status`).
		WillReturnRows(rows)

	counts, err := subscribers.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, counts[domain.SubscriberConfirmed])
	assert.Equal(t, 8, counts[domain.SubscriberUnconfirmed])
}
