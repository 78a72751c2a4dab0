package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/publish"
)

type fixedWorkerStats map[string]int64

func (s fixedWorkerStats) Stats() map[string]int64 { return s }

type fakeDrafter struct {
	draft *domain.IssueDraft
	err   error
	urls  []string
}

func (f *fakeDrafter) DraftFromFeed(ctx context.Context, feedURL string) (*domain.IssueDraft, error) {
	f.urls = append(f.urls, feedURL)
	return f.draft, f.err
}

func TestDeliveryStats(t *testing.T) {
	h := newTestHandlers(&fakePublisher{})
	h.SetWorkerStats(fixedWorkerStats{"total_sent": 12, "total_requeued": 2})

	rec := httptest.NewRecorder()
	h.HandleDeliveryStats(rec, httptest.NewRequest("GET", "/api/delivery/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		PendingDeliveries int64            `json:"pending_deliveries"`
		Subscribers       map[string]int   `json:"subscribers"`
		Worker            map[string]int64 `json:"worker"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, int64(7), payload.PendingDeliveries)
	assert.Equal(t, 3, payload.Subscribers["confirmed"])
	assert.Equal(t, int64(12), payload.Worker["total_sent"])
}

func TestGetIssue(t *testing.T) {
	issues := &fakeIssues{issue: &domain.NewsletterIssue{
		ID:          "issue-1",
		Title:       "March Issue",
		PublishedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}}
	h := NewHandlers(&fakePublisher{}, fixedUsers{id: "user-42"}, issues, fakeQueue{}, fakeSubscribers{}, nil)
	router := SetupRoutes(h, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/issues/issue-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"March Issue"`)
}

func TestGetIssueNotFound(t *testing.T) {
	issues := &fakeIssues{err: publish.ErrIssueNotFound}
	h := NewHandlers(&fakePublisher{}, fixedUsers{id: "user-42"}, issues, fakeQueue{}, fakeSubscribers{}, nil)
	router := SetupRoutes(h, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/issues/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraftFromFeed(t *testing.T) {
	drafter := &fakeDrafter{draft: &domain.IssueDraft{
		Title:       "Blog: Latest post",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	}}
	h := newTestHandlers(&fakePublisher{})
	h.SetDrafter(drafter)

	req := httptest.NewRequest("POST", "/api/newsletters/draft-from-feed",
		strings.NewReader(`{"feed_url":"https://blog.example.com/rss"}`))
	rec := httptest.NewRecorder()
	h.HandleDraftFromFeed(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Blog: Latest post")
	assert.Equal(t, []string{"https://blog.example.com/rss"}, drafter.urls)
}

func TestDraftFromFeedMissingURL(t *testing.T) {
	h := newTestHandlers(&fakePublisher{})
	h.SetDrafter(&fakeDrafter{})

	req := httptest.NewRequest("POST", "/api/newsletters/draft-from-feed", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.HandleDraftFromFeed(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDraftFromFeedNotConfigured(t *testing.T) {
	h := newTestHandlers(&fakePublisher{})

	req := httptest.NewRequest("POST", "/api/newsletters/draft-from-feed",
		strings.NewReader(`{"feed_url":"https://blog.example.com/rss"}`))
	rec := httptest.NewRecorder()
	h.HandleDraftFromFeed(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestFlashRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	setFlash(rec, "error", "Content text field is required")

	req := httptest.NewRequest("GET", "/admin/newsletters", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	popRec := httptest.NewRecorder()
	msg := popFlash(popRec, req)
	require.NotNil(t, msg)
	assert.Equal(t, "error", msg.Level)
	assert.Equal(t, "Content text field is required", msg.Content)

	// popFlash must clear the cookie.
	cleared := false
	for _, c := range popRec.Result().Cookies() {
		if c.Name == flashCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestFlashGarbageCookieIgnored(t *testing.T) {
	req := httptest.NewRequest("GET", "/admin/newsletters", nil)
	req.AddCookie(&http.Cookie{Name: flashCookieName, Value: "%%%not-base64%%%"})

	assert.Nil(t, popFlash(httptest.NewRecorder(), req))
}
