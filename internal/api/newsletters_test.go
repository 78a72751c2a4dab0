package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/idempotency"
	"github.com/ignite/newsletter/internal/service/publish"
)

type publishCall struct {
	userID string
	key    idempotency.Key
	draft  domain.IssueDraft
	resp   *idempotency.SavedResponse
}

type fakePublisher struct {
	calls  []publishCall
	result *publish.Result
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, userID string, key idempotency.Key,
	draft domain.IssueDraft, resp *idempotency.SavedResponse) (*publish.Result, error) {
	f.calls = append(f.calls, publishCall{userID, key, draft, resp})
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &publish.Result{Response: resp, IssueID: "issue-1", Enqueued: 3}, nil
}

type fixedUsers struct{ id string }

func (u fixedUsers) UserID(r *http.Request) (string, bool) {
	if u.id == "" {
		return "", false
	}
	return u.id, true
}

type fakeIssues struct {
	issue *domain.NewsletterIssue
	err   error
}

func (f *fakeIssues) Get(ctx context.Context, id string) (*domain.NewsletterIssue, error) {
	return f.issue, f.err
}

type fakeQueue struct{ pending int64 }

func (f fakeQueue) PendingCount(ctx context.Context) (int64, error) { return f.pending, nil }

type fakeSubscribers struct{}

func (fakeSubscribers) CountByStatus(ctx context.Context) (map[domain.SubscriberStatus]int, error) {
	return map[domain.SubscriberStatus]int{
		domain.SubscriberConfirmed:   3,
		domain.SubscriberUnconfirmed: 1,
	}, nil
}

func newTestHandlers(p Publisher) *Handlers {
	return NewHandlers(p, fixedUsers{id: "user-42"}, &fakeIssues{}, fakeQueue{pending: 7}, fakeSubscribers{}, nil)
}

func publishForm(key string) url.Values {
	return url.Values{
		"title":           {"March Issue"},
		"content_text":    {"plain body"},
		"content_html":    {"<p>rich body</p>"},
		"idempotency_key": {key},
	}
}

func postForm(h *Handlers, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/admin/newsletters", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandlePublishNewsletter(rec, req)
	return rec
}

func TestPublishSuccessRedirectsToDashboard(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandlers(pub)

	rec := postForm(h, publishForm("key-1"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), flashCookieName,
		"success flash must ride on the saved response")

	require.Len(t, pub.calls, 1)
	call := pub.calls[0]
	assert.Equal(t, "user-42", call.userID)
	assert.Equal(t, idempotency.Key("key-1"), call.key)
	assert.Equal(t, "March Issue", call.draft.Title)
	assert.Equal(t, "plain body", call.draft.TextContent)
	assert.Equal(t, "<p>rich body</p>", call.draft.HTMLContent)
	assert.Equal(t, http.StatusSeeOther, call.resp.StatusCode)
}

func TestPublishReplayWritesSavedResponseVerbatim(t *testing.T) {
	saved := &idempotency.SavedResponse{
		StatusCode: http.StatusSeeOther,
		Headers: http.Header{
			"Location":   {"/admin/dashboard"},
			"Set-Cookie": {flashCookie("info", successFlash).String()},
		},
	}
	pub := &fakePublisher{result: &publish.Result{Response: saved, Replayed: true}}
	h := newTestHandlers(pub)

	rec := postForm(h, publishForm("key-1"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))
	assert.Equal(t, saved.Headers.Get("Set-Cookie"), rec.Header().Get("Set-Cookie"))
}

func TestPublishValidationErrorFlashesAndRedirects(t *testing.T) {
	pub := &fakePublisher{err: domain.NewValidationError("Title is required field")}
	h := newTestHandlers(pub)

	rec := postForm(h, publishForm("key-1"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/newsletters", rec.Header().Get("Location"))

	// The flash must round-trip onto the form page.
	formReq := httptest.NewRequest("GET", "/admin/newsletters", nil)
	for _, c := range rec.Result().Cookies() {
		formReq.AddCookie(c)
	}
	formRec := httptest.NewRecorder()
	h.HandleNewsletterForm(formRec, formReq)
	assert.Contains(t, formRec.Body.String(), "<p><i>Title is required field</i></p>")
}

func TestPublishEmptyIdempotencyKey(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandlers(pub)

	rec := postForm(h, publishForm("  "))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "The idempotency key cannot be empty")
	assert.Empty(t, pub.calls)
}

func TestPublishOverlongIdempotencyKey(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandlers(pub)

	rec := postForm(h, publishForm(strings.Repeat("k", 51)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "The idempotency key must be shorter than 51 characters")
	assert.Empty(t, pub.calls)
}

func TestPublishConcurrentConflictGives409AfterRetries(t *testing.T) {
	pub := &fakePublisher{err: idempotency.ErrInProgress}
	h := newTestHandlers(pub)

	rec := postForm(h, publishForm("key-1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "publish already in progress")
	assert.Len(t, pub.calls, conflictRetries+1, "the handler retries before giving up")
}

func TestPublishStorageFaultGives500(t *testing.T) {
	pub := &fakePublisher{err: errors.New("pq: connection reset")}
	h := newTestHandlers(pub)

	rec := postForm(h, publishForm("key-1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:", "internal details must not leak")
}

func TestPublishUnauthenticated(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHandlers(pub, fixedUsers{}, &fakeIssues{}, fakeQueue{}, fakeSubscribers{}, nil)

	rec := postForm(h, publishForm("key-1"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, pub.calls)
}

func TestNewsletterFormEmbedsFreshKey(t *testing.T) {
	h := newTestHandlers(&fakePublisher{})

	rec := httptest.NewRecorder()
	h.HandleNewsletterForm(rec, httptest.NewRequest("GET", "/admin/newsletters", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `name="idempotency_key"`)
	assert.Contains(t, body, `action="/admin/newsletters"`)
}
