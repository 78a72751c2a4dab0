package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/idempotency"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

const successFlash = "Newsletters were sent to subscribers!"

// conflictRetries bounds how long a losing concurrent publish waits for
// the winner to commit before giving up with 409.
const (
	conflictRetries    = 3
	conflictRetryDelay = 200 * time.Millisecond
)

// HandlePublishNewsletter accepts the publish form. The success response
// is built up front and persisted with the issue inside one transaction,
// so a retried request replays the identical redirect and flash.
//
//	POST /admin/newsletters
func (h *Handlers) HandlePublishNewsletter(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.users.UserID(r)
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(w, "malformed form body")
		return
	}

	key, err := idempotency.ParseKey(r.PostFormValue("idempotency_key"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	draft := domain.IssueDraft{
		Title:       r.PostFormValue("title"),
		TextContent: r.PostFormValue("content_text"),
		HTMLContent: r.PostFormValue("content_html"),
	}

	for attempt := 0; ; attempt++ {
		result, err := h.publisher.Publish(r.Context(), userID, key, draft, successResponse())

		var vErr *domain.ValidationError
		switch {
		case errors.As(err, &vErr):
			setFlash(w, "error", vErr.Error())
			http.Redirect(w, r, "/admin/newsletters", http.StatusSeeOther)
			return

		case errors.Is(err, idempotency.ErrInProgress):
			if attempt < conflictRetries {
				time.Sleep(conflictRetryDelay)
				continue
			}
			httputil.Error(w, http.StatusConflict, "publish already in progress -- retry shortly")
			return

		case err != nil:
			logger.Error("publish failed", "user_id", userID, "error", err.Error())
			httputil.InternalError(w, err)
			return
		}

		writeSavedResponse(w, result.Response)
		return
	}
}

// successResponse is the response saved for replay: a redirect to the
// dashboard carrying the success flash. The Set-Cookie header rides
// along so a replayed request shows the same message.
func successResponse() *idempotency.SavedResponse {
	headers := http.Header{}
	headers.Set("Location", "/admin/dashboard")
	headers.Add("Set-Cookie", flashCookie("info", successFlash).String())
	return &idempotency.SavedResponse{
		StatusCode: http.StatusSeeOther,
		Headers:    headers,
	}
}

func writeSavedResponse(w http.ResponseWriter, resp *idempotency.SavedResponse) {
	for name, values := range resp.Headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}

// HandleNewsletterForm serves the publish form with a fresh idempotency
// key baked in, surfacing any pending flash message.
//
//	GET /admin/newsletters
func (h *Handlers) HandleNewsletterForm(w http.ResponseWriter, r *http.Request) {
	flashHTML := renderFlash(popFlash(w, r))
	key := uuid.New().String()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>Publish Newsletter</title>
</head>
<body>
%s<form method="post" action="/admin/newsletters">
	<div>
		<label>Title: <input type="text" placeholder="Enter title" name="title"></label>
	</div>
	<div>
		<label>Text Content</label>
		<textarea name="content_text"></textarea>
	</div>
	<div>
		<label>Html Content</label>
		<textarea name="content_html"></textarea>
	</div>
	<input hidden type="text" name="idempotency_key" value="%s">
	<button type="submit">Publish</button>
</form>
<p><a href="/admin/dashboard">&lt;- Back</a></p>
</body>
</html>
`, flashHTML, key)
}

// HandleDashboard serves the admin landing page.
//
//	GET /admin/dashboard
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	flashHTML := renderFlash(popFlash(w, r))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>Admin Dashboard</title>
</head>
<body>
%s<h1>Newsletter Admin</h1>
<ul>
	<li><a href="/admin/newsletters">Publish a newsletter issue</a></li>
	<li><a href="/api/delivery/stats">Delivery stats</a></li>
	<li><a href="/auth/logout">Logout</a></li>
</ul>
</body>
</html>
`, flashHTML)
}

func renderFlash(msg *flashMessage) string {
	if msg == nil {
		return ""
	}
	return fmt.Sprintf("<p><i>%s</i></p>\n", msg.Content)
}
