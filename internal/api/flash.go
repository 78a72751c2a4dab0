package api

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Flash messages are one-shot cookies: set on a redirect, rendered and
// cleared by the next page load. The value is base64-encoded so message
// text survives the cookie value charset.

const flashCookieName = "_flash"

type flashMessage struct {
	Level   string // "info" or "error"
	Content string
}

func flashCookie(level, content string) *http.Cookie {
	return &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.URLEncoding.EncodeToString([]byte(level + ":" + content)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func setFlash(w http.ResponseWriter, level, content string) {
	http.SetCookie(w, flashCookie(level, content))
}

// popFlash reads and clears the flash cookie. Returns nil when the
// request carries no readable flash.
func popFlash(w http.ResponseWriter, r *http.Request) *flashMessage {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:   flashCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	decoded, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	level, content, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil
	}
	return &flashMessage{Level: level, Content: content}
}
