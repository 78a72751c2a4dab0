// Package mailing provides issue content tooling: Liquid-based
// personalization for outgoing email and drafting of issues from RSS
// feeds.
package mailing

import (
	"crypto/md5"
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/newsletter/internal/pkg/logger"
)

// TemplateService handles Liquid template rendering with caching.
// Compiled templates are cached by content hash, so repeated renders of
// the same issue body across thousands of recipients parse once.
type TemplateService struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates a template service with custom filters.
func NewTemplateService() *TemplateService {
	ts := &TemplateService{engine: liquid.NewEngine()}
	ts.registerCustomFilters()
	return ts
}

func (ts *TemplateService) registerCustomFilters() {
	// Default value: {{ first_name | default: "Friend" }}
	ts.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Capitalize first letter: {{ name | capitalize }}
	ts.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	// Truncate with ellipsis: {{ title | truncate: 50 }}
	ts.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})

	// URL encode: {{ email | urlencode }}
	ts.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// HTML escape: {{ user_input | escape }}
	ts.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
}

// Parse checks that templateStr is valid Liquid without rendering it.
func (ts *TemplateService) Parse(templateStr string) error {
	_, err := ts.engine.ParseString(templateStr)
	return err
}

// RenderStrict renders templateStr and surfaces parse and render errors
// to the caller. Used on the preview/validation path.
func (ts *TemplateService) RenderStrict(templateStr string, ctx map[string]any) (string, error) {
	tpl, err := ts.compile(templateStr)
	if err != nil {
		return templateStr, err
	}
	return tpl.RenderString(ctx)
}

// Render renders templateStr in lax mode: on any parse or render error
// the raw template text comes back unchanged. A malformed issue body
// must degrade to an unpersonalized send, never block delivery.
func (ts *TemplateService) Render(templateStr string, vars map[string]any) string {
	tpl, err := ts.compile(templateStr)
	if err != nil {
		logger.Warn("template parse failed, sending raw content", "error", err.Error())
		return templateStr
	}
	out, err := tpl.RenderString(vars)
	if err != nil {
		logger.Warn("template render failed, sending raw content", "error", err.Error())
		return templateStr
	}
	return out
}

func (ts *TemplateService) compile(templateStr string) (*liquid.Template, error) {
	key := fmt.Sprintf("%x", md5.Sum([]byte(templateStr)))
	if cached, ok := ts.cache.Load(key); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := ts.engine.ParseString(templateStr)
	if err != nil {
		return nil, err
	}
	ts.cache.Store(key, tpl)
	return tpl, nil
}

// ClearCache drops all compiled templates.
func (ts *TemplateService) ClearCache() {
	ts.cache.Range(func(key, _ any) bool {
		ts.cache.Delete(key)
		return true
	})
}
