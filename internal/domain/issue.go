package domain

import (
	"strings"
	"time"
)

// NewsletterIssue is a published issue. Issues are immutable once created;
// delivery tasks reference them by ID and never copy the content.
type NewsletterIssue struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	TextContent string    `json:"text_content" db:"text_content"`
	HTMLContent string    `json:"html_content" db:"html_content"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
}

// IssueDraft is the operator-submitted content of an issue before it is
// published.
type IssueDraft struct {
	Title       string `json:"title"`
	TextContent string `json:"content_text"`
	HTMLContent string `json:"content_html"`
}

// ValidationError reports a problem with operator input that the operator
// can correct and resubmit. Its message is shown verbatim in the UI flash.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError builds a ValidationError with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

// Validate checks that every required field is non-empty after trimming.
func (d IssueDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return NewValidationError("Title is required field")
	}
	if strings.TrimSpace(d.TextContent) == "" {
		return NewValidationError("Content text field is required")
	}
	if strings.TrimSpace(d.HTMLContent) == "" {
		return NewValidationError("Content html field is required")
	}
	return nil
}
