package worker

import (
	"context"
	"time"
)

// EmailSender is the gateway through which newsletter issues leave the
// system. Implementations must distinguish permanent failures (the address
// itself was rejected) from transient ones where they can; when in doubt
// they must report transient so deliverable mail is never silently dropped.
type EmailSender interface {
	Send(ctx context.Context, msg *EmailMessage) (*SendResult, error)
}

// EmailMessage is one outbound email.
type EmailMessage struct {
	To          string
	FromName    string
	FromEmail   string
	Subject     string
	TextContent string
	HTMLContent string
	IssueID     string
}

// SendResult is the outcome of a send attempt.
//
// A returned error means the attempt itself failed (network, credentials)
// and is always treated as transient. A result with Success=false carries
// the gateway's verdict: Permanent=true means retrying this recipient can
// never succeed and the task should be dropped.
type SendResult struct {
	Success   bool
	Permanent bool
	MessageID string
	Gateway   string
	Error     error
	SentAt    time.Time
}
