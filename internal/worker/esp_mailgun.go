package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/newsletter/internal/pkg/logger"
)

// MailgunSender delivers email through the Mailgun Messages API.
type MailgunSender struct {
	apiKey  string
	domain  string
	baseURL string
	client  *http.Client
}

// NewMailgunSender creates a Mailgun sender targeting the given domain.
func NewMailgunSender(apiKey, domain, baseURL string, timeout time.Duration) *MailgunSender {
	if baseURL == "" {
		baseURL = "https://api.mailgun.net/v3"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &MailgunSender{
		apiKey:  apiKey,
		domain:  domain,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Send delivers a single email through Mailgun. A 400-class response other
// than auth/throttling means Mailgun rejected this message outright and a
// retry with the same recipient cannot succeed; 429 and 5xx are transient.
func (s *MailgunSender) Send(ctx context.Context, msg *EmailMessage) (*SendResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("Mailgun API key not configured")
	}

	form := url.Values{}
	form.Add("from", fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail))
	form.Add("to", msg.To)
	form.Add("subject", msg.Subject)
	form.Add("html", msg.HTMLContent)
	form.Add("text", msg.TextContent)
	form.Add("v:newsletter_issue_id", msg.IssueID)

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.domain)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		permanent := resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusTooManyRequests &&
			resp.StatusCode != http.StatusUnauthorized &&
			resp.StatusCode != http.StatusPaymentRequired
		return &SendResult{
			Success:   false,
			Permanent: permanent,
			Gateway:   "mailgun",
			Error:     fmt.Errorf("Mailgun error %d: %s", resp.StatusCode, string(body)),
		}, nil
	}

	var result struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	json.Unmarshal(body, &result)
	messageID := strings.Trim(result.ID, "<>")
	logger.Debug("Mailgun accepted message", "to", msg.To, "message_id", messageID)

	return &SendResult{
		Success:   true,
		MessageID: messageID,
		Gateway:   "mailgun",
		SentAt:    time.Now(),
	}, nil
}
