package domain

// DeliveryTask is one unit of outstanding delivery work: send one issue to
// one subscriber. Tasks are created in bulk inside the publish transaction
// and deleted by the worker on a terminal outcome; they are never updated
// in place.
type DeliveryTask struct {
	IssueID         string `json:"newsletter_issue_id" db:"newsletter_issue_id"`
	SubscriberEmail string `json:"subscriber_email" db:"subscriber_email"`

	// Issue content joined in at claim time so the worker sends without a
	// second round trip.
	Title       string `json:"-" db:"-"`
	TextContent string `json:"-" db:"-"`
	HTMLContent string `json:"-" db:"-"`
}
