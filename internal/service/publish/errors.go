package publish

import "errors"

// Sentinel errors for the publish service layer.
var (
	ErrIssueNotFound = errors.New("newsletter issue not found")
)
