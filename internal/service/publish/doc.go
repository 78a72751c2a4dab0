// Package publish implements the newsletter publish operation.
//
// Publishing an issue is a single transaction: claim the idempotency key,
// insert the immutable issue record, fan out one delivery task per
// confirmed subscriber, and save the HTTP response onto the idempotency
// record. Either all four artifacts commit or none do, so a retry (double
// click, client timeout, crashed process) can never produce a duplicate
// issue or duplicate sends — it either replays the saved response or finds
// nothing and starts over.
//
// Actual email delivery is asynchronous; the worker in internal/worker
// drains the task queue independently of this package.
//
// Repository implementations live in repository/postgres/.
package publish
