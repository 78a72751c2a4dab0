// Package idempotency makes the publish endpoint safely retryable.
//
// Each publish request carries a client-supplied idempotency key scoped to
// the requesting operator. The first request to arrive claims the
// (user_id, key) pair by inserting a processing marker inside the same
// database transaction that will create the newsletter issue and its
// delivery tasks; the response is saved onto the marker when that
// transaction commits. Any retry of the same logical request either
// replays the saved response verbatim or, if the original is still in
// flight, is told to come back shortly. The unique primary key on
// (user_id, idempotency_key) is the only concurrency-control primitive.
package idempotency
