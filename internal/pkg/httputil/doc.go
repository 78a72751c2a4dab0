// Package httputil provides the shared JSON response helpers used by
// API handlers, keeping error envelopes and content types consistent
// across endpoints.
package httputil
