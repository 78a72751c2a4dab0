package idempotency

import (
	"fmt"
	"strings"

	"github.com/ignite/newsletter/internal/domain"
)

// MaxKeyLength bounds client-supplied idempotency keys. Clients normally
// send a UUID (36 characters); the bound leaves headroom without letting
// arbitrary payloads into the primary key.
const MaxKeyLength = 50

// Key is a validated idempotency key. The zero value is not valid; always
// construct through ParseKey.
type Key string

// ParseKey validates a raw idempotency key. A malformed key is an operator
// error and is rejected before any storage is touched.
func ParseKey(raw string) (Key, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", domain.NewValidationError("The idempotency key cannot be empty")
	}
	if len(trimmed) > MaxKeyLength {
		return "", domain.NewValidationError(
			fmt.Sprintf("The idempotency key must be shorter than %d characters", MaxKeyLength+1))
	}
	return Key(trimmed), nil
}

func (k Key) String() string { return string(k) }
