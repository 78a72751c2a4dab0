package idempotency

import (
	"errors"
	"strings"
	"testing"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Key
		wantErr bool
	}{
		{"uuid-style key", "b3c84fbe-5a4a-4d3a-9d55-1c6e3c6a7f00", "b3c84fbe-5a4a-4d3a-9d55-1c6e3c6a7f00", false},
		{"surrounding whitespace trimmed", "  retry-42  ", "retry-42", false},
		{"max length accepted", Key(strings.Repeat("a", 50)).String(), Key(strings.Repeat("a", 50)), false},
		{"empty rejected", "", "", true},
		{"whitespace only rejected", "   ", "", true},
		{"over max length rejected", strings.Repeat("a", 51), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				var verr *domain.ValidationError
				assert.True(t, errors.As(err, &verr), "expected a validation error, got %T", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
