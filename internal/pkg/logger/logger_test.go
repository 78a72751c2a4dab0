package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T, fn func()) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	fn()

	if buf.Len() == 0 {
		return nil
	}
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogEmitsStructuredJSON(t *testing.T) {
	entry := captureLog(t, func() {
		Info("issue published", "issue_id", "issue-1", "recipients", 3)
	})

	require.NotNil(t, entry)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "issue published", entry["msg"])
	assert.Equal(t, "issue-1", entry["issue_id"])
	assert.Equal(t, "3", entry["recipients"])
}

func TestLogLevelFiltering(t *testing.T) {
	SetLevel(WARN)
	t.Cleanup(func() { SetLevel(INFO) })

	entry := captureLog(t, func() {
		Info("should be filtered")
	})
	assert.Nil(t, entry)
}

func TestEmailFieldsAreRedacted(t *testing.T) {
	entry := captureLog(t, func() {
		Warn("delivery failed", "email", "alice.smith@example.com")
	})

	require.NotNil(t, entry)
	assert.Equal(t, "al***@example.com", entry["email"])
}

func TestEmbeddedEmailsAreRedacted(t *testing.T) {
	entry := captureLog(t, func() {
		Error("send failed", "error", "rejected recipient bob.jones@example.com")
	})

	require.NotNil(t, entry)
	assert.NotContains(t, entry["error"], "bob.jones@example.com")
	assert.Contains(t, entry["error"], "bo***@example.com")
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}
