package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes one JSON object per entry. Subscriber addresses must never
// reach log output unmasked, so redaction is on by default and covers both
// email-named fields and addresses embedded in free-form values.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	redactPII bool
}

var std = &Logger{out: os.Stderr, level: INFO, redactPII: true}

// SetLevel sets the minimum level emitted by the package logger.
func SetLevel(l Level) { std.level = l }

// SetRedactPII toggles address masking. Leave it on outside of local
// debugging sessions.
func SetRedactPII(on bool) { std.redactPII = on }

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) { std.out = w }

// Debug emits a DEBUG-level entry.
func Debug(msg string, kv ...interface{}) { std.emit(DEBUG, msg, kv) }

// Info emits an INFO-level entry.
func Info(msg string, kv ...interface{}) { std.emit(INFO, msg, kv) }

// Warn emits a WARN-level entry.
func Warn(msg string, kv ...interface{}) { std.emit(WARN, msg, kv) }

// Error emits an ERROR-level entry.
func Error(msg string, kv ...interface{}) { std.emit(ERROR, msg, kv) }

func (l *Logger) emit(level Level, msg string, kv []interface{}) {
	if level < l.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	addFields(entry, kv, l.redactPII)

	line, err := json.Marshal(entry)
	if err != nil {
		// A field that won't marshal should not lose the message.
		line = []byte(fmt.Sprintf(`{"level":%q,"msg":%q}`, level.String(), msg))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(append(line, '\n'))
}

// addFields folds alternating key/value arguments into the entry. A
// trailing key with no value is dropped rather than guessed at.
func addFields(entry map[string]interface{}, kv []interface{}, redact bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprintf("%v", kv[i])
		val := fmt.Sprintf("%v", kv[i+1])
		if redact {
			val = redactValue(key, val)
		}
		entry[key] = val
	}
}
