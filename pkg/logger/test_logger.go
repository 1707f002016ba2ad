package logger

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogMessage is one captured log entry
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// TestLogger captures entries in memory so tests can assert on what a
// collector logged. WithField and friends return children that share
// the parent's capture buffer, so a single TestLogger sees everything
// logged through any derived logger.
type TestLogger struct {
	rec    *recorder
	fields map[string]interface{}
	err    error
}

type recorder struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewTestLogger creates an empty capturing logger
func NewTestLogger() *TestLogger {
	return &TestLogger{rec: &recorder{}}
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	l.rec.messages = append(l.rec.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  merged,
		Error:   l.err,
	})
}

func (l *TestLogger) Debug(msg string) { l.log("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.log("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.log("ERROR", msg, nil) }

// Fatal records the entry without exiting, unlike the real logger
func (l *TestLogger) Fatal(msg string) { l.log("FATAL", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.log("FATAL", msg, fields)
}

func (l *TestLogger) child() *TestLogger {
	c := &TestLogger{
		rec:    l.rec,
		err:    l.err,
		fields: make(map[string]interface{}, len(l.fields)+1),
	}
	for k, v := range l.fields {
		c.fields[k] = v
	}
	return c
}

// WithField returns a child logger carrying the field
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	c := l.child()
	c.fields[key] = value
	return c
}

// WithFields returns a child logger carrying all the fields
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	c := l.child()
	for k, v := range fields {
		c.fields[k] = v
	}
	return c
}

// WithError returns a child logger carrying the error
func (l *TestLogger) WithError(err error) Logger {
	c := l.child()
	c.err = err
	return c
}

// WithContext is a no-op for the test logger
func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l
}

// GetZerolog returns a no-op zerolog instance
func (l *TestLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

// GetMessages returns a copy of every captured entry in order
func (l *TestLogger) GetMessages() []LogMessage {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	out := make([]LogMessage, len(l.rec.messages))
	copy(out, l.rec.messages)
	return out
}

// GetMessagesByLevel returns the captured entries at the given level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	var out []LogMessage
	for _, m := range l.rec.messages {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

// HasMessage reports whether any captured entry contains the substring
func (l *TestLogger) HasMessage(substr string) bool {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	for _, m := range l.rec.messages {
		if strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// HasError reports whether anything was logged at ERROR or FATAL
func (l *TestLogger) HasError() bool {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	for _, m := range l.rec.messages {
		if m.Level == "ERROR" || m.Level == "FATAL" {
			return true
		}
	}
	return false
}
