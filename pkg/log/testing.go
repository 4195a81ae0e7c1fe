// Testing helpers: TestLogger captures records in memory so tests can assert
// on the fold and round logs emitted by stacking, grid search and boosting.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TestLogger writes one JSON object per record into a shared buffer.
// Loggers derived with With append to the same buffer.
type TestLogger struct {
	buffer *bytes.Buffer
	level  Level
	fields map[string]interface{}
}

// NewTestLogger returns a logger capturing records at level and above, and
// the buffer it writes to.
//
//	logger, buf := log.NewTestLogger(log.LevelInfo)
//	stack.WithLogger(logger)
//	// ... Fit ...
//	n := logger.CountMessages("Fold finished")
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	return &TestLogger{buffer: buffer, level: level, fields: map[string]interface{}{}}, buffer
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.write(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.write(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.write(LevelWarn, msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.write(LevelError, msg, fields) }

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	merged := make(map[string]interface{}, len(t.fields)+len(fields)/2)
	for k, v := range t.fields {
		merged[k] = v
	}
	addFields(merged, fields)
	return &TestLogger{buffer: t.buffer, level: t.level, fields: merged}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return t.level <= level
}

func (t *TestLogger) write(level Level, msg string, fields []any) {
	if level < t.level {
		return
	}
	entry := map[string]interface{}{"level": level.String(), "message": msg}
	for k, v := range t.fields {
		entry[k] = v
	}
	addFields(entry, fields)

	line, _ := json.Marshal(entry)
	t.buffer.Write(line)
	t.buffer.WriteByte('\n')
}

// addFields は key/value の組を dst に追加する。error はメッセージ文字列にする。
func addFields(dst map[string]interface{}, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		value := fields[i+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		dst[fmt.Sprint(fields[i])] = value
	}
}

func (t *TestLogger) entries() []map[string]interface{} {
	var out []map[string]interface{}
	for _, line := range strings.Split(t.buffer.String(), "\n") {
		if line == "" {
			continue
		}
		var e map[string]interface{}
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// ContainsMessage reports whether any captured output contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.buffer.String(), message)
}

// ContainsField reports whether a captured record has key set to value.
// Numbers compare as float64 after the JSON round trip.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	for _, e := range t.entries() {
		if v, ok := e[key]; ok && v == value {
			return true
		}
	}
	return false
}

// CountMessages returns how many captured records have exactly the given message.
func (t *TestLogger) CountMessages(message string) int {
	n := 0
	for _, e := range t.entries() {
		if e["message"] == message {
			n++
		}
	}
	return n
}

// TestLoggerProvider hands out loggers sharing one TestLogger buffer.
type TestLoggerProvider struct {
	logger *TestLogger
}

// NewTestLoggerProvider returns a provider and the buffer its loggers write to.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *bytes.Buffer) {
	logger, buffer := NewTestLogger(level)
	return &TestLoggerProvider{logger: logger}, buffer
}

func (p *TestLoggerProvider) GetLogger() Logger { return p.logger }

func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

func (p *TestLoggerProvider) SetLevel(level Level) { p.logger.level = level }
