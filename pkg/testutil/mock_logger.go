package testutil

import (
	"fmt"
	"strings"
	"sync"

	"upgradewatch/pkg/logger"
)

// LogEntry is one line captured by RecordingLogger.
type LogEntry struct {
	Level   string
	Name    string
	Message string
}

type logSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// RecordingLogger implements logger.Logger and keeps every entry in memory.
// Derived loggers share the parent's entries.
type RecordingLogger struct {
	sink *logSink
	name string
}

// NewRecordingLogger creates an empty recording logger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{sink: &logSink{}}
}

// Entries returns a copy of everything logged so far.
func (l *RecordingLogger) Entries() []LogEntry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	return append([]LogEntry(nil), l.sink.entries...)
}

// Contains reports whether any entry at level has a message containing text.
func (l *RecordingLogger) Contains(level, text string) bool {
	for _, entry := range l.Entries() {
		if entry.Level == level && strings.Contains(entry.Message, text) {
			return true
		}
	}

	return false
}

func (l *RecordingLogger) record(level, msg string) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	l.sink.entries = append(l.sink.entries, LogEntry{Level: level, Name: l.name, Message: msg})
}

func (l *RecordingLogger) Debugf(format string, args ...interface{}) {
	l.record("debug", fmt.Sprintf(format, args...))
}

func (l *RecordingLogger) Infof(format string, args ...interface{}) {
	l.record("info", fmt.Sprintf(format, args...))
}

func (l *RecordingLogger) Warnf(format string, args ...interface{}) {
	l.record("warn", fmt.Sprintf(format, args...))
}

func (l *RecordingLogger) Errorf(format string, args ...interface{}) {
	l.record("error", fmt.Sprintf(format, args...))
}

func (l *RecordingLogger) Fatalf(format string, args ...interface{}) {
	l.record("fatal", fmt.Sprintf(format, args...))
}

func (l *RecordingLogger) Debug(msg string, _ ...interface{}) { l.record("debug", msg) }
func (l *RecordingLogger) Info(msg string, _ ...interface{})  { l.record("info", msg) }
func (l *RecordingLogger) Warn(msg string, _ ...interface{})  { l.record("warn", msg) }
func (l *RecordingLogger) Error(msg string, _ ...interface{}) { l.record("error", msg) }

func (l *RecordingLogger) SetLevel(string) error { return nil }
func (l *RecordingLogger) GetLevel() string      { return "debug" }

func (l *RecordingLogger) WithField(string, interface{}) logger.Logger { return l }

func (l *RecordingLogger) WithFields(map[string]interface{}) logger.Logger { return l }

// Named returns a logger sharing the same entries under a dotted name.
func (l *RecordingLogger) Named(name string) logger.Logger {
	if l.name != "" {
		name = l.name + "." + name
	}

	return &RecordingLogger{sink: l.sink, name: name}
}
