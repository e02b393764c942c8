package logger

// NoOpLogger discards everything.
type NoOpLogger struct{}

var _ Logger = (*NoOpLogger)(nil)

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debugf(format string, args ...interface{}) {}
func (n *NoOpLogger) Infof(format string, args ...interface{})  {}
func (n *NoOpLogger) Warnf(format string, args ...interface{})  {}
func (n *NoOpLogger) Errorf(format string, args ...interface{}) {}
func (n *NoOpLogger) Fatalf(format string, args ...interface{}) {}

func (n *NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}

func (n *NoOpLogger) SetLevel(level string) error { return nil }
func (n *NoOpLogger) GetLevel() string            { return "off" }

func (n *NoOpLogger) WithField(key string, value interface{}) Logger {
	return n
}

func (n *NoOpLogger) WithFields(fields map[string]interface{}) Logger {
	return n
}

func (n *NoOpLogger) Named(name string) Logger {
	return n
}
