package logger

var defLogger = NewSlog(InfoLevel, false)

// Debug logs a message at DebugLevel on the package logger.
func Debug(msg string, keysAndValues ...any) {
	defLogger.Debug(msg, keysAndValues...)
}

// Info logs a message at InfoLevel on the package logger.
func Info(msg string, keysAndValues ...any) {
	defLogger.Info(msg, keysAndValues...)
}

// Warn logs a message at WarnLevel on the package logger.
func Warn(msg string, keysAndValues ...any) {
	defLogger.Warn(msg, keysAndValues...)
}

// Error logs a message at ErrorLevel on the package logger.
func Error(msg string, keysAndValues ...any) {
	defLogger.Error(msg, keysAndValues...)
}

// Fatal logs a message at FatalLevel on the package logger, then exits.
func Fatal(msg string, keysAndValues ...any) {
	defLogger.Fatal(msg, keysAndValues...)
}

// SetLevel sets the minimum level of the package logger.
func SetLevel(level Level) {
	defLogger.SetLevel(level)
}

// GetLogger returns the package logger, a JSON slog logger writing to stdout.
func GetLogger() Logger {
	return defLogger
}

// With returns a child of the package logger carrying keyValues.
func With(keyValues ...any) Logger {
	return defLogger.With(keyValues...)
}
