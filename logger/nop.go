package logger

type nopLogger struct{}

var nop Logger = nopLogger{}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop }

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Fatal discards the message but still exits, as the Logger contract requires.
func (nopLogger) Fatal(string, ...any) { exit(1) }

func (n nopLogger) With(...any) Logger { return n }
func (nopLogger) Level() Level         { return FatalLevel }
func (nopLogger) SetLevel(Level)       {}
