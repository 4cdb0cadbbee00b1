package logger

import "github.com/robfig/cron/v3"

// cronLogger adapts Logger to cron.Logger so job panics and skips end up in zap.
type cronLogger struct {
	l Logger
}

// Cron returns a cron.Logger backed by l.
func Cron(l Logger) cron.Logger {
	return &cronLogger{l: l}
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Infow(msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
