package auth

import "go.uber.org/zap"

// ZapLogger adapts a zap logger to the Logger interface
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps lgr, falling back to a no-op logger when nil
func NewZapLogger(lgr *zap.Logger) *ZapLogger {
	if lgr == nil {
		lgr = zap.NewNop()
	}
	return &ZapLogger{sugar: lgr.Sugar()}
}

func (z *ZapLogger) Debug(format string, args ...any) {
	z.sugar.Debugf(format, args...)
}

func (z *ZapLogger) Info(format string, args ...any) {
	z.sugar.Infof(format, args...)
}

func (z *ZapLogger) Warn(format string, args ...any) {
	z.sugar.Warnf(format, args...)
}

func (z *ZapLogger) Error(format string, args ...any) {
	z.sugar.Errorf(format, args...)
}

// Named returns a child logger scoped to name
func (z *ZapLogger) Named(name string) *ZapLogger {
	return &ZapLogger{sugar: z.sugar.Named(name)}
}
