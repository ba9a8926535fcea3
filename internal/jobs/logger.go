package jobs

import "go.uber.org/zap"

// zapLogger adapts zap onto asynq's logging interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger wraps a zap logger for asynq.
func NewLogger(logger *zap.Logger) *zapLogger {
	return &zapLogger{sugar: logger.Sugar()}
}

func (l *zapLogger) Debug(args ...any) { l.sugar.Debug(args...) }
func (l *zapLogger) Info(args ...any)  { l.sugar.Info(args...) }
func (l *zapLogger) Warn(args ...any)  { l.sugar.Warn(args...) }
func (l *zapLogger) Error(args ...any) { l.sugar.Error(args...) }
func (l *zapLogger) Fatal(args ...any) { l.sugar.Fatal(args...) }
