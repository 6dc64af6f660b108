package main

import "go.uber.org/zap"

// logAdapter exposes a zap logger through the Info/Warn/Error(msg, kv...)
// interface the library packages accept.
type logAdapter struct {
	s *zap.SugaredLogger
}

func newLogAdapter(l *zap.Logger) *logAdapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &logAdapter{s: l.Sugar()}
}

func (a *logAdapter) Info(msg string, args ...any)  { a.s.Infow(msg, args...) }
func (a *logAdapter) Warn(msg string, args ...any)  { a.s.Warnw(msg, args...) }
func (a *logAdapter) Error(msg string, args ...any) { a.s.Errorw(msg, args...) }
