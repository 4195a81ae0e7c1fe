package log

import (
	"context"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l}
}

func (s *SlogLogger) Debug(msg string, fields ...any) { s.logger.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...any)  { s.logger.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...any)  { s.logger.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...any) { s.logger.Error(msg, fields...) }

func (s *SlogLogger) With(fields ...any) Logger {
	return &SlogLogger{logger: s.logger.With(fields...)}
}

func (s *SlogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.logger.Enabled(ctx, slog.Level(level))
}

// SlogProvider hands out SlogLoggers backed by one handler.
type SlogProvider struct {
	handler slog.Handler
	level   *slog.LevelVar
}

// NewSlogProvider creates a provider around handler. The level filter is
// applied on top of the handler's own filter.
func NewSlogProvider(handler slog.Handler, level Level) *SlogProvider {
	lv := &slog.LevelVar{}
	lv.Set(slog.Level(level))
	return &SlogProvider{handler: &levelHandler{Handler: handler, level: lv}, level: lv}
}

func (p *SlogProvider) GetLogger() Logger {
	return NewSlogLogger(slog.New(p.handler))
}

func (p *SlogProvider) GetLoggerWithName(name string) Logger {
	return NewSlogLogger(slog.New(p.handler).With(ComponentKey, name))
}

// SetLevel also affects loggers handed out earlier.
func (p *SlogProvider) SetLevel(level Level) {
	p.level.Set(slog.Level(level))
}

type levelHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}
