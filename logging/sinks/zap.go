package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"zonecore/server/logging"
)

// ZapSink writes events as structured JSON through a zap logger core, giving
// the router a production-grade structured backend (log rotation, sampling,
// and encoder choice are configured on the *zap.Logger the caller supplies)
// instead of the JSONSink's hand-rolled encoder.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps an existing *zap.Logger. A nil logger falls back to
// zap.NewNop so misconfiguration never panics the router's sink goroutine.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("events")}
}

func (s *ZapSink) Write(event logging.Event) error {
	fields := []zap.Field{
		zap.Uint64("tick", event.Tick),
		zap.Time("time", event.Time),
		zap.String("category", string(event.Category)),
		zap.String("severity", severityName(event.Severity)),
		zap.String("actorId", event.Actor.ID),
		zap.String("actorKind", string(event.Actor.Kind)),
	}
	if len(event.Targets) > 0 {
		ids := make([]string, len(event.Targets))
		for i, t := range event.Targets {
			ids[i] = t.ID
		}
		fields = append(fields, zap.Strings("targets", ids))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	if event.TraceID != "" {
		fields = append(fields, zap.String("traceId", event.TraceID))
	}
	for k, v := range event.Extra {
		fields = append(fields, zap.Any(k, v))
	}

	level := severityLevel(event.Severity)
	if ce := s.logger.Check(level, string(event.Type)); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (s *ZapSink) Close(context.Context) error {
	// Sync can fail benignly on stdout/stderr (ENOTTY); the router treats a
	// non-nil error as a sink failure, so it is intentionally swallowed here.
	_ = s.logger.Sync()
	return nil
}

func severityLevel(sev logging.Severity) zapcore.Level {
	switch sev {
	case logging.SeverityDebug:
		return zapcore.DebugLevel
	case logging.SeverityInfo:
		return zapcore.InfoLevel
	case logging.SeverityWarn:
		return zapcore.WarnLevel
	case logging.SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func severityName(sev logging.Severity) string {
	switch sev {
	case logging.SeverityDebug:
		return "debug"
	case logging.SeverityInfo:
		return "info"
	case logging.SeverityWarn:
		return "warn"
	case logging.SeverityError:
		return "error"
	default:
		return "unknown"
	}
}
