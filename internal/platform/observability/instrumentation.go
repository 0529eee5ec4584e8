package observability

import (
	"context"
	"log/slog"
	"time"
)

// Stage labels for the phases of a read cycle.
const (
	StageScan     = "scan"
	StageAnalyze  = "analyze"
	StageChipRead = "chip_read"
)

// Enabled reports whether observability has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan records a lightweight span lifecycle around an operation.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	return ctx, openSpan(ctx, []slog.Attr{
		slog.String("component", component),
		slog.String("operation", operation),
	})
}

// StageSpan opens a span for one stage of a read cycle. The session id is
// attached so interleaved cycles can be told apart in the log.
func StageSpan(ctx context.Context, sessionID, stage string) func(error) {
	return openSpan(ctx, []slog.Attr{
		slog.String("session", sessionID),
		slog.String("stage", stage),
	})
}

func openSpan(ctx context.Context, attrs []slog.Attr) func(error) {
	logger, _ := currentLogger()
	if logger == nil {
		return func(error) {}
	}

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "obs span start", attrs...)

	return func(err error) {
		level := slog.LevelDebug
		closing := append(attrs[:len(attrs):len(attrs)],
			slog.Duration("duration", time.Since(start)))
		if err != nil {
			level = slog.LevelError
			closing = append(closing, slog.Any("error", err))
		}
		logger.LogAttrs(ctx, level, "obs span end", closing...)
	}
}

// CycleStats summarizes one finished read cycle for the metric hooks.
type CycleStats struct {
	SessionID   string
	Outcome     string
	Degradation string
	FileGroups  int
	Duration    time.Duration
}

// RecordCycle emits the per-cycle datapoints the coordinator tracks.
func RecordCycle(ctx context.Context, stats CycleStats) {
	RecordMetric(ctx, "read.cycle.duration_ms",
		float64(stats.Duration.Milliseconds()), map[string]string{
			"session":     stats.SessionID,
			"outcome":     stats.Outcome,
			"degradation": stats.Degradation,
		})
	RecordMetric(ctx, "read.cycle.file_groups",
		float64(stats.FileGroups), map[string]string{
			"session": stats.SessionID,
		})
}

// RecordMetric emits a best-effort metric datapoint via the configured logger.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	logger, _ := currentLogger()
	if logger == nil {
		return
	}

	attrs := make([]slog.Attr, 0, len(labels)+2)
	attrs = append(attrs,
		slog.String("metric", name),
		slog.Float64("value", value),
	)
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
}
