package remote

import (
	"context"
	"log/slog"
)

// CallEvent records metadata about a single remote call.
type CallEvent struct {
	Method    string
	Path      string
	Status    int
	Attempts  int
	LatencyMs int64
	Success   bool
	ErrorCode string
}

// Observer receives events about remote calls for logging and metrics.
type Observer interface {
	OnCallComplete(event CallEvent)
}

type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnCallComplete(event CallEvent) {
	level := slog.LevelInfo
	status := "ok"
	if !event.Success {
		level = slog.LevelWarn
		status = "err:" + event.ErrorCode
	}
	o.logger.Log(context.Background(), level, "remote_call",
		"method", event.Method,
		"path", event.Path,
		"http_status", event.Status,
		"attempts", event.Attempts,
		"latency_ms", event.LatencyMs,
		"status", status,
	)
}

// NoopObserver discards all events. Useful for tests.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(CallEvent) {}
