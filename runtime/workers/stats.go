package workers

import (
	"context"
	"direct-chat/observability"
	"log/slog"
	"time"
)

type ConnectionCounter interface {
	Connections() int
}

type PresenceCounter interface {
	Count() int
}

type ProcessSampler interface {
	Sample() (observability.ProcessStats, error)
}

// StatsWorker periodically logs live connections, online users and
// the resource usage of the process.
type StatsWorker struct {
	connections ConnectionCounter
	presence    PresenceCounter
	sampler     ProcessSampler
	interval    time.Duration
	log         *slog.Logger
}

func NewStatsWorker(connections ConnectionCounter, presence PresenceCounter,
	sampler ProcessSampler, interval time.Duration, log *slog.Logger) *StatsWorker {
	return &StatsWorker{
		connections: connections,
		presence:    presence,
		sampler:     sampler,
		interval:    interval,
		log:         log,
	}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats reporting")
			return nil
		case <-ticker.C:
			w.Report()
		}
	}
}

// Report logs one sample. A failing process probe only drops the process attributes.
func (w *StatsWorker) Report() {
	attrs := []any{
		"connections", w.connections.Connections(),
		"online_users", w.presence.Count(),
	}
	if w.sampler != nil {
		stats, err := w.sampler.Sample()
		if err != nil {
			w.log.Debug("Failed to collect process stats", "error", err)
		} else {
			attrs = append(attrs,
				"pid", stats.PID,
				"status", stats.Status,
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent,
				"uptime", stats.Uptime.Round(time.Second).String(),
			)
		}
	}
	w.log.Info("Server stats", attrs...)
}
