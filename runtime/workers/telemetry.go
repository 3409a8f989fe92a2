package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-notify/observability"
)

// ConnCounter decouples telemetry from the concrete registry.
type ConnCounter interface {
	Len() int
}

// Telemetry logs engine counters and process usage at a fixed interval.
// Best effort: a metric that cannot be read is skipped, never fatal.
type Telemetry struct {
	log      *slog.Logger
	stats    *observability.NotifyStats
	conns    ConnCounter
	interval time.Duration
}

func NewTelemetry(stats *observability.NotifyStats, conns ConnCounter,
	interval time.Duration, log *slog.Logger) *Telemetry {
	return &Telemetry{log: log, stats: stats, conns: conns, interval: interval}
}

func (t *Telemetry) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		t.log.Warn("Process metrics unavailable", "error", err)
		proc = nil
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			t.report(proc)
		}
	}
}

func (t *Telemetry) report(proc *process.Process) {
	snap := t.stats.Snapshot()
	attrs := []any{
		"dispatched", snap.EventsDispatched,
		"enqueued", snap.EventsEnqueued,
		"dropped_connections", snap.ConnectionsDropped,
		"sink_errors", snap.SinkErrors,
		"catchup_reads", snap.CatchupReads,
		"live_connections", t.conns.Len(),
	}

	if proc != nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			attrs = append(attrs, "cpu_percent", cpu)
		}
		if ram, err := proc.MemoryPercent(); err == nil {
			attrs = append(attrs, "ram_percent", ram)
		}
	}

	t.log.Info("Engine telemetry", attrs...)
}
