package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"duochat/observability"
)

// HealthWorker periodically samples the server's own process metrics
// (RSS, CPU) and refreshes the observability snapshot behind the
// liveness endpoint.
type HealthWorker struct {
	log        *slog.Logger
	monitoring *observability.Manager
	interval   time.Duration
}

func NewHealthWorker(log *slog.Logger, monitoring *observability.Manager, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	w.log.Info("Starting health worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.monitoring.Refresh(rss, cpu)
		}
	}
}

// getSelfStats retrieves memory and CPU figures for the given process.
func getSelfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}

	return memInfo.RSS, cpuPercent, nil
}
