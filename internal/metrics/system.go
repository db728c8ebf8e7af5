package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/sirupsen/logrus"
)

// SystemCollector periodically samples process and host resource usage.
type SystemCollector struct {
	logger   *logrus.Logger
	interval time.Duration

	mu      sync.RWMutex
	lastCPU float64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSystemCollector creates a collector sampling every interval.
func NewSystemCollector(interval time.Duration, logger *logrus.Logger) *SystemCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &SystemCollector{logger: logger, interval: interval}
}

// Start launches the sampling loop.
func (sc *SystemCollector) Start(ctx context.Context) error {
	ctx, sc.cancel = context.WithCancel(ctx)

	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		ticker := time.NewTicker(sc.interval)
		defer ticker.Stop()

		sc.Collect()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sc.Collect()
			}
		}
	}()
	return nil
}

// Stop ends the sampling loop.
func (sc *SystemCollector) Stop() error {
	if sc.cancel != nil {
		sc.cancel()
	}
	sc.wg.Wait()
	return nil
}

// Collect takes one sample and publishes it.
func (sc *SystemCollector) Collect() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("heap_alloc").Set(float64(m.HeapAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	Goroutines.Set(float64(runtime.NumGoroutine()))

	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		sc.logger.WithError(err).Debug("Failed to sample CPU usage")
		return
	}
	CPUUsage.Set(percents[0])

	sc.mu.Lock()
	sc.lastCPU = percents[0]
	sc.mu.Unlock()
}

// LastCPUPercent returns the most recent host CPU sample.
func (sc *SystemCollector) LastCPUPercent() float64 {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastCPU
}
