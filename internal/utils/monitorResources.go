package utils

import (
	"context"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "utils")

// ResourceUsage is one sample of the process footprint.
type ResourceUsage struct {
	Goroutines  int
	HeapAllocKB float64
	HeapObjects uint64
}

func SampleResources() ResourceUsage {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return ResourceUsage{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocKB: float64(memStats.HeapAlloc) / 1024,
		HeapObjects: memStats.HeapObjects,
	}
}

// MonitorResources logs resource usage periodically until ctx is done.
func MonitorResources(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				usage := SampleResources()
				log.WithFields(logrus.Fields{
					"goroutines":   usage.Goroutines,
					"heap_kb":      usage.HeapAllocKB,
					"heap_objects": usage.HeapObjects,
				}).Debug("Resource monitor")
			}
		}
	}()
}
