package debug

// Debug goroutine metrics logger. Started only when debug_mode is set.
// Emits goroutine count (runtime metrics) and stack usage at a fixed interval.

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/dustin/go-humanize"
)

// StartGoroutineLogger launches a ticker that logs goroutine count and stack
// memory until ctx is done.
func StartGoroutineLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			metrics.Read(samples)
			goroutines := samples[0].Value.Uint64()
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			logger.Info("goroutine-stacks",
				slog.Uint64("goroutines", goroutines),
				slog.String("stack_inuse", humanize.IBytes(ms.StackInuse)),
				slog.String("stack_sys", humanize.IBytes(ms.StackSys)),
				slog.String("heap_alloc", humanize.IBytes(ms.HeapAlloc)),
			)
		}
	}()
}
