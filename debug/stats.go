// Package debug logs runtime statistics while the annotator runs with debug
// logging enabled.
package debug

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"
)

const defaultInterval = 5 * time.Second

// StartStatsLogger logs goroutine, heap and resident memory figures every
// interval until ctx is done. Decoding large images shows up as heap growth
// here. Failure to read the resident set size is logged once.
func StartStatsLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		return
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		var rssErrLogged bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			rss, err := residentSetSize()
			if err != nil && !rssErrLogged {
				logger.Warn("stats: resident set size unavailable", slog.String("err", err.Error()))
				rssErrLogged = true
			}
			logStats(logger, rss)
		}
	}()
}

func logStats(logger *slog.Logger, rss uint64) {
	samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
	metrics.Read(samples)
	var goroutines uint64
	if samples[0].Value.Kind() == metrics.KindUint64 {
		goroutines = samples[0].Value.Uint64()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	logger.Debug("runtime stats",
		slog.Uint64("goroutines", goroutines),
		slog.Uint64("heap_alloc", ms.HeapAlloc),
		slog.Uint64("heap_inuse", ms.HeapInuse),
		slog.Uint64("heap_sys", ms.HeapSys),
		slog.Uint64("stack_inuse", ms.StackInuse),
		slog.Uint64("num_gc", uint64(ms.NumGC)),
		slog.Uint64("rss", rss),
	)
}
