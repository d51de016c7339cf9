package client

import (
	"fmt"
	"log/slog"
	"time"
)

// progressLogger logs transfer progress at most once per second, and
// always on completion.
type progressLogger struct {
	logger    *slog.Logger
	startTime time.Time
	lastLog   time.Time
}

func (pl *progressLogger) update(transferred, total int64) {
	done := total > 0 && transferred == total
	if !done && time.Since(pl.lastLog) < time.Second {
		return
	}
	pl.lastLog = time.Now()

	msg := "downloading"
	if done {
		msg = "download complete"
	}

	elapsed := time.Since(pl.startTime)
	attrs := []any{
		"transferred", transferred,
		"total", total,
		"elapsed", elapsed.Round(time.Millisecond),
	}
	if total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(transferred)/float64(total)*100))
	}
	if elapsed > 0 {
		attrs = append(attrs, "kbps", fmt.Sprintf("%.1f", float64(transferred)/elapsed.Seconds()/1024))
	}

	pl.logger.Info(msg, attrs...)
}
