package util

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// ProgressFunc adds completed items to a progress report. It is safe for concurrent use.
// Non-positive values are ignored.
type ProgressFunc func(completed int)

type ProgressConfig struct {
	// Message names the work in every progress line.
	Message string
	// Total is the number of items that make up 100%.
	Total int
	// Steps is the number of lines logged on the way to Total, the last one at Total.
	Steps int
	// Quiet logs the current progress on the next item if no line was logged for this long.
	Quiet time.Duration
}

// DefaultProgressConfig logs every 10% and after a minute without a line.
func DefaultProgressConfig(message string, total int) ProgressConfig {
	return ProgressConfig{
		Message: message,
		Total:   total,
		Steps:   10,
		Quiet:   time.Minute,
	}
}

// LogProgress returns a function reporting progress towards config.Total at Info level.
func LogProgress(log zerolog.Logger, config ProgressConfig) ProgressFunc {
	start := time.Now()
	steps := int64(config.Steps)
	if steps < 1 {
		steps = 1
	}
	total := int64(config.Total)
	stride := total / steps
	if stride < 1 {
		stride = 1
	}

	var completed atomic.Int64
	var mu sync.Mutex
	var step int64
	last := start

	report := func(current int64) {
		elapsed := time.Since(start)
		e := log.Info().
			Str("task", config.Message).
			Int64("completed", current).
			Int64("total", total).
			Dur("elapsed", elapsed.Round(time.Millisecond))
		if total > 0 {
			percent := float64(current) / float64(total) * 100
			e = e.Float64("percent", percent)
			if current < total && percent > 0 {
				e = e.Dur("eta", time.Duration(float64(elapsed)/percent*(100-percent)).Round(time.Second))
			}
		}
		e.Msg("progress")
	}

	return func(n int) {
		if n <= 0 {
			return
		}
		current := completed.Add(int64(n))
		reached := current / stride
		if total > 0 && current >= total {
			reached = steps
		}

		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if reached > step || (config.Quiet > 0 && now.Sub(last) > config.Quiet) {
			if reached > step {
				step = reached
			}
			last = now
			report(current)
		}
	}
}
