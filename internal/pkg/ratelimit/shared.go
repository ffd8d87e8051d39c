package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/MarekWeber/RevRescue/internal/pkg/cache"
	"github.com/MarekWeber/RevRescue/internal/pkg/env"
)

var (
	recomputeOnce    sync.Once
	recomputeLimiter *Limiter
)

// RecomputeLimiter returns the process-wide limiter for batch risk
// recomputes. The admin API endpoint and the scheduled sweep both draw from
// this one budget, so a manual trigger spends the slot the sweep would have
// used. Default: 2 runs per 10-minute window.
func RecomputeLimiter() *Limiter {
	recomputeOnce.Do(func() {
		limit := int64(2)
		if raw := env.GetEnv("RECOMPUTE_LIMIT_PER_WINDOW", ""); raw != "" {
			if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		window := 10 * time.Minute
		if raw := env.GetEnv("RECOMPUTE_WINDOW_MINUTES", ""); raw != "" {
			if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
				window = time.Duration(parsed) * time.Minute
			}
		}
		recomputeLimiter = NewLimiter(cache.GetClient(), "risk-recompute", limit, window)
	})
	return recomputeLimiter
}
