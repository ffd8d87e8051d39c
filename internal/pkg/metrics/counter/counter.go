package counter

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/MarekWeber/RevRescue/internal/pkg/cache"
)

const (
	sessionsStartedKey   = "cancelflow:counters:started"
	sessionsSavedKey     = "cancelflow:counters:saved"
	sessionsCancelledKey = "cancelflow:counters:cancelled"
)

// FunnelTotals holds the cancel-flow outcome counts for one account. The
// counters live in Redis hashes keyed by account id; they are approximate
// operational metrics, not billing data, so a lost increment on a Redis
// outage is acceptable.
type FunnelTotals struct {
	Started   int64 `json:"started"`
	Saved     int64 `json:"saved"`
	Cancelled int64 `json:"cancelled"`
}

// SaveRate returns the share of started sessions that ended saved.
func (t FunnelTotals) SaveRate() float64 {
	if t.Started == 0 {
		return 0
	}
	return float64(t.Saved) / float64(t.Started)
}

// AddSessionStarted increments the started counter for an account.
func AddSessionStarted(accountID uint) error {
	return incr(sessionsStartedKey, accountID)
}

// AddSessionSaved increments the saved counter for an account.
func AddSessionSaved(accountID uint) error {
	return incr(sessionsSavedKey, accountID)
}

// AddSessionCancelled increments the cancelled counter for an account.
func AddSessionCancelled(accountID uint) error {
	return incr(sessionsCancelledKey, accountID)
}

// GetFunnelTotals reads the current counters for an account.
func GetFunnelTotals(accountID uint) (FunnelTotals, error) {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(accountID), 10)
	client := cache.GetClient()

	var totals FunnelTotals
	for _, entry := range []struct {
		key string
		dst *int64
	}{
		{sessionsStartedKey, &totals.Started},
		{sessionsSavedKey, &totals.Saved},
		{sessionsCancelledKey, &totals.Cancelled},
	} {
		val, err := client.HGet(ctx, entry.key, field).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return totals, err
		}
		*entry.dst = val
	}
	return totals, nil
}

func incr(key string, accountID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(accountID), 10)
	return cache.GetClient().HIncrBy(ctx, key, field, 1).Err()
}
