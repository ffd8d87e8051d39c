package sweeper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/MarekWeber/RevRescue/internal/pkg/env"
	"github.com/MarekWeber/RevRescue/internal/pkg/ratelimit"
	"github.com/MarekWeber/RevRescue/internal/pkg/recovery"
	"github.com/MarekWeber/RevRescue/internal/pkg/risk"
	"github.com/gofiber/fiber/v2/log"
)

// Exporter writes the daily ledger export to external storage.
type Exporter interface {
	ExportDaily(ctx context.Context) error
}

// Manager runs the periodic background work: expiry materialization, the
// rate-limited risk recompute and the daily ledger export.
type Manager struct {
	recovery *recovery.Service
	risk     *risk.Service
	limiter  *ratelimit.Limiter
	exporter Exporter

	expiryTicker    *time.Ticker
	recomputeTicker *time.Ticker
	exportTicker    *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global sweeper manager (singleton).
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{stopCh: make(chan struct{})}
	})
	return globalManager
}

// Configure wires the services the workers run against. exporter may be nil
// when no export bucket is configured.
func (m *Manager) Configure(recoverySvc *recovery.Service, riskSvc *risk.Service, limiter *ratelimit.Limiter, exporter Exporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovery = recoverySvc
	m.risk = riskSvc
	m.limiter = limiter
	m.exporter = exporter
}

// Start starts the background workers.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	if m.recovery == nil || m.risk == nil {
		log.Error("[Sweeper] Start called before Configure, refusing to run")
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Sweeper] Starting background workers")

	m.expiryTicker = time.NewTicker(envMinutes("SWEEP_EXPIRY_INTERVAL_MIN", 5))
	m.wg.Add(1)
	go m.expiryWorker()

	m.recomputeTicker = time.NewTicker(envMinutes("SWEEP_RECOMPUTE_INTERVAL_MIN", 60))
	m.wg.Add(1)
	go m.recomputeWorker()

	if m.exporter != nil {
		m.exportTicker = time.NewTicker(envMinutes("SWEEP_EXPORT_INTERVAL_MIN", 24*60))
		m.wg.Add(1)
		go m.exportWorker()
	}

	log.Info("[Sweeper] Started successfully")
}

// Stop stops the background workers and waits for them to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Sweeper] Stopping background workers...")

	if m.expiryTicker != nil {
		m.expiryTicker.Stop()
	}
	if m.recomputeTicker != nil {
		m.recomputeTicker.Stop()
	}
	if m.exportTicker != nil {
		m.exportTicker.Stop()
	}

	// Start recreates the channel, so only close it here; nilling it would
	// let a worker select on a nil channel and never exit.
	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	log.Info("[Sweeper] Stopped successfully")
}

// IsRunning returns whether the manager is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) expiryWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper] Expiry worker stopping")
			return
		case <-m.expiryTicker.C:
			if _, err := m.recovery.ExpireSweep(context.Background()); err != nil {
				log.Errorf("[Sweeper] Expiry sweep error: %v", err)
			}
		}
	}
}

func (m *Manager) recomputeWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper] Recompute worker stopping")
			return
		case <-m.recomputeTicker.C:
			if err := m.RunRecomputeOnce(context.Background()); err != nil {
				log.Errorf("[Sweeper] Recompute error: %v", err)
			}
		}
	}
}

func (m *Manager) exportWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper] Export worker stopping")
			return
		case <-m.exportTicker.C:
			if err := m.exporter.ExportDaily(context.Background()); err != nil {
				log.Errorf("[Sweeper] Ledger export error: %v", err)
			}
		}
	}
}

// RunRecomputeOnce runs one batch recompute through the shared rate limiter.
// The scheduled run and the admin API draw from the same budget, so an
// operator hammering the endpoint also starves the cron, never the reverse.
func (m *Manager) RunRecomputeOnce(ctx context.Context) error {
	if m.limiter != nil {
		ok, retryAfter, err := m.limiter.Allow(ctx)
		if err != nil {
			return err
		}
		if !ok {
			log.Infof("[Sweeper] Recompute budget spent, next window in %s", retryAfter.Round(time.Second))
			return nil
		}
	}

	result, err := m.risk.ScoreAtRiskAccounts(ctx)
	if err != nil {
		return err
	}
	log.Infof("[Sweeper] Recompute finished: %d processed, %d ok, %d failed",
		result.Processed, result.Success, result.Errors)
	return nil
}

func envMinutes(key string, fallback int) time.Duration {
	if raw := env.GetEnv(key, ""); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return time.Duration(v) * time.Minute
		}
	}
	return time.Duration(fallback) * time.Minute
}
