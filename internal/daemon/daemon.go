package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"cardforge/internal/cardgen"
	"cardforge/internal/config"
	"cardforge/internal/jobstore"
	"cardforge/internal/logging"
)

// Daemon ties the card pipeline, job store, and HTTP API into one lifecycle
// and enforces single-instance execution with a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *jobstore.Store
	generator *cardgen.Generator
	apiSrv    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	APIBind      string
	JobsDBPath   string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobstore.Store, generator *cardgen.Generator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || generator == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, generator, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "cardforged.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		generator: generator,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.apiSrv = newAPIServer(cfg, generator, store, logger)
	return d, nil
}

// Start acquires the daemon lock, clears stale jobs, and starts the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cardforge daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if reset, err := d.store.ResetStale(d.ctx); err != nil {
		d.logger.Warn("reset stale jobs failed", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("stale jobs failed on startup", logging.Int64("count", reset))
	}

	if err := d.apiSrv.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("cardforge daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind))
	return nil
}

// Stop shuts down the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiSrv.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("cardforge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime information for the health and status surfaces.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		APIBind:      d.cfg.Paths.APIBind,
		JobsDBPath:   d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
