// Package registry owns the running workers of the process, at most one per WorkerKey.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/persistence"
	"github.com/rxtech-lab/argo-fleet/internal/telemetry"
	"github.com/rxtech-lab/argo-fleet/internal/trading/engine"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const (
	DefaultStopTimeout = 5 * time.Second
	// maxParallelStops bounds the goroutines used when one call stops many workers.
	maxParallelStops = 8
)

// Factory builds the engine for a worker slot.
type Factory func(ctx context.Context, key types.WorkerKey, config types.StrategyConfig) (engine.TradingEngine, error)

// Selector narrows Stop and Status to a subset of a tenant's workers. With
// neither field set it matches all of them.
type Selector struct {
	ConfigID optional.Option[string]
	Symbol   optional.Option[string]
}

// All matches every worker of the tenant.
func All() Selector {
	return Selector{ConfigID: optional.None[string](), Symbol: optional.None[string]()}
}

// ByConfig matches the worker with the given config id.
func ByConfig(configID string) Selector {
	return Selector{ConfigID: optional.Some(configID), Symbol: optional.None[string]()}
}

// BySymbol matches every worker trading symbol.
func BySymbol(symbol string) Selector {
	return Selector{ConfigID: optional.None[string](), Symbol: optional.Some(symbol)}
}

func (s Selector) matches(key types.WorkerKey, config types.StrategyConfig) bool {
	if s.ConfigID.IsSome() && s.ConfigID.Unwrap() != key.ConfigID {
		return false
	}

	if s.Symbol.IsSome() && s.Symbol.Unwrap() != config.Symbol {
		return false
	}

	return true
}

type handle struct {
	engine engine.TradingEngine
	config types.StrategyConfig
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry is the process-wide map of workers. Every mutation and every
// listing runs under mu; snapshots are read from the workers without locking
// them.
type Registry struct {
	mu          sync.Mutex
	workers     map[types.WorkerKey]*handle
	factory     Factory
	store       persistence.Store
	log         *logger.Logger
	stopTimeout time.Duration
	baseCtx     context.Context
	onStop      engine.OnStopCallback
	metrics     *telemetry.Metrics
}

type Option func(*Registry)

// WithStopTimeout bounds how long Stop waits for a loop to exit.
func WithStopTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.stopTimeout = timeout
	}
}

// WithBaseContext sets the parent context of every worker. Cancelling it stops the fleet.
func WithBaseContext(ctx context.Context) Option {
	return func(r *Registry) {
		r.baseCtx = ctx
	}
}

// WithOnStop registers a hook called whenever a worker loop exits.
func WithOnStop(fn engine.OnStopCallback) Option {
	return func(r *Registry) {
		r.onStop = fn
	}
}

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

func NewRegistry(factory Factory, store persistence.Store, log *logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		workers:     make(map[types.WorkerKey]*handle),
		factory:     factory,
		store:       store,
		log:         log,
		stopTimeout: DefaultStopTimeout,
		baseCtx:     context.Background(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start spawns a worker for (tenant, configID). An existing worker on the same
// key is stopped first. The config is persisted so Restart and Reconfigure can
// find it later.
func (r *Registry) Start(ctx context.Context, tenantID string, config types.StrategyConfig, configID string) (types.WorkerKey, error) {
	key := types.NewWorkerKey(tenantID, configID)

	if tenantID == "" {
		return key, errors.New(errors.ErrCodeInvalidParameter, "tenant id is required")
	}

	if err := config.Validate(); err != nil {
		return key, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.workers[key]; ok {
		r.log.Info("Replacing running worker", zap.String("worker", key.String()))
		r.stopHandle(key, existing)
		delete(r.workers, key)
	}

	if err := r.store.SaveStrategyConfig(ctx, key.TenantID, key.ConfigID, config); err != nil {
		return key, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to save strategy config", err)
	}

	eng, err := r.factory(ctx, key, config)
	if err != nil {
		return key, errors.Wrapf(errors.ErrCodeWorkerStartFailed, err, "failed to build worker %s", key)
	}

	runCtx, cancel := context.WithCancel(r.baseCtx)
	h := &handle{engine: eng, config: config, cancel: cancel, done: make(chan struct{})}
	r.workers[key] = h

	go r.run(runCtx, key, h)

	r.log.Info("Worker started",
		zap.String("worker", key.String()),
		zap.String("symbol", config.Symbol),
		zap.String("strategy", config.StrategyName),
	)

	return key, nil
}

func (r *Registry) run(ctx context.Context, key types.WorkerKey, h *handle) {
	defer close(h.done)

	var runErr error

	onStop := engine.OnStopCallback(func(k types.WorkerKey, err error) {
		if r.onStop != nil {
			r.onStop(k, err)
		}
	})

	r.metrics.WorkerStarted(ctx)
	defer r.metrics.WorkerStopped(context.Background())

	var catcher panics.Catcher

	catcher.Try(func() {
		runErr = h.engine.Run(ctx, engine.Callbacks{OnStop: &onStop})
	})

	if recovered := catcher.Recovered(); recovered != nil {
		runErr = recovered.AsError()
	}

	if runErr != nil {
		r.log.Error("Worker exited with error", zap.String("worker", key.String()), zap.Error(runErr))
	}
}

// stopHandle cancels the worker and waits up to the stop timeout.
func (r *Registry) stopHandle(key types.WorkerKey, h *handle) {
	h.cancel()

	timer := time.NewTimer(r.stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		r.log.Warn("Worker did not stop within timeout",
			zap.String("worker", key.String()),
			zap.Duration("timeout", r.stopTimeout),
		)
	}
}

// Stop stops every worker of the tenant matched by sel and returns how many were
// removed. Entries are removed even when a loop outlives the stop timeout.
func (r *Registry) Stop(_ context.Context, tenantID string, sel Selector) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make(map[types.WorkerKey]*handle)

	for key, h := range r.workers {
		if key.TenantID == tenantID && sel.matches(key, h.config) {
			matched[key] = h
		}
	}

	if len(matched) == 0 {
		return 0, errors.Newf(errors.ErrCodeWorkerNotFound, "no worker matched for tenant %s", tenantID)
	}

	r.stopAll(matched)

	for key := range matched {
		delete(r.workers, key)
	}

	return len(matched), nil
}

// stopAll stops handles in parallel on a bounded pool. Must be called with mu held.
func (r *Registry) stopAll(handles map[types.WorkerKey]*handle) {
	if len(handles) == 1 {
		for key, h := range handles {
			r.stopHandle(key, h)
		}

		return
	}

	p := pool.New().WithMaxGoroutines(maxParallelStops)

	for key, h := range handles {
		p.Go(func() {
			r.stopHandle(key, h)
		})
	}

	p.Wait()
}

// Restart stops the worker on key and starts it again with its current config,
// falling back to the persisted one when the worker is not registered.
func (r *Registry) Restart(ctx context.Context, key types.WorkerKey) error {
	config, err := r.configFor(ctx, key)
	if err != nil {
		return err
	}

	_, err = r.Start(ctx, key.TenantID, config, key.ConfigID)

	return err
}

// Reconfigure merges update into the worker's config, persists it and restarts the worker.
func (r *Registry) Reconfigure(ctx context.Context, key types.WorkerKey, update types.StrategyConfigUpdate) (types.StrategyConfig, error) {
	current, err := r.configFor(ctx, key)
	if err != nil {
		return types.StrategyConfig{}, err
	}

	merged := update.Apply(current)
	if err := merged.Validate(); err != nil {
		return current, err
	}

	if _, err := r.Start(ctx, key.TenantID, merged, key.ConfigID); err != nil {
		return current, err
	}

	return merged, nil
}

func (r *Registry) configFor(ctx context.Context, key types.WorkerKey) (types.StrategyConfig, error) {
	r.mu.Lock()
	h, ok := r.workers[key]
	r.mu.Unlock()

	if ok {
		return h.config, nil
	}

	config, err := r.store.GetStrategyConfig(ctx, key.TenantID, key.ConfigID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeDataNotFound) {
			return types.StrategyConfig{}, errors.Newf(errors.ErrCodeWorkerNotFound, "no config for worker %s", key)
		}

		return types.StrategyConfig{}, err
	}

	return config, nil
}

// Status returns a snapshot per matching worker of the tenant, or None when nothing matches.
func (r *Registry) Status(tenantID string, sel Selector) optional.Option[[]engine.RuntimeSnapshot] {
	r.mu.Lock()
	defer r.mu.Unlock()

	var snaps []engine.RuntimeSnapshot

	for key, h := range r.workers {
		if key.TenantID == tenantID && sel.matches(key, h.config) {
			snaps = append(snaps, h.engine.Snapshot())
		}
	}

	if len(snaps) == 0 {
		return optional.None[[]engine.RuntimeSnapshot]()
	}

	sortSnapshots(snaps)

	return optional.Some(snaps)
}

// List returns a consistent snapshot of every registered worker.
func (r *Registry) List() []engine.RuntimeSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps := make([]engine.RuntimeSnapshot, 0, len(r.workers))
	for _, h := range r.workers {
		snaps = append(snaps, h.engine.Snapshot())
	}

	sortSnapshots(snaps)

	return snaps
}

func (r *Registry) Pause(key types.WorkerKey) error {
	return r.withWorker(key, func(h *handle) { h.engine.Pause() })
}

func (r *Registry) Resume(key types.WorkerKey) error {
	return r.withWorker(key, func(h *handle) { h.engine.Resume() })
}

func (r *Registry) withWorker(key types.WorkerKey, fn func(*handle)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.workers[key]
	if !ok {
		return errors.Newf(errors.ErrCodeWorkerNotFound, "worker %s not found", key)
	}

	fn(h)

	return nil
}

// Shutdown stops every worker. ctx bounds the whole call on top of the per-worker timeout.
func (r *Registry) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		defer close(done)

		r.mu.Lock()
		defer r.mu.Unlock()

		r.stopAll(r.workers)
		r.workers = make(map[types.WorkerKey]*handle)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sortSnapshots(snaps []engine.RuntimeSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Key.String() < snaps[j].Key.String()
	})
}
