package optimize

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/moznion/go-optional"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/backtest"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/telemetry"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const (
	DefaultMaxTrials = 100
	DefaultMinTrades = 5
	// LowTradePenalty is subtracted from the score of a trial with fewer than
	// MinTrades trades. Total return is a fraction, so this always ranks such
	// trials below every trial that traded enough.
	LowTradePenalty = 1000.0
)

// Config describes one search.
type Config struct {
	Strategy string `yaml:"strategy" json:"strategy" validate:"required"`
	Space    Space  `yaml:"space" json:"space" validate:"required"`
	// Fixed parameters are passed to every candidate unchanged.
	Fixed     map[string]any `yaml:"fixed" json:"fixed,omitempty"`
	MaxTrials int            `yaml:"max_trials" json:"max_trials"`
	Seed      uint64         `yaml:"seed" json:"seed"`
	MinTrades int            `yaml:"min_trades" json:"min_trades"`
	// Parallelism bounds concurrent trials. Zero means 1.
	Parallelism int             `yaml:"parallelism" json:"parallelism"`
	Backtest    backtest.Config `yaml:"backtest" json:"backtest"`
}

// Trial is one scored candidate.
type Trial struct {
	// Index is the candidate's position in evaluation order.
	Index  int                 `json:"index"`
	Params map[string]any      `json:"params"`
	Score  float64             `json:"score"`
	Trades int                 `json:"trades"`
	Stats  types.BacktestStats `json:"stats"`
}

// Progress is reported after every trial, skipped ones included.
type Progress struct {
	Done  int
	Total int
	Best  optional.Option[Trial]
}

type ProgressFunc func(Progress)

// Result holds the scored trials best first.
type Result struct {
	Ranked  []Trial `json:"ranked"`
	Skipped int     `json:"skipped"`
	Total   int     `json:"total"`
}

// Best returns the top-ranked trial.
func (r Result) Best() optional.Option[Trial] {
	if len(r.Ranked) == 0 {
		return optional.None[Trial]()
	}

	return optional.Some(r.Ranked[0])
}

// Searcher runs parameter searches. It is safe for concurrent use.
type Searcher struct {
	strategies *strategy.Registry
	log        *logger.Logger
	metrics    *telemetry.Metrics
	evalOpts   []backtest.Option
}

type Option func(*Searcher)

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Searcher) {
		s.metrics = m
	}
}

// WithEvaluatorOptions passes options to every trial's evaluator.
func WithEvaluatorOptions(opts ...backtest.Option) Option {
	return func(s *Searcher) {
		s.evalOpts = append(s.evalOpts, opts...)
	}
}

func NewSearcher(strategies *strategy.Registry, log *logger.Logger, opts ...Option) *Searcher {
	s := &Searcher{strategies: strategies, log: log}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (c Config) withDefaults() Config {
	if c.MaxTrials <= 0 {
		c.MaxTrials = DefaultMaxTrials
	}

	if c.MinTrades <= 0 {
		c.MinTrades = DefaultMinTrades
	}

	if c.Parallelism <= 0 {
		c.Parallelism = 1
	}

	return c
}

// Run evaluates candidates drawn from cfg.Space against candles. Candidates the
// strategy rejects, or that fail to backtest, are skipped and not ranked.
func (s *Searcher) Run(ctx context.Context, cfg Config, candles []types.Candle, onProgress ProgressFunc) (Result, error) {
	cfg = cfg.withDefaults()

	if _, ok := s.strategies.Describe(cfg.Strategy); !ok {
		return Result{}, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s is not registered", cfg.Strategy)
	}

	if len(cfg.Space) == 0 {
		return Result{}, errors.New(errors.ErrCodeInvalidRange, "parameter space is empty")
	}

	if len(candles) == 0 {
		return Result{}, errors.New(errors.ErrCodeInsufficientData, "no candles to search over")
	}

	candidates := Candidates(cfg.Space, cfg.MaxTrials, cfg.Seed)
	total := len(candidates)
	evaluator := backtest.NewEvaluator(cfg.Backtest, s.evalOpts...)

	s.log.Info("Starting parameter search",
		zap.String("strategy", cfg.Strategy),
		zap.Int("candidates", total),
		zap.Int("grid", cfg.Space.GridSize()),
		zap.Int("parallelism", cfg.Parallelism),
	)

	var (
		mu      sync.Mutex
		done    int
		best    optional.Option[Trial]
		results = make([]optional.Option[Trial], total)
	)

	finish := func(i int, trial optional.Option[Trial]) {
		s.metrics.RecordSearchTrial(ctx, trial.IsNone())

		mu.Lock()
		defer mu.Unlock()

		results[i] = trial
		done++

		if trial.IsSome() && (best.IsNone() || better(trial.Unwrap(), best.Unwrap())) {
			best = trial
		}

		if onProgress != nil {
			onProgress(Progress{Done: done, Total: total, Best: best})
		}
	}

	p := pool.New().WithMaxGoroutines(cfg.Parallelism)

	for i, candidate := range candidates {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}

			finish(i, s.trial(evaluator, cfg, i, candidate, candles))
		})
	}

	p.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeBacktestFailed, "parameter search cancelled", err)
	}

	result := Result{Total: total}

	for _, r := range results {
		if r.IsNone() {
			result.Skipped++

			continue
		}

		result.Ranked = append(result.Ranked, r.Unwrap())
	}

	if len(result.Ranked) == 0 {
		return result, errors.Newf(errors.ErrCodeSearchNoCandidates, "all %d candidates of %s were skipped", total, cfg.Strategy)
	}

	sort.SliceStable(result.Ranked, func(a, b int) bool {
		return better(result.Ranked[a], result.Ranked[b])
	})

	s.log.Info("Parameter search finished",
		zap.String("strategy", cfg.Strategy),
		zap.Int("scored", len(result.Ranked)),
		zap.Int("skipped", result.Skipped),
		zap.Float64("best_score", result.Ranked[0].Score),
		zap.Any("best_params", result.Ranked[0].Params),
	)

	return result, nil
}

func (s *Searcher) trial(evaluator *backtest.Evaluator, cfg Config, index int, candidate map[string]any, candles []types.Candle) optional.Option[Trial] {
	params := make(map[string]any, len(cfg.Fixed)+len(candidate))
	for k, v := range cfg.Fixed {
		params[k] = v
	}

	for k, v := range candidate {
		params[k] = v
	}

	strat, err := s.strategies.Create(cfg.Strategy, params)
	if err != nil {
		s.log.Debug("Skipping invalid candidate", zap.Any("params", params), zap.Error(err))

		return optional.None[Trial]()
	}

	result, err := evaluator.Run(strat, params, candles)
	if err != nil {
		s.log.Debug("Skipping candidate that failed to backtest", zap.Any("params", params), zap.Error(err))

		return optional.None[Trial]()
	}

	trades := result.Stats.TradeResult.NumberOfTrades

	score := result.Stats.TotalReturn
	if trades < cfg.MinTrades {
		score -= LowTradePenalty
	}

	return optional.Some(Trial{
		Index:  index,
		Params: params,
		Score:  score,
		Trades: trades,
		Stats:  result.Stats,
	})
}

func better(a, b Trial) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}

	return a.Index < b.Index
}

// Candidates returns every grid point in order when the grid has at most
// maxTrials points, otherwise maxTrials distinct points drawn with a PCG
// generator seeded from seed.
func Candidates(space Space, maxTrials int, seed uint64) []map[string]any {
	names := space.Names()
	grid := space.GridSize()

	if grid == 0 {
		return nil
	}

	if grid <= maxTrials {
		out := make([]map[string]any, 0, grid)
		idx := make([]int, len(names))

		for {
			out = append(out, point(space, names, idx))

			// odometer, last name fastest
			pos := len(names) - 1
			for pos >= 0 {
				idx[pos]++
				if idx[pos] < space[names[pos]].Len() {
					break
				}

				idx[pos] = 0
				pos--
			}

			if pos < 0 {
				return out
			}
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	seen := make(map[string]struct{}, maxTrials)
	out := make([]map[string]any, 0, maxTrials)
	idx := make([]int, len(names))

	for attempts := 0; len(out) < maxTrials && attempts < maxTrials*50; attempts++ {
		var key strings.Builder

		for i, name := range names {
			idx[i] = rng.IntN(space[name].Len())
			fmt.Fprintf(&key, "%d,", idx[i])
		}

		if _, dup := seen[key.String()]; dup {
			continue
		}

		seen[key.String()] = struct{}{}
		out = append(out, point(space, names, idx))
	}

	return out
}

func point(space Space, names []string, idx []int) map[string]any {
	p := make(map[string]any, len(names))
	for i, name := range names {
		p[name] = space[name].values[idx[i]]
	}

	return p
}
