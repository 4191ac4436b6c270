package optimize

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-fleet/internal/backtest"
	"github.com/rxtech-lab/argo-fleet/internal/jobs"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/mocks"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

type SearchTestSuite struct {
	suite.Suite
	searcher *Searcher
	start    time.Time
}

func TestSearchSuite(t *testing.T) {
	suite.Run(t, new(SearchTestSuite))
}

func (suite *SearchTestSuite) SetupTest() {
	suite.searcher = NewSearcher(strategy.NewDefaultRegistry(), logger.NewNop())
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *SearchTestSuite) mustRange(raw ...any) ParamRange {
	r, err := NewParamRange(raw)
	suite.Require().NoError(err)

	return r
}

// A 20-bar triangle wave keeps the 20-bar average flat at the midpoint, so a
// dip buyer with period 20 buys every trough and sells on the way back up.
func (suite *SearchTestSuite) TestPeriodMatchingTheCycleWins() {
	candles := mocks.TriangleWave(suite.start, time.Hour, 400, 20, 90, 110, 0.5)

	result, err := suite.searcher.Run(context.Background(), Config{
		Strategy:    strategy.DipBuyerName,
		Space:       Space{"period": suite.mustRange(10, 30, 5)},
		Parallelism: 3,
		Backtest:    backtest.DefaultConfig(),
	}, candles, nil)
	suite.Require().NoError(err)

	suite.Equal(5, result.Total)
	suite.Zero(result.Skipped)
	suite.Require().Len(result.Ranked, 5)

	best := result.Ranked[0]
	suite.Equal(20, best.Params["period"])
	suite.GreaterOrEqual(best.Trades, DefaultMinTrades)
	suite.Positive(best.Score)

	for i := 1; i < len(result.Ranked); i++ {
		suite.GreaterOrEqual(result.Ranked[i-1].Score, result.Ranked[i].Score)
	}
}

func (suite *SearchTestSuite) TestInvalidCombinationsAreSkipped() {
	gen := mocks.DefaultConfig()
	gen.Count = 1500
	candles := mocks.NewDataGenerator(3).Generate(gen)

	var (
		mu      sync.Mutex
		updates []Progress
	)

	result, err := suite.searcher.Run(context.Background(), Config{
		Strategy: strategy.SMACrossoverName,
		Space: Space{
			"fast_period": suite.mustRange(10, 30, 10),
			"slow_period": suite.mustRange(10, 30, 10),
		},
		Parallelism: 4,
	}, candles, func(p Progress) {
		mu.Lock()
		defer mu.Unlock()

		updates = append(updates, p)
	})
	suite.Require().NoError(err)

	suite.Equal(9, result.Total)
	suite.Equal(6, result.Skipped)
	suite.Len(result.Ranked, 3)

	for _, trial := range result.Ranked {
		suite.Less(trial.Params["fast_period"].(int), trial.Params["slow_period"].(int))
	}

	suite.Require().Len(updates, 9)

	for i, p := range updates {
		suite.Equal(i+1, p.Done)
		suite.Equal(9, p.Total)
	}

	last := updates[len(updates)-1]
	suite.Require().True(last.Best.IsSome())
	suite.Equal(result.Ranked[0].Params, last.Best.Unwrap().Params)
}

func (suite *SearchTestSuite) TestFewTradesArePenalized() {
	candles := mocks.TriangleWave(suite.start, time.Hour, 60, 20, 90, 110, 0.5)

	result, err := suite.searcher.Run(context.Background(), Config{
		Strategy: strategy.DipBuyerName,
		Space:    Space{"period": Enumerate(20)},
	}, candles, nil)
	suite.Require().NoError(err)
	suite.Require().Len(result.Ranked, 1)

	trial := result.Ranked[0]
	suite.Less(trial.Trades, DefaultMinTrades)
	suite.InDelta(trial.Stats.TotalReturn-LowTradePenalty, trial.Score, 1e-9)
}

func (suite *SearchTestSuite) TestFixedParamsAreMerged() {
	candles := mocks.TriangleWave(suite.start, time.Hour, 200, 20, 90, 110, 0.5)

	result, err := suite.searcher.Run(context.Background(), Config{
		Strategy: strategy.DipBuyerName,
		Space:    Space{"period": Enumerate(20)},
		Fixed:    map[string]any{"dip_pct": 0.05},
	}, candles, nil)
	suite.Require().NoError(err)
	suite.Equal(0.05, result.Ranked[0].Params["dip_pct"])
}

func (suite *SearchTestSuite) TestErrors() {
	candles := mocks.TriangleWave(suite.start, time.Hour, 100, 20, 90, 110, 0.5)

	_, err := suite.searcher.Run(context.Background(), Config{Strategy: "missing", Space: Space{"period": Enumerate(1)}}, candles, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyNotFound))

	_, err = suite.searcher.Run(context.Background(), Config{Strategy: strategy.DipBuyerName}, candles, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidRange))

	_, err = suite.searcher.Run(context.Background(), Config{
		Strategy: strategy.DipBuyerName,
		Space:    Space{"period": Enumerate(1, 0)},
	}, candles, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeSearchNoCandidates))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = suite.searcher.Run(ctx, Config{
		Strategy: strategy.DipBuyerName,
		Space:    Space{"period": suite.mustRange(10, 30, 5)},
	}, candles, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestFailed))
}

func (suite *SearchTestSuite) TestJobReportsThroughDispatcher() {
	candles := mocks.TriangleWave(suite.start, time.Hour, 400, 20, 90, 110, 0.5)

	d := jobs.NewDispatcher(logger.NewNop())
	defer d.Close()

	done := make(chan jobs.Event, 1)
	progress := make(chan jobs.Event, 16)

	_, err := d.Subscribe(func(ev jobs.Event) error {
		switch ev.Type {
		case jobs.EventProgress:
			select {
			case progress <- ev:
			default:
			}
		default:
			done <- ev
		}

		return nil
	})
	suite.Require().NoError(err)

	_, err = d.Start(JobName, suite.searcher.Job(Config{
		Strategy: strategy.DipBuyerName,
		Space:    Space{"period": suite.mustRange(10, 30, 5)},
	}, candles))
	suite.Require().NoError(err)

	select {
	case ev := <-done:
		suite.Require().Equal(jobs.EventComplete, ev.Type)

		result, ok := ev.Result.(Result)
		suite.Require().True(ok)
		suite.Equal(20, result.Ranked[0].Params["period"])
	case <-time.After(10 * time.Second):
		suite.FailNow("search job did not complete")
	}

	suite.Require().NotEmpty(progress)

	ev := <-progress
	suite.Equal(5, ev.Total)
	suite.Equal(strategy.DipBuyerName, ev.Details["strategy"])
	suite.Equal(jobs.StateCompleted, d.Status().State)
}

func (suite *SearchTestSuite) TestDefaults() {
	cfg := Config{}.withDefaults()
	suite.Equal(DefaultMaxTrials, cfg.MaxTrials)
	suite.Equal(DefaultMinTrades, cfg.MinTrades)
	suite.Equal(1, cfg.Parallelism)
	suite.Equal(types.Timeframe(""), cfg.Backtest.Timeframe)
}
