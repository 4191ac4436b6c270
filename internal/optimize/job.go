package optimize

import (
	"context"

	"github.com/rxtech-lab/argo-fleet/internal/jobs"
	"github.com/rxtech-lab/argo-fleet/internal/types"
)

// JobName is the dispatcher job name of a parameter search.
const JobName = "parameter_search"

// Job adapts a search to the dispatcher. Every trial is reported as a progress
// event whose details carry the best score and parameters so far.
func (s *Searcher) Job(cfg Config, candles []types.Candle) jobs.JobFunc {
	return func(ctx context.Context, report jobs.ReportFunc) (any, error) {
		result, err := s.Run(ctx, cfg, candles, func(p Progress) {
			details := map[string]any{"strategy": cfg.Strategy}
			if p.Best.IsSome() {
				best := p.Best.Unwrap()
				details["best_score"] = best.Score
				details["best_params"] = best.Params
			}

			report(p.Done, p.Total, details)
		})
		if err != nil {
			return nil, err
		}

		return result, nil
	}
}
