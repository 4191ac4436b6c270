package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/rxtech-lab/argo-fleet/internal/jobs"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// barListener renders progress events on a terminal bar and forwards the
// terminal event to done.
func barListener(bar *progressbar.ProgressBar, description string, done chan<- jobs.Event) jobs.Listener {
	return func(ev jobs.Event) error {
		switch ev.Type {
		case jobs.EventProgress:
			if ev.Total > 0 && int64(ev.Total) != bar.GetMax64() {
				bar.ChangeMax(ev.Total)
			}

			if best, ok := ev.Details["best_score"]; ok {
				bar.Describe(fmt.Sprintf("%s (best %.4f)", description, best))
			}

			_ = bar.Set(ev.Current)
		default:
			_ = bar.Finish()
			done <- ev
		}

		return nil
	}
}

func newBar(out io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

// runJob runs fn as the only job of a private dispatcher and shows its progress on stderr.
func runJob(ctx context.Context, log *logger.Logger, name string, fn jobs.JobFunc) (any, error) {
	dispatcher := jobs.NewDispatcher(log)
	defer dispatcher.Close()

	done := make(chan jobs.Event, 1)

	if _, err := dispatcher.Subscribe(barListener(newBar(os.Stderr, name), name, done)); err != nil {
		return nil, err
	}

	if _, err := dispatcher.Start(name, fn); err != nil {
		return nil, err
	}

	select {
	case ev := <-done:
		if ev.Type == jobs.EventError {
			return nil, errors.New(errors.ErrCodeJobFailed, ev.Error)
		}

		return ev.Result, nil
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeJobFailed, "job interrupted", ctx.Err())
	}
}
