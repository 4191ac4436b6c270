package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/backtest"
	"github.com/rxtech-lab/argo-fleet/internal/jobs"
	"github.com/rxtech-lab/argo-fleet/internal/optimize"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

type searchRequest struct {
	optimize.Config

	// Data names a parquet or csv file inside the server's data directory.
	Data  string                     `json:"data"`
	Start optional.Option[time.Time] `json:"start"`
	End   optional.Option[time.Time] `json:"end"`
}

type searchStartedResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleStartSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)

		return
	}

	if req.Data == "" {
		s.writeError(w, errors.New(errors.ErrCodeMissingParameter, "data is required"))

		return
	}

	if req.Strategy == "" {
		s.writeError(w, errors.New(errors.ErrCodeMissingParameter, "strategy is required"))

		return
	}

	// only the base name is honoured so requests cannot leave the data directory
	path := filepath.Join(s.dataDir, filepath.Base(req.Data))
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, errors.Wrapf(errors.ErrCodeDataNotFound, err, "data file %s not found", req.Data))

		return
	}

	cfg := req.Config
	if cfg.Parallelism == 0 {
		cfg.Parallelism = s.searchParallelism
	}

	if cfg.MaxTrials == 0 {
		cfg.MaxTrials = s.defaultMaxTrials
	}

	jobID, err := s.dispatcher.Start(optimize.JobName, func(ctx context.Context, report jobs.ReportFunc) (any, error) {
		candles, err := backtest.LoadCandles(ctx, path, req.Start, req.End, s.log)
		if err != nil {
			return nil, err
		}

		return s.searcher.Job(cfg, candles)(ctx, report)
	})
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusAccepted, searchStartedResponse{JobID: jobID})
}

func (s *Server) handleSearchStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Status())
}

// handleSearchStream upgrades to a WebSocket and forwards dispatcher events as
// JSON messages. The connection is closed after a terminal event, when the
// client goes away, or when the client cannot keep up.
func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.Error(err))

		return
	}
	defer conn.Close()

	events := make(chan jobs.Event, streamBuffer)
	gone := make(chan struct{})
	slow := make(chan struct{})

	var slowOnce sync.Once

	id, err := s.dispatcher.Subscribe(func(ev jobs.Event) error {
		select {
		case events <- ev:
			return nil
		case <-gone:
			return errors.New(errors.ErrCodeCallbackFailed, "stream closed")
		default:
			slowOnce.Do(func() { close(slow) })

			return errors.New(errors.ErrCodeCallbackFailed, "stream client is too slow")
		}
	})
	if err != nil {
		s.writeCloseMessage(conn, websocket.CloseTryAgainLater, err.Error())

		return
	}
	defer s.dispatcher.Unsubscribe(id)

	go func() {
		defer close(gone)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if err := writeEvent(conn, ev); err != nil {
				s.log.Debug("WebSocket write failed", zap.Error(err))

				return
			}

			if ev.Type != jobs.EventProgress {
				s.writeCloseMessage(conn, websocket.CloseNormalClosure, string(ev.Type))

				return
			}
		case <-slow:
			s.writeCloseMessage(conn, websocket.ClosePolicyViolation, "client too slow")

			return
		case <-gone:
			return
		}
	}
}

// eventWriter is the part of *websocket.Conn used to push events.
type eventWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
}

func writeEvent(conn eventWriter, ev jobs.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return conn.WriteJSON(ev)
}

func (s *Server) writeCloseMessage(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		s.log.Debug("WebSocket close failed", zap.Error(err))
	}
}
