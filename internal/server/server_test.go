package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-fleet/internal/jobs"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/optimize"
	"github.com/rxtech-lab/argo-fleet/internal/persistence"
	"github.com/rxtech-lab/argo-fleet/internal/registry"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/trading/engine"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/mocks"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
	"github.com/rxtech-lab/argo-fleet/pkg/marketdata/writer"
)

// idleEngine runs until cancelled.
type idleEngine struct {
	key    types.WorkerKey
	config types.StrategyConfig
	paused atomic.Bool
}

func (e *idleEngine) Key() types.WorkerKey { return e.key }

func (e *idleEngine) Run(ctx context.Context, _ engine.Callbacks) error {
	<-ctx.Done()

	return nil
}

func (e *idleEngine) Pause()  { e.paused.Store(true) }
func (e *idleEngine) Resume() { e.paused.Store(false) }

func (e *idleEngine) Snapshot() engine.RuntimeSnapshot {
	return engine.RuntimeSnapshot{Key: e.key, Config: e.config, Paused: e.paused.Load(), Alive: true}
}

// snapshotView is the part of a snapshot the handlers are checked against.
type snapshotView struct {
	Key struct {
		TenantID string `json:"tenant_id"`
		ConfigID string `json:"config_id"`
	} `json:"key"`
	Paused bool `json:"paused"`
}

type ServerTestSuite struct {
	suite.Suite
	reg        *registry.Registry
	dispatcher *jobs.Dispatcher
	http       *httptest.Server
	dataDir    string
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (suite *ServerTestSuite) SetupTest() {
	log := logger.NewNop()
	factory := func(_ context.Context, key types.WorkerKey, config types.StrategyConfig) (engine.TradingEngine, error) {
		return &idleEngine{key: key, config: config}, nil
	}

	suite.reg = registry.NewRegistry(factory, persistence.NewMemoryStore(), log)
	suite.dispatcher = jobs.NewDispatcher(log)
	suite.dataDir = suite.T().TempDir()

	srv := New(suite.reg, suite.dispatcher, optimize.NewSearcher(strategy.NewDefaultRegistry(), log), log,
		WithDataDir(suite.dataDir), WithSearchParallelism(2))
	suite.http = httptest.NewServer(srv.Handler())
}

func (suite *ServerTestSuite) TearDownTest() {
	suite.http.Close()
	suite.dispatcher.Close()
	suite.Require().NoError(suite.reg.Shutdown(context.Background()))
}

func (suite *ServerTestSuite) do(method, path string, body any) (*http.Response, []byte) {
	var reader *bytes.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)

		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, suite.http.URL+path, reader)
	suite.Require().NoError(err)

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	suite.Require().NoError(err)

	return resp, buf.Bytes()
}

func workerConfig(symbol string) types.StrategyConfig {
	return types.StrategyConfig{
		Symbol:       symbol,
		Timeframe:    types.Timeframe1h,
		TradeSize:    100,
		StrategyName: strategy.DipBuyerName,
		DryRun:       true,
		Exchange:     "paper",
		Leverage:     1,
	}
}

func (suite *ServerTestSuite) TestWorkerLifecycle() {
	resp, body := suite.do(http.MethodPost, "/v1/tenants/t1/workers", startWorkerRequest{Config: workerConfig("BTC/USDT")})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))

	var key workerKeyResponse
	suite.Require().NoError(json.Unmarshal(body, &key))
	suite.Equal("t1", key.TenantID)
	suite.Equal(types.DefaultConfigID, key.ConfigID)

	resp, _ = suite.do(http.MethodPost, "/v1/tenants/t1/workers", startWorkerRequest{ConfigID: "eth", Config: workerConfig("ETH/USDT")})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp, body = suite.do(http.MethodGet, "/v1/tenants/t1/workers", nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)

	var snaps []snapshotView
	suite.Require().NoError(json.Unmarshal(body, &snaps))
	suite.Len(snaps, 2)

	resp, _ = suite.do(http.MethodPost, "/v1/tenants/t1/workers/eth/pause", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)

	resp, body = suite.do(http.MethodGet, "/v1/tenants/t1/workers?config_id=eth", nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	suite.Require().NoError(json.Unmarshal(body, &snaps))
	suite.Require().Len(snaps, 1)
	suite.True(snaps[0].Paused)

	resp, _ = suite.do(http.MethodPost, "/v1/tenants/t1/workers/eth/resume", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)

	resp, body = suite.do(http.MethodDelete, "/v1/tenants/t1/workers?symbol=BTC/USDT", nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	suite.JSONEq(`{"stopped":1}`, string(body))

	resp, body = suite.do(http.MethodGet, "/v1/workers", nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	suite.Require().NoError(json.Unmarshal(body, &snaps))
	suite.Len(snaps, 1)

	resp, _ = suite.do(http.MethodGet, "/v1/tenants/t1/workers?symbol=BTC/USDT", nil)
	suite.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _ = suite.do(http.MethodDelete, "/v1/tenants/t2/workers", nil)
	suite.Equal(http.StatusNotFound, resp.StatusCode)
}

func (suite *ServerTestSuite) TestReconfigureAndRestart() {
	resp, _ := suite.do(http.MethodPost, "/v1/tenants/t1/workers", startWorkerRequest{Config: workerConfig("BTC/USDT")})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp, body := suite.do(http.MethodPatch, "/v1/tenants/t1/workers/default", map[string]any{"leverage": 5})
	suite.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	var merged types.StrategyConfig
	suite.Require().NoError(json.Unmarshal(body, &merged))
	suite.Equal(5, merged.Leverage)
	suite.Equal("BTC/USDT", merged.Symbol)

	resp, body = suite.do(http.MethodPatch, "/v1/tenants/t1/workers/default", map[string]any{"leverage": 500})
	suite.Equal(http.StatusBadRequest, resp.StatusCode, string(body))

	resp, _ = suite.do(http.MethodPost, "/v1/tenants/t1/workers/default/restart", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = suite.do(http.MethodPost, "/v1/tenants/t1/workers/missing/pause", nil)
	suite.Equal(http.StatusNotFound, resp.StatusCode)
}

func (suite *ServerTestSuite) TestInvalidWorkerRequests() {
	cfg := workerConfig("BTC/USDT")
	cfg.TradeSize = 0

	resp, body := suite.do(http.MethodPost, "/v1/tenants/t1/workers", startWorkerRequest{Config: cfg})
	suite.Equal(http.StatusBadRequest, resp.StatusCode)

	var apiErr errorResponse
	suite.Require().NoError(json.Unmarshal(body, &apiErr))
	suite.Equal(int(errors.ErrCodeInvalidConfiguration), apiErr.Code)
	suite.Equal("validation", apiErr.Category)

	req, err := http.NewRequest(http.MethodPost, suite.http.URL+"/v1/tenants/t1/workers", strings.NewReader(`{"unknown": true}`))
	suite.Require().NoError(err)

	raw, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	raw.Body.Close()
	suite.Equal(http.StatusBadRequest, raw.StatusCode)
}

func (suite *ServerTestSuite) writeWave() string {
	path := filepath.Join(suite.dataDir, "wave.parquet")
	w := writer.NewParquetWriter("WAVE", path)
	suite.Require().NoError(w.Initialize())
	defer w.Close()

	for _, c := range mocks.TriangleWave(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour, 400, 20, 90, 110, 0.5) {
		suite.Require().NoError(w.Write(c))
	}

	_, err := w.Finalize()
	suite.Require().NoError(err)

	return "wave.parquet"
}

func (suite *ServerTestSuite) TestSearchStreamsToCompletion() {
	data := suite.writeWave()

	wsURL := "ws" + strings.TrimPrefix(suite.http.URL, "http") + "/v1/jobs/search/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	suite.Require().NoError(err)
	defer conn.Close()

	resp, body := suite.do(http.MethodPost, "/v1/jobs/search", map[string]any{
		"strategy": strategy.DipBuyerName,
		"space":    map[string]any{"period": []int{10, 30, 5}},
		"data":     data,
	})
	suite.Require().Equal(http.StatusAccepted, resp.StatusCode, string(body))

	var started searchStartedResponse
	suite.Require().NoError(json.Unmarshal(body, &started))
	suite.NotEmpty(started.JobID)

	type streamed struct {
		Type   jobs.EventType `json:"type"`
		Error  string         `json:"error"`
		Result struct {
			Ranked []struct {
				Params map[string]any `json:"params"`
			} `json:"ranked"`
		} `json:"result"`
	}

	suite.Require().NoError(conn.SetReadDeadline(time.Now().Add(15 * time.Second)))

	var last streamed

	for {
		var ev streamed
		suite.Require().NoError(conn.ReadJSON(&ev))

		if ev.Type != jobs.EventProgress {
			last = ev

			break
		}
	}

	suite.Require().Equal(jobs.EventComplete, last.Type, last.Error)
	suite.Require().NotEmpty(last.Result.Ranked)
	suite.InDelta(20, last.Result.Ranked[0].Params["period"], 0)

	resp, body = suite.do(http.MethodGet, "/v1/jobs/search", nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	suite.Contains(string(body), `"state":"completed"`)
}

func (suite *ServerTestSuite) TestSearchBusy() {
	data := suite.writeWave()
	release := make(chan struct{})

	_, err := suite.dispatcher.Start("blocker", func(ctx context.Context, _ jobs.ReportFunc) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}

		return nil, nil
	})
	suite.Require().NoError(err)

	resp, _ := suite.do(http.MethodPost, "/v1/jobs/search", map[string]any{
		"strategy": strategy.DipBuyerName,
		"space":    map[string]any{"period": []int{10, 30, 5}},
		"data":     data,
	})
	suite.Equal(http.StatusConflict, resp.StatusCode)

	close(release)
}

func (suite *ServerTestSuite) TestSearchValidation() {
	resp, _ := suite.do(http.MethodPost, "/v1/jobs/search", map[string]any{
		"strategy": strategy.DipBuyerName,
		"space":    map[string]any{"period": []int{10, 30, 5}},
		"data":     "../../etc/passwd",
	})
	suite.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _ = suite.do(http.MethodPost, "/v1/jobs/search", map[string]any{
		"strategy": strategy.DipBuyerName,
		"space":    map[string]any{"period": []int{30, 10}},
		"data":     "x.parquet",
	})
	suite.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = suite.do(http.MethodPost, "/v1/jobs/search", map[string]any{"strategy": strategy.DipBuyerName})
	suite.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (suite *ServerTestSuite) TestHealth() {
	resp, body := suite.do(http.MethodGet, "/healthz", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.JSONEq(`{"status":"ok","workers":0}`, string(body))
}

type recordingWriter struct {
	deadlineErr error
	written     []any
	deadline    time.Time
}

func (w *recordingWriter) SetWriteDeadline(t time.Time) error {
	w.deadline = t

	return w.deadlineErr
}

func (w *recordingWriter) WriteJSON(v any) error {
	w.written = append(w.written, v)

	return nil
}

func (suite *ServerTestSuite) TestWriteEventStopsWhenDeadlineFails() {
	ok := &recordingWriter{}
	suite.Require().NoError(writeEvent(ok, jobs.Event{Type: jobs.EventProgress, Current: 1, Total: 2}))
	suite.Len(ok.written, 1)
	suite.False(ok.deadline.IsZero())

	failing := &recordingWriter{deadlineErr: errors.New(errors.ErrCodeCallbackFailed, "connection closed")}
	err := writeEvent(failing, jobs.Event{Type: jobs.EventProgress})
	suite.Error(err)
	suite.Empty(failing.written)
}
