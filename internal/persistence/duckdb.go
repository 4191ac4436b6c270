package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// DuckDBStore persists fleet state in a DuckDB database file (or ":memory:").
type DuckDBStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

var _ Store = (*DuckDBStore)(nil)

// NewDuckDBStore opens (and if needed creates) the database at path.
func NewDuckDBStore(path string, log *logger.Logger) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		log.Error("Failed to open database", zap.String("path", path), zap.Error(err))

		return nil, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to open database", err)
	}

	if err := db.Ping(); err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		db.Close()

		return nil, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to connect to database", err)
	}

	store := &DuckDBStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *DuckDBStore) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS strategy_configs (
			tenant_id VARCHAR NOT NULL,
			config_id VARCHAR NOT NULL,
			payload VARCHAR NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (tenant_id, config_id)
		)`,
		`CREATE TABLE IF NOT EXISTS risk_profiles (
			tenant_id VARCHAR PRIMARY KEY,
			daily_loss_limit DOUBLE,
			max_trade_notional DOUBLE,
			max_open_positions INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id VARCHAR PRIMARY KEY,
			tenant_id VARCHAR NOT NULL,
			config_id VARCHAR NOT NULL,
			symbol VARCHAR NOT NULL,
			side VARCHAR NOT NULL,
			action VARCHAR NOT NULL,
			order_id VARCHAR,
			price DOUBLE NOT NULL,
			amount DOUBLE NOT NULL,
			realized_pnl VARCHAR NOT NULL,
			reason VARCHAR,
			dry_run BOOLEAN NOT NULL,
			at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS position_shadows (
			tenant_id VARCHAR NOT NULL,
			config_id VARCHAR NOT NULL,
			position_start_time TIMESTAMP,
			active_order_id VARCHAR,
			PRIMARY KEY (tenant_id, config_id)
		)`,
		`CREATE TABLE IF NOT EXISTS open_orders (
			order_id VARCHAR PRIMARY KEY,
			tenant_id VARCHAR NOT NULL,
			config_id VARCHAR NOT NULL,
			symbol VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entitlements (
			tenant_id VARCHAR PRIMARY KEY,
			active BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS exchange_credentials (
			tenant_id VARCHAR NOT NULL,
			exchange VARCHAR NOT NULL,
			api_key VARCHAR NOT NULL,
			api_secret VARCHAR NOT NULL,
			testnet BOOLEAN NOT NULL,
			PRIMARY KEY (tenant_id, exchange)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to create tables", err)
		}
	}

	return nil
}

func (s *DuckDBStore) GetStrategyConfig(ctx context.Context, tenantID, configID string) (types.StrategyConfig, error) {
	key := types.NewWorkerKey(tenantID, configID)

	var payload string

	err := s.sq.Select("payload").
		From("strategy_configs").
		Where(squirrel.Eq{"tenant_id": key.TenantID, "config_id": key.ConfigID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&payload)
	if err == sql.ErrNoRows {
		return types.StrategyConfig{}, errors.Newf(errors.ErrCodeDataNotFound, "strategy config %s not found", key)
	}

	if err != nil {
		return types.StrategyConfig{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query strategy config", err)
	}

	var cfg types.StrategyConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return types.StrategyConfig{}, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to decode strategy config", err)
	}

	return cfg, nil
}

func (s *DuckDBStore) SaveStrategyConfig(ctx context.Context, tenantID, configID string, cfg types.StrategyConfig) error {
	key := types.NewWorkerKey(tenantID, configID)

	payload, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to encode strategy config", err)
	}

	_, err = s.sq.Insert("strategy_configs").
		Options("OR REPLACE").
		Columns("tenant_id", "config_id", "payload", "updated_at").
		Values(key.TenantID, key.ConfigID, string(payload), time.Now().UTC()).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to save strategy config", err)
	}

	return nil
}

func (s *DuckDBStore) GetRiskProfile(ctx context.Context, tenantID string) (types.RiskProfile, error) {
	var (
		dailyLoss   sql.NullFloat64
		maxNotional sql.NullFloat64
		maxOpen     sql.NullInt64
	)

	err := s.sq.Select("daily_loss_limit", "max_trade_notional", "max_open_positions").
		From("risk_profiles").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&dailyLoss, &maxNotional, &maxOpen)
	if err == sql.ErrNoRows {
		return types.RiskProfile{}, nil
	}

	if err != nil {
		return types.RiskProfile{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query risk profile", err)
	}

	profile := types.RiskProfile{}
	if dailyLoss.Valid {
		profile.DailyLossLimit = optional.Some(dailyLoss.Float64)
	}

	if maxNotional.Valid {
		profile.MaxTradeNotional = optional.Some(maxNotional.Float64)
	}

	if maxOpen.Valid {
		profile.MaxOpenPositions = optional.Some(int(maxOpen.Int64))
	}

	return profile, nil
}

func (s *DuckDBStore) SaveRiskProfile(ctx context.Context, tenantID string, profile types.RiskProfile) error {
	_, err := s.sq.Insert("risk_profiles").
		Options("OR REPLACE").
		Columns("tenant_id", "daily_loss_limit", "max_trade_notional", "max_open_positions").
		Values(tenantID, nullable(profile.DailyLossLimit), nullable(profile.MaxTradeNotional), nullable(profile.MaxOpenPositions)).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to save risk profile", err)
	}

	return nil
}

func (s *DuckDBStore) AppendTrade(ctx context.Context, record types.TradeRecord) error {
	_, err := s.sq.Insert("trades").
		Columns("id", "tenant_id", "config_id", "symbol", "side", "action", "order_id",
			"price", "amount", "realized_pnl", "reason", "dry_run", "at").
		Values(record.ID, record.TenantID, record.ConfigID, record.Symbol, string(record.Side), string(record.Action),
			record.OrderID, record.Price, record.Amount, record.RealizedPnL.String(), record.Reason, record.DryRun,
			record.At.UTC()).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to append trade", err)
	}

	return nil
}

func (s *DuckDBStore) ListTrades(ctx context.Context, key types.WorkerKey) ([]types.TradeRecord, error) {
	rows, err := s.sq.Select("id", "tenant_id", "config_id", "symbol", "side", "action", "order_id",
		"price", "amount", "realized_pnl", "reason", "dry_run", "at").
		From("trades").
		Where(squirrel.Eq{"tenant_id": key.TenantID, "config_id": key.ConfigID}).
		OrderBy("at ASC", "id ASC").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.TradeRecord

	for rows.Next() {
		var (
			record  types.TradeRecord
			side    string
			action  string
			orderID sql.NullString
			pnl     string
			reason  sql.NullString
		)

		if err := rows.Scan(&record.ID, &record.TenantID, &record.ConfigID, &record.Symbol, &side, &action,
			&orderID, &record.Price, &record.Amount, &pnl, &reason, &record.DryRun, &record.At); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trade", err)
		}

		record.Side = types.PositionSide(side)
		record.Action = types.TradeAction(action)
		record.OrderID = orderID.String
		record.Reason = reason.String

		record.RealizedPnL, err = decimal.NewFromString(pnl)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to decode realized pnl", err)
		}

		trades = append(trades, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate trades", err)
	}

	return trades, nil
}

func (s *DuckDBStore) DailyRealizedPnL(ctx context.Context, tenantID string, day time.Time) (decimal.Decimal, error) {
	start, end := dayBounds(day)

	rows, err := s.sq.Select("realized_pnl").
		From("trades").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where(squirrel.GtOrEq{"at": start}).
		Where(squirrel.Lt{"at": end}).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query daily pnl", err)
	}
	defer rows.Close()

	total := decimal.Zero

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan pnl", err)
		}

		value, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to decode pnl", err)
		}

		total = total.Add(value)
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate pnl", err)
	}

	return total, nil
}

func (s *DuckDBStore) CountOpenPositions(ctx context.Context, tenantID string) (int, error) {
	var count int

	err := s.sq.Select("COUNT(*)").
		From("position_shadows").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where(squirrel.NotEq{"position_start_time": nil}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count open positions", err)
	}

	return count, nil
}

func (s *DuckDBStore) GetPositionShadow(ctx context.Context, key types.WorkerKey) (types.PositionShadow, error) {
	var (
		startTime sql.NullTime
		orderID   sql.NullString
	)

	err := s.sq.Select("position_start_time", "active_order_id").
		From("position_shadows").
		Where(squirrel.Eq{"tenant_id": key.TenantID, "config_id": key.ConfigID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&startTime, &orderID)
	if err == sql.ErrNoRows {
		return types.PositionShadow{}, nil
	}

	if err != nil {
		return types.PositionShadow{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query position shadow", err)
	}

	shadow := types.PositionShadow{}
	if startTime.Valid {
		shadow.PositionStartTime = optional.Some(startTime.Time.UTC())
	}

	if orderID.Valid {
		shadow.ActiveOrderID = optional.Some(orderID.String)
	}

	return shadow, nil
}

func (s *DuckDBStore) SavePositionShadow(ctx context.Context, key types.WorkerKey, shadow types.PositionShadow) error {
	var startTime any
	if shadow.PositionStartTime.IsSome() {
		startTime = shadow.PositionStartTime.Unwrap().UTC()
	}

	_, err := s.sq.Insert("position_shadows").
		Options("OR REPLACE").
		Columns("tenant_id", "config_id", "position_start_time", "active_order_id").
		Values(key.TenantID, key.ConfigID, startTime, nullable(shadow.ActiveOrderID)).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to save position shadow", err)
	}

	return nil
}

func (s *DuckDBStore) RegisterOpenOrder(ctx context.Context, key types.WorkerKey, symbol, orderID string) error {
	_, err := s.sq.Insert("open_orders").
		Options("OR REPLACE").
		Columns("order_id", "tenant_id", "config_id", "symbol", "created_at").
		Values(orderID, key.TenantID, key.ConfigID, symbol, time.Now().UTC()).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to register open order", err)
	}

	return nil
}

func (s *DuckDBStore) RemoveOpenOrder(ctx context.Context, key types.WorkerKey, orderID string) error {
	_, err := s.sq.Delete("open_orders").
		Where(squirrel.Eq{"order_id": orderID, "tenant_id": key.TenantID}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to remove open order", err)
	}

	return nil
}

func (s *DuckDBStore) ListOwnedOrderIDs(ctx context.Context, tenantID, symbol string) ([]string, error) {
	rows, err := s.sq.Select("order_id").
		From("open_orders").
		Where(squirrel.Eq{"tenant_id": tenantID, "symbol": symbol}).
		OrderBy("order_id ASC").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query open orders", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan open order", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate open orders", err)
	}

	return ids, nil
}

func (s *DuckDBStore) HasTradingEntitlement(ctx context.Context, tenantID string) (bool, error) {
	var active bool

	err := s.sq.Select("active").
		From("entitlements").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&active)
	if err == sql.ErrNoRows {
		return true, nil
	}

	if err != nil {
		return false, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query entitlement", err)
	}

	return active, nil
}

func (s *DuckDBStore) SetTradingEntitlement(ctx context.Context, tenantID string, active bool) error {
	_, err := s.sq.Insert("entitlements").
		Options("OR REPLACE").
		Columns("tenant_id", "active").
		Values(tenantID, active).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to save entitlement", err)
	}

	return nil
}

func (s *DuckDBStore) GetExchangeCredentials(ctx context.Context, tenantID, exchange string) (types.Credentials, error) {
	var creds types.Credentials

	err := s.sq.Select("api_key", "api_secret", "testnet").
		From("exchange_credentials").
		Where(squirrel.Eq{"tenant_id": tenantID, "exchange": exchange}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&creds.APIKey, &creds.APISecret, &creds.Testnet)
	if err == sql.ErrNoRows {
		return types.Credentials{}, errors.Newf(errors.ErrCodeCredentialsMissing, "no %s credentials for tenant %s", exchange, tenantID)
	}

	if err != nil {
		return types.Credentials{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query credentials", err)
	}

	return creds, nil
}

func (s *DuckDBStore) SaveExchangeCredentials(ctx context.Context, tenantID, exchange string, creds types.Credentials) error {
	_, err := s.sq.Insert("exchange_credentials").
		Options("OR REPLACE").
		Columns("tenant_id", "exchange", "api_key", "api_secret", "testnet").
		Values(tenantID, exchange, creds.APIKey, creds.APISecret, creds.Testnet).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to save credentials", err)
	}

	return nil
}

// Close closes the database connection.
func (s *DuckDBStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func nullable[T any](o optional.Option[T]) any {
	if o.IsNone() {
		return nil
	}

	return o.Unwrap()
}
