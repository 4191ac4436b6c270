package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

type credentialKey struct {
	tenantID string
	exchange string
}

type ownedOrder struct {
	key    types.WorkerKey
	symbol string
}

// MemoryStore keeps everything in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	configs      map[types.WorkerKey]types.StrategyConfig
	riskProfiles map[string]types.RiskProfile
	trades       []types.TradeRecord
	shadows      map[types.WorkerKey]types.PositionShadow
	openOrders   map[string]ownedOrder
	entitlements map[string]bool
	credentials  map[credentialKey]types.Credentials
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:           sync.RWMutex{},
		configs:      make(map[types.WorkerKey]types.StrategyConfig),
		riskProfiles: make(map[string]types.RiskProfile),
		trades:       nil,
		shadows:      make(map[types.WorkerKey]types.PositionShadow),
		openOrders:   make(map[string]ownedOrder),
		entitlements: make(map[string]bool),
		credentials:  make(map[credentialKey]types.Credentials),
	}
}

func (m *MemoryStore) GetStrategyConfig(_ context.Context, tenantID, configID string) (types.StrategyConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[types.NewWorkerKey(tenantID, configID)]
	if !ok {
		return types.StrategyConfig{}, errors.Newf(errors.ErrCodeDataNotFound, "strategy config %s/%s not found", tenantID, configID)
	}

	return cfg, nil
}

func (m *MemoryStore) SaveStrategyConfig(_ context.Context, tenantID, configID string, cfg types.StrategyConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configs[types.NewWorkerKey(tenantID, configID)] = cfg

	return nil
}

func (m *MemoryStore) GetRiskProfile(_ context.Context, tenantID string) (types.RiskProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.riskProfiles[tenantID], nil
}

func (m *MemoryStore) SaveRiskProfile(_ context.Context, tenantID string, profile types.RiskProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.riskProfiles[tenantID] = profile

	return nil
}

func (m *MemoryStore) AppendTrade(_ context.Context, record types.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trades = append(m.trades, record)

	return nil
}

func (m *MemoryStore) ListTrades(_ context.Context, key types.WorkerKey) ([]types.TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.TradeRecord

	for _, t := range m.trades {
		if t.TenantID == key.TenantID && t.ConfigID == key.ConfigID {
			out = append(out, t)
		}
	}

	return out, nil
}

func (m *MemoryStore) DailyRealizedPnL(_ context.Context, tenantID string, day time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, end := dayBounds(day)
	total := decimal.Zero

	for _, t := range m.trades {
		if t.TenantID != tenantID || t.At.Before(start) || !t.At.Before(end) {
			continue
		}

		total = total.Add(t.RealizedPnL)
	}

	return total, nil
}

func (m *MemoryStore) CountOpenPositions(_ context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0

	for key, shadow := range m.shadows {
		if key.TenantID == tenantID && shadow.PositionStartTime.IsSome() {
			count++
		}
	}

	return count, nil
}

func (m *MemoryStore) GetPositionShadow(_ context.Context, key types.WorkerKey) (types.PositionShadow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.shadows[key], nil
}

func (m *MemoryStore) SavePositionShadow(_ context.Context, key types.WorkerKey, shadow types.PositionShadow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shadows[key] = shadow

	return nil
}

func (m *MemoryStore) RegisterOpenOrder(_ context.Context, key types.WorkerKey, symbol, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openOrders[orderID] = ownedOrder{key: key, symbol: symbol}

	return nil
}

func (m *MemoryStore) RemoveOpenOrder(_ context.Context, _ types.WorkerKey, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.openOrders, orderID)

	return nil
}

func (m *MemoryStore) ListOwnedOrderIDs(_ context.Context, tenantID, symbol string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string

	for id, o := range m.openOrders {
		if o.key.TenantID == tenantID && o.symbol == symbol {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids, nil
}

func (m *MemoryStore) HasTradingEntitlement(_ context.Context, tenantID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active, ok := m.entitlements[tenantID]
	if !ok {
		return true, nil
	}

	return active, nil
}

func (m *MemoryStore) SetTradingEntitlement(_ context.Context, tenantID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entitlements[tenantID] = active

	return nil
}

func (m *MemoryStore) GetExchangeCredentials(_ context.Context, tenantID, exchange string) (types.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	creds, ok := m.credentials[credentialKey{tenantID: tenantID, exchange: exchange}]
	if !ok {
		return types.Credentials{}, errors.Newf(errors.ErrCodeCredentialsMissing, "no %s credentials for tenant %s", exchange, tenantID)
	}

	return creds, nil
}

func (m *MemoryStore) SaveExchangeCredentials(_ context.Context, tenantID, exchange string, creds types.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credentials[credentialKey{tenantID: tenantID, exchange: exchange}] = creds

	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
