package exchange

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/commission_fee"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/persistence"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// LiveFactory builds an authenticated exchange client.
type LiveFactory func(kind Kind, creds types.Credentials) (Exchange, error)

type cacheKey struct {
	tenantID string
	exchange string
	dryRun   bool
}

// ClientCache builds exchange clients once per (tenant, exchange, dry-run) and hands
// the same instance back on later calls. Live clients require stored credentials;
// a tenant without credentials cannot trade live.
type ClientCache struct {
	mu           sync.Mutex
	clients      map[cacheKey]Exchange
	store        persistence.Store
	logger       *logger.Logger
	paperSource  CandleSource
	paperBalance float64
	paperFee     commission_fee.CommissionFee
	live         LiveFactory
	testnet      bool
	ratePerSec   float64
	burst        int
}

type CacheOption func(*ClientCache)

// WithPaperSource sets the market data used by paper accounts.
func WithPaperSource(source CandleSource) CacheOption {
	return func(c *ClientCache) {
		c.paperSource = source
	}
}

func WithPaperStartingBalance(balance float64) CacheOption {
	return func(c *ClientCache) {
		c.paperBalance = balance
	}
}

// WithCachePaperFee sets the fee model paper accounts charge on fills.
func WithCachePaperFee(fee commission_fee.CommissionFee) CacheOption {
	return func(c *ClientCache) {
		c.paperFee = fee
	}
}

// WithTestnet routes every live client to the exchange testnet regardless of
// the stored credentials.
func WithTestnet(testnet bool) CacheOption {
	return func(c *ClientCache) {
		c.testnet = testnet
	}
}

func WithLiveFactory(factory LiveFactory) CacheOption {
	return func(c *ClientCache) {
		c.live = factory
	}
}

// WithRateLimit applies a token bucket to every client handed out. Zero disables it.
func WithRateLimit(perSecond float64, burst int) CacheOption {
	return func(c *ClientCache) {
		c.ratePerSec = perSecond
		c.burst = burst
	}
}

func NewClientCache(store persistence.Store, log *logger.Logger, opts ...CacheOption) *ClientCache {
	c := &ClientCache{
		clients:      make(map[cacheKey]Exchange),
		store:        store,
		logger:       log,
		paperBalance: DefaultPaperBalance,
		live:         defaultLiveFactory,
		burst:        1,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.paperSource == nil {
		c.paperSource = NewBinanceCandleSource()
	}

	return c
}

// Get returns the cached client for the key, building it on first use.
func (c *ClientCache) Get(ctx context.Context, tenantID string, exchangeName string, dryRun bool) (Exchange, error) {
	name := strings.ToLower(exchangeName)
	key := cacheKey{tenantID: tenantID, exchange: name, dryRun: dryRun}

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	info, err := GetKindInfo(name)
	if err != nil {
		return nil, err
	}

	var client Exchange

	if dryRun || !info.RequiresCredentials {
		paperOpts := []PaperOption{WithPaperBalance(c.paperBalance)}
		if c.paperFee != nil {
			paperOpts = append(paperOpts, WithPaperFee(c.paperFee))
		}

		client = NewPaperExchange(c.paperSource, paperOpts...)
	} else {
		creds, err := c.store.GetExchangeCredentials(ctx, tenantID, name)
		if err != nil {
			return nil, err
		}

		if !creds.IsComplete() {
			return nil, errors.Newf(errors.ErrCodeCredentialsMissing, "incomplete %s credentials for tenant %s", name, tenantID)
		}

		if c.testnet {
			creds.Testnet = true
		}

		client, err = c.live(Kind(name), creds)
		if err != nil {
			return nil, err
		}
	}

	if c.ratePerSec > 0 {
		client = NewRateLimitedExchange(client, c.ratePerSec, c.burst)
	}

	c.clients[key] = client
	c.logger.Debug("Built exchange client",
		zap.String("tenant", tenantID),
		zap.String("exchange", name),
		zap.Bool("dry_run", dryRun),
	)

	return client, nil
}

// Invalidate drops cached clients for a tenant and exchange, for example after credentials rotate.
func (c *ClientCache) Invalidate(tenantID string, exchangeName string) {
	name := strings.ToLower(exchangeName)

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.clients {
		if key.tenantID == tenantID && key.exchange == name {
			delete(c.clients, key)
		}
	}
}

// Len returns the number of cached clients.
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.clients)
}

func defaultLiveFactory(kind Kind, creds types.Credentials) (Exchange, error) {
	switch kind {
	case KindBinanceFutures:
		return NewBinanceExchange(creds), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedExchange, "no live client for exchange %s", kind)
	}
}
