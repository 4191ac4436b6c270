package strategy

import (
	"sort"
	"sync"

	"github.com/rxtech-lab/argo-fleet/internal/version"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
	pkgstrategy "github.com/rxtech-lab/argo-fleet/pkg/strategy"
)

// Factory builds a strategy from a parameter map. It returns ErrCodeInvalidParameter
// for parameter combinations the strategy cannot run with.
type Factory func(params map[string]any) (Strategy, error)

// Descriptor describes a registered strategy.
type Descriptor struct {
	Name        string
	Description string
	// APIVersion is the strategy API version the strategy was written against.
	APIVersion string
	// Params is a zero value of the typed parameter struct, used for the JSON schema.
	Params  any
	Factory Factory
}

// Registry maps strategy names to factories. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:      sync.RWMutex{},
		entries: make(map[string]Descriptor),
	}
}

// NewDefaultRegistry creates a registry with the built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	for _, d := range builtins() {
		// built-ins always target the current API version
		_ = r.Register(d)
	}

	return r
}

// Register adds a strategy. Registering an existing name replaces it.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" || d.Factory == nil {
		return errors.New(errors.ErrCodeStrategyConfigError, "strategy descriptor requires a name and a factory")
	}

	if err := version.CheckStrategyAPI(version.StrategyAPIVersion, d.APIVersion); err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "strategy %s is not compatible", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[d.Name] = d

	return nil
}

// Create instantiates the named strategy.
func (r *Registry) Create(name string, params map[string]any) (Strategy, error) {
	r.mu.RLock()
	d, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s is not registered", name)
	}

	return d.Factory(params)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Describe returns the descriptor of a registered strategy.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.entries[name]

	return d, ok
}

// ParamsSchema returns the JSON schema of the strategy's parameters.
func (r *Registry) ParamsSchema(name string) (string, error) {
	d, ok := r.Describe(name)
	if !ok {
		return "", errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s is not registered", name)
	}

	if d.Params == nil {
		return "{}", nil
	}

	return pkgstrategy.ToJSONSchema(d.Params)
}

func builtins() []Descriptor {
	return []Descriptor{
		{
			Name:        SMACrossoverName,
			Description: "Long when the fast SMA crosses above the slow SMA, short on the opposite cross",
			APIVersion:  version.StrategyAPIVersion,
			Params:      SMACrossoverParams{},
			Factory:     NewSMACrossover,
		},
		{
			Name:        RSIReversionName,
			Description: "Long when RSI is oversold, short when overbought",
			APIVersion:  version.StrategyAPIVersion,
			Params:      RSIReversionParams{},
			Factory:     NewRSIReversion,
		},
		{
			Name:        DipBuyerName,
			Description: "Long-only: buys closes far below the moving average and exits on reversion",
			APIVersion:  version.StrategyAPIVersion,
			Params:      DipBuyerParams{},
			Factory:     NewDipBuyer,
		},
	}
}
