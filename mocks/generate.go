package mocks

//go:generate mockgen -destination=./mock_exchange.go -package=mocks github.com/rxtech-lab/argo-fleet/internal/exchange Exchange
//go:generate mockgen -destination=./mock_store.go -package=mocks github.com/rxtech-lab/argo-fleet/internal/persistence Store
//go:generate mockgen -destination=./mock_notifier.go -package=mocks github.com/rxtech-lab/argo-fleet/internal/notifier Notifier
//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/rxtech-lab/argo-fleet/internal/strategy Strategy
//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/argo-fleet/pkg/marketdata/provider Provider
