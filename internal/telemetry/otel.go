// Package telemetry configures OpenTelemetry metrics for the fleet.
package telemetry

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	apimetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/rxtech-lab/argo-fleet/internal/config"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const defaultServiceName = "argo-fleet"

// Init configures the global meter provider. Without an endpoint a no-op provider is installed.
func Init(ctx context.Context, cfg config.TelemetryConfig) (apimetric.MeterProvider, func(context.Context) error, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	service := strings.TrimSpace(cfg.ServiceName)

	if service == "" {
		service = defaultServiceName
	}

	if endpoint == "" {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)

		return provider, func(context.Context) error { return nil }, nil
	}

	host, insecure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, nil, err
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(host)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "create metric exporter", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(service)))
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "create resource", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(provider)

	return provider, provider.Shutdown, nil
}

func parseEndpoint(raw string) (string, bool, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeInvalidConfiguration, "parse otlp endpoint", err)
	}

	host := parsed.Host
	if host == "" {
		host = raw
	}

	return host, parsed.Scheme != "https", nil
}
