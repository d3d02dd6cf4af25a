// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires the gateway's OpenTelemetry instruments to a
// Prometheus exporter served on /metrics.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

const instrumentationName = "github.com/sidianbank/ussd-gateway"

// Config controls whether metrics are collected and how the service
// identifies itself in exported metric resources.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
}

// Provider owns the meter provider, the /metrics handler, and the
// gateway's instrument set.
type Provider struct {
	meterProvider metric.MeterProvider
	handler       http.Handler
	metrics       *Metrics
	shutdownFuncs []func(context.Context) error
}

// NewProvider builds a Prometheus-backed provider, or a no-op provider
// when metrics are disabled.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		logger.Infof("Metrics disabled, using no-op telemetry provider")
		mp := noop.NewMeterProvider()
		return &Provider{
			meterProvider: mp,
			metrics:       newMetrics(mp.Meter(instrumentationName)),
		}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry resource for service '%s': %w", cfg.ServiceName, err)
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	return &Provider{
		meterProvider: mp,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		metrics:       newMetrics(mp.Meter(instrumentationName)),
		shutdownFuncs: []func(context.Context) error{mp.Shutdown},
	}, nil
}

// Handler returns the Prometheus scrape handler. It is nil when metrics
// are disabled.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Metrics returns the gateway instrument set.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Shutdown flushes and stops the underlying meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}
