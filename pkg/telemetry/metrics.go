// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Session lifecycle event names recorded by RecordSessionEvent.
const (
	SessionCreated = "created"
	SessionCleared = "cleared"
	SessionExpired = "expired"
)

// Metrics holds the gateway's metric instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	turns            metric.Int64Counter
	turnDuration     metric.Float64Histogram
	upstreamCalls    metric.Int64Counter
	upstreamDuration metric.Float64Histogram
	cacheHits        metric.Int64Counter
	sessionEvents    metric.Int64Counter
}

func newMetrics(meter metric.Meter) *Metrics {
	turns, _ := meter.Int64Counter(
		"ussd_gateway_turns", // The exporter adds the _total suffix automatically
		metric.WithDescription("Total number of USSD turns handled"),
	)

	turnDuration, _ := meter.Float64Histogram(
		"ussd_gateway_turn_duration",
		metric.WithDescription("Duration of USSD turn handling in seconds"),
		metric.WithUnit("s"),
	)

	upstreamCalls, _ := meter.Int64Counter(
		"ussd_gateway_upstream_requests",
		metric.WithDescription("Total number of core banking requests"),
	)

	upstreamDuration, _ := meter.Float64Histogram(
		"ussd_gateway_upstream_request_duration",
		metric.WithDescription("Duration of core banking requests in seconds"),
		metric.WithUnit("s"),
	)

	cacheHits, _ := meter.Int64Counter(
		"ussd_gateway_upstream_cache_hits",
		metric.WithDescription("Total number of core banking responses served from the session cache"),
	)

	sessionEvents, _ := meter.Int64Counter(
		"ussd_gateway_session_events",
		metric.WithDescription("Total number of session lifecycle events"),
	)

	return &Metrics{
		turns:            turns,
		turnDuration:     turnDuration,
		upstreamCalls:    upstreamCalls,
		upstreamDuration: upstreamDuration,
		cacheHits:        cacheHits,
		sessionEvents:    sessionEvents,
	}
}

// RecordTurn counts one handled turn and its duration. action is the
// frame action emitted to the aggregator, "con" or "end".
func (m *Metrics) RecordTurn(ctx context.Context, action string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("action", action))
	m.turns.Add(ctx, 1, attrs)
	m.turnDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordUpstreamCall counts one core banking exchange and its duration.
func (m *Metrics) RecordUpstreamCall(ctx context.Context, service string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.upstreamCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("outcome", outcome),
	))
	m.upstreamDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("service", service),
	))
}

// RecordCacheHit counts a core banking response served from the session
// slot cache instead of the wire.
func (m *Metrics) RecordCacheHit(ctx context.Context, service string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("service", service)))
}

// RecordSessionEvent counts a session lifecycle event, one of
// SessionCreated, SessionCleared, or SessionExpired.
func (m *Metrics) RecordSessionEvent(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.sessionEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}
