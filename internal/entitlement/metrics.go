package entitlement

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "keygate-entitlement"

// Metrics holds the entitlement-specific OpenTelemetry instruments. All
// recording methods are safe on a nil receiver, so services constructed
// without metrics (tests, tooling) skip instrumentation entirely.
type Metrics struct {
	registrations  metric.Int64Counter
	authAttempts   metric.Int64Counter
	hwidResets     metric.Int64Counter
	timeExtensions metric.Int64Counter
	keyCollisions  metric.Int64Counter
}

// NewMetrics creates the entitlement instruments on the global meter
// provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	var err error
	m.registrations, err = meter.Int64Counter(
		"entitlement_registrations_total",
		metric.WithDescription("Total key registrations, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registrations counter: %w", err)
	}

	m.authAttempts, err = meter.Int64Counter(
		"entitlement_auth_attempts_total",
		metric.WithDescription("Total authentication attempts, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth attempts counter: %w", err)
	}

	m.hwidResets, err = meter.Int64Counter(
		"entitlement_hwid_resets_total",
		metric.WithDescription("Total HWID resets, by caller kind and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hwid resets counter: %w", err)
	}

	m.timeExtensions, err = meter.Int64Counter(
		"entitlement_time_extensions_total",
		metric.WithDescription("Total administrative time extensions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create time extensions counter: %w", err)
	}

	m.keyCollisions, err = meter.Int64Counter(
		"entitlement_key_collisions_total",
		metric.WithDescription("Generated keys rejected for colliding with a stored key"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create key collisions counter: %w", err)
	}

	return m, nil
}

// RecordRegistration counts one registration attempt by outcome.
func (m *Metrics) RecordRegistration(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordAuthAttempt counts one authentication attempt by outcome.
func (m *Metrics) RecordAuthAttempt(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordHWIDReset counts one HWID reset by caller kind and outcome.
func (m *Metrics) RecordHWIDReset(ctx context.Context, caller, result string) {
	if m == nil {
		return
	}
	m.hwidResets.Add(ctx, 1, metric.WithAttributes(
		attribute.String("caller", caller),
		attribute.String("result", result),
	))
}

// RecordTimeExtension counts one administrative time extension.
func (m *Metrics) RecordTimeExtension(ctx context.Context) {
	if m == nil {
		return
	}
	m.timeExtensions.Add(ctx, 1)
}

// RecordKeyCollision counts one generated key rejected as a duplicate.
func (m *Metrics) RecordKeyCollision(ctx context.Context) {
	if m == nil {
		return
	}
	m.keyCollisions.Add(ctx, 1)
}
