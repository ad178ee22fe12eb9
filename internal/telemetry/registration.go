package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfitz/oauthreg/auth/registration"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ericfitz/oauthreg/auth/registration"

// Lookup outcomes recorded on spans and metrics
const (
	OutcomeFound      = "found"
	OutcomeNotFound   = "not_found"
	OutcomeMalformed  = "malformed"
	OutcomeStoreError = "error"
)

const outcomeAttributeKey = "outcome"

// TracedRepository records a span, a lookup counter and a latency histogram
// around every registration lookup.
type TracedRepository struct {
	inner    registration.Repository
	tracer   trace.Tracer
	lookups  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewTracedRepository wraps inner with tracing and metrics
func NewTracedRepository(inner registration.Repository, tp trace.TracerProvider, mp metric.MeterProvider) (*TracedRepository, error) {
	meter := mp.Meter(instrumentationName)

	lookups, err := meter.Int64Counter(
		"oauthreg.registration.lookups",
		metric.WithDescription("Client registration lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"oauthreg.registration.lookup.duration",
		metric.WithDescription("Client registration lookup latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup histogram: %w", err)
	}

	return &TracedRepository{
		inner:    inner,
		tracer:   tp.Tracer(instrumentationName),
		lookups:  lookups,
		duration: duration,
	}, nil
}

// FindByRegistrationID implements registration.Repository
func (r *TracedRepository) FindByRegistrationID(ctx context.Context, registrationID string) (*registration.ClientRegistration, error) {
	ctx, span := r.tracer.Start(ctx, "registration.FindByRegistrationID",
		trace.WithAttributes(attribute.String("oauth2.registration_id", registrationID)),
	)
	defer span.End()

	start := time.Now()
	reg, err := r.inner.FindByRegistrationID(ctx, registrationID)
	outcome := lookupOutcome(err)

	attrs := metric.WithAttributes(attribute.String(outcomeAttributeKey, outcome))
	r.lookups.Add(ctx, 1, attrs)
	r.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	span.SetAttributes(attribute.String("oauth2.lookup.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	return reg, nil
}

func lookupOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeFound
	case errors.Is(err, registration.ErrProviderNotFound):
		return OutcomeNotFound
	case errors.Is(err, registration.ErrMalformedConfiguration):
		return OutcomeMalformed
	default:
		return OutcomeStoreError
	}
}
