package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulelimits/pkg/divergence"
	"github.com/macropower/rulelimits/pkg/drift"
	"github.com/macropower/rulelimits/pkg/log"
	"github.com/macropower/rulelimits/pkg/metrics"
	"github.com/macropower/rulelimits/pkg/quota"
	"github.com/macropower/rulelimits/pkg/ruleset"
)

// ErrNoConfiguration is returned by [Service.Limits] before the first
// [Service.SetResult].
var ErrNoConfiguration = quota.ErrNoConfiguration

// UpdateFunc re-applies the configuration after a pass changed filter state.
// It must pass mode through to any nested [Service.CheckAndReconcile] call.
type UpdateFunc func(ctx context.Context, mode CheckMode) error

// Service holds the latest configuration result and serializes
// reconciliation passes.
type Service struct {
	tracer   trace.Tracer
	calc     *quota.Calculator
	detector *drift.Detector
	store    *divergence.Store
	metrics  *metrics.Metrics
	result   *ruleset.ConfigurationResult
	diverged atomic.Bool
	resultMu sync.RWMutex
	// passMu is held for a whole pass, including the update callback.
	passMu sync.Mutex
}

// ServiceOpt configures a [Service].
type ServiceOpt func(*Service)

// WithMetrics records passes and quota usage.
func WithMetrics(m *metrics.Metrics) ServiceOpt {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a [Service].
func NewService(calc *quota.Calculator, detector *drift.Detector, store *divergence.Store, opts ...ServiceOpt) *Service {
	s := &Service{
		tracer:   otel.Tracer("reconcile"),
		calc:     calc,
		detector: detector,
		store:    store,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SetResult replaces the configuration result. It is safe to call from an
// [UpdateFunc].
func (s *Service) SetResult(result *ruleset.ConfigurationResult) {
	s.resultMu.Lock()
	s.result = result
	s.resultMu.Unlock()

	s.metrics.ObserveConfiguration()
}

// Result returns the current configuration result, or nil.
func (s *Service) Result() *ruleset.ConfigurationResult {
	s.resultMu.RLock()
	defer s.resultMu.RUnlock()

	return s.result
}

// State returns the current state.
func (s *Service) State() State {
	if s.Result() == nil {
		return StateNoConfiguration
	}
	if s.diverged.Load() {
		return StateDiverged
	}

	return StateConsistent
}

// Limits computes a fresh [quota.Snapshot].
func (s *Service) Limits(ctx context.Context) (quota.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "limits")
	defer span.End()

	result := s.Result()
	if result == nil {
		span.SetStatus(codes.Error, ErrNoConfiguration.Error())
		return quota.Snapshot{}, ErrNoConfiguration
	}

	snap, err := s.calc.Calculate(ctx, result, s.store.Peek(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return quota.Snapshot{}, fmt.Errorf("calculate limits: %w", err)
	}

	s.metrics.ObserveSnapshot(snap)

	return snap, nil
}

// FilterLimitsExceeded reports whether a divergence is on record and the
// engine still runs a different number of static filters than expected.
func (s *Service) FilterLimitsExceeded(ctx context.Context) bool {
	expected := s.store.Peek(ctx)
	if len(expected) == 0 {
		return false
	}

	return len(s.calc.ActuallyEnabledFilters()) != len(expected)
}

// ClearDivergenceWarning empties the divergence record. It waits for any
// running pass to finish.
func (s *Service) ClearDivergenceWarning(ctx context.Context) error {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	err := s.store.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear divergence warning: %w", err)
	}

	s.metrics.ObserveDivergence(0)
	log.WithContext(ctx).InfoContext(ctx, "divergence warning cleared")

	return nil
}

// CheckAndReconcile runs a reconciliation pass unless mode is
// [CheckModeSkip], in which case it returns a nil report immediately.
//
// When the pass finds divergence, update is called with [CheckModeSkip]
// before the pass completes. Passes never overlap.
func (s *Service) CheckAndReconcile(ctx context.Context, mode CheckMode, update UpdateFunc) (*drift.Report, error) {
	if mode == CheckModeSkip {
		s.metrics.ObservePass(metrics.OutcomeSkipped, 0)
		return nil, nil //nolint:nilnil // Skipped passes have no report.
	}

	s.passMu.Lock()
	defer s.passMu.Unlock()

	passID := uuid.NewString()

	ctx, span := s.tracer.Start(ctx, "check-and-reconcile", trace.WithAttributes(
		attribute.String("pass_id", passID),
	))
	defer span.End()

	logger := log.WithContext(ctx).With(slog.String("pass_id", passID))
	ctx = log.NewContext(ctx, logger)

	start := time.Now()

	report, err := s.detector.Detect(ctx, func(ctx context.Context) error {
		if update == nil {
			return nil
		}

		return update(ctx, CheckModeSkip)
	})

	outcome := passOutcome(report, err)
	s.metrics.ObservePass(outcome, time.Since(start))
	span.SetAttributes(attribute.String("outcome", outcome))

	if report != nil {
		s.diverged.Store(report.Broken)

		if report.Broken {
			s.metrics.ObserveDivergence(len(report.Expected))
		} else if report.Healed {
			s.metrics.ObserveDivergence(0)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "reconciliation pass failed", slog.Any("err", err))

		return report, fmt.Errorf("check and reconcile: %w", err)
	}

	logger.DebugContext(ctx, "reconciliation pass complete",
		slog.String("outcome", outcome),
		slog.Duration("duration", time.Since(start)),
	)

	return report, nil
}

func passOutcome(report *drift.Report, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeError
	case report.Broken:
		return metrics.OutcomeDiverged
	case report.Healed:
		return metrics.OutcomeHealed
	}

	return metrics.OutcomeConsistent
}
