// Package estimator turns a drink ledger and biometrics into a BAC estimate
// with narrative guidance.
//
// The BAC itself is always computed locally. Guidance comes from a remote
// recommendation oracle when one is configured and answers in time; otherwise
// a locally formatted "BAC 0.04" string is used.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mmynk/saferound/internal/calculator"
	"github.com/mmynk/saferound/internal/ledger"
	"github.com/mmynk/saferound/internal/models"
)

// ErrBiometricsRequired means weight or sex is missing. Callers must collect
// biometrics before asking for an estimate.
var ErrBiometricsRequired = errors.New("weight and sex are required before estimating BAC")

// DefaultGuidanceTimeout bounds the oracle call.
const DefaultGuidanceTimeout = 5 * time.Second

// Oracle supplies human-readable guidance for a BAC value.
type Oracle interface {
	// Recommend returns guidance for bac. reactionMs is the average reaction
	// latency of a completed test, or nil.
	Recommend(ctx context.Context, bac float64, reactionMs *float64) (string, error)
}

// NoOracle is the explicit choice of running without remote guidance.
type NoOracle struct{}

func (NoOracle) Recommend(context.Context, float64, *float64) (string, error) {
	return "", errors.New("no recommendation oracle configured")
}

// LocalOracle answers with the built-in rule-based guidance.
type LocalOracle struct{}

func (LocalOracle) Recommend(_ context.Context, bac float64, reactionMs *float64) (string, error) {
	return calculator.Recommend(bac, reactionMs).Text, nil
}

// Result is one estimate.
type Result struct {
	Reading models.BACReading

	// Guidance is the oracle's text, or the fallback string.
	Guidance string

	// FromOracle reports whether Guidance came from the oracle.
	FromOracle bool

	// StatusText is the local dashboard label for the value.
	StatusText string

	Status         models.BACStatus
	NotifyGuardian bool

	// LedgerVersion is the ledger version the estimate was computed from.
	LedgerVersion uint64
}

// Estimator computes estimates. It holds no per-session state.
type Estimator struct {
	oracle  Oracle
	clock   clockwork.Clock
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithClock overrides the clock used for "now".
func WithClock(c clockwork.Clock) Option {
	return func(e *Estimator) { e.clock = c }
}

// WithTimeout overrides DefaultGuidanceTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Estimator) { e.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Estimator) { e.logger = l }
}

// New creates an Estimator using oracle for guidance.
func New(oracle Oracle, opts ...Option) *Estimator {
	if oracle == nil {
		oracle = NoOracle{}
	}
	e := &Estimator{
		oracle:  oracle,
		clock:   clockwork.NewRealClock(),
		timeout: DefaultGuidanceTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute is the pure part of an estimate: BAC for a mass consumed over elapsed.
func Compute(bio models.UserBiometrics, totalMassGrams float64, elapsed time.Duration) (float64, error) {
	if !bio.Valid() {
		return 0, ErrBiometricsRequired
	}
	return calculator.WidmarkBAC(bio.WeightKg, bio.Sex, totalMassGrams, elapsed)
}

// FallbackGuidance is the text used when the oracle is unavailable.
func FallbackGuidance(bac float64) string {
	return "BAC " + calculator.FormatBAC(bac)
}

// Estimate computes the BAC for the ledger's current state and asks the
// oracle for guidance. reactionMs is the average of a completed reaction test
// or nil. It returns ErrBiometricsRequired without any other work when bio is
// incomplete; oracle failures never surface as errors.
func (e *Estimator) Estimate(ctx context.Context, bio models.UserBiometrics, l *ledger.Ledger, reactionMs *float64) (Result, error) {
	if !bio.Valid() {
		return Result{}, ErrBiometricsRequired
	}

	now := e.clock.Now()
	snap := l.Snapshot()
	bac, err := Compute(bio, snap.TotalMass, snap.Elapsed(now))
	if err != nil {
		return Result{}, fmt.Errorf("failed to compute BAC: %w", err)
	}

	status := calculator.Classify(bac)
	result := Result{
		Reading:        models.BACReading{Value: bac, ComputedAt: now},
		Guidance:       FallbackGuidance(bac),
		StatusText:     calculator.StatusText(bac),
		Status:         status,
		NotifyGuardian: status == models.BACStatusRed,
		LedgerVersion:  snap.Version,
	}

	if snap.Count == 0 {
		return result, nil
	}

	guidance, err := e.guidance(ctx, bac, reactionMs)
	if err != nil {
		e.logger.Warn("Recommendation unavailable, using fallback", "bac", bac, "error", err)
		return result, nil
	}
	result.Guidance = guidance
	result.FromOracle = true
	return result, nil
}

func (e *Estimator) guidance(ctx context.Context, bac float64, reactionMs *float64) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		text, err := e.oracle.Recommend(ctx, bac, reactionMs)
		done <- answer{text, err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			return "", a.err
		}
		if a.text == "" {
			return "", errors.New("empty recommendation")
		}
		return a.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
