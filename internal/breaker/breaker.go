package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"loanservice/internal/apperrors"
	"loanservice/internal/logger"
)

// A Breaker isolates one remote capability. Every gateway operation gets its
// own instance so a slow Book dependency can never block User calls. The
// breaker is the only intentionally shared, concurrently mutated state in
// the service; everything behind the mutex must stay cheap.

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Settings configures a Breaker. Zero values fall back to the defaults the
// original deployment ran with.
type Settings struct {
	// Timeout is the per-call deadline; exceeding it counts as a failure.
	Timeout time.Duration
	// ErrorThresholdPercentage trips CLOSED -> OPEN once the rolling-window
	// failure ratio reaches it.
	ErrorThresholdPercentage int
	// ResetTimeout is the cooldown before OPEN -> HALF_OPEN.
	ResetTimeout time.Duration
	// RollingWindow bounds how long call outcomes stay relevant.
	RollingWindow time.Duration
	// VolumeThreshold is the minimum number of calls in the window before
	// the failure ratio is considered meaningful.
	VolumeThreshold int
}

func (s Settings) withDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Second
	}
	if s.ErrorThresholdPercentage <= 0 {
		s.ErrorThresholdPercentage = 50
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 10 * time.Second
	}
	if s.RollingWindow <= 0 {
		s.RollingWindow = 10 * time.Second
	}
	if s.VolumeThreshold <= 0 {
		s.VolumeThreshold = 5
	}
	return s
}

type Breaker struct {
	name     string
	log      *logger.Logger
	settings Settings

	mu          sync.Mutex
	state       State
	windowStart time.Time
	successes   int
	failures    int
	openedAt    time.Time
	probing     bool

	// nowFn is swapped out in tests to drive the cooldown clock.
	nowFn func() time.Time
}

// New returns a CLOSED breaker named after the dependency operation it
// guards, e.g. "book-service.fetch-book".
func New(name string, settings Settings, log *logger.Logger) *Breaker {
	s := settings.withDefaults()
	return &Breaker{
		name:        name,
		log:         log.With("breaker", name),
		settings:    s,
		state:       StateClosed,
		windowStart: time.Now(),
		nowFn:       time.Now,
	}
}

// Name returns the dependency operation this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State reports the current state. Mostly useful for logging and tests.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op under the breaker's per-call timeout.
//
// When the breaker is OPEN the underlying call is never attempted and the
// caller gets DependencyError{CIRCUIT_OPEN} immediately. A not-found result
// from op is a healthy round-trip and never counts against the dependency.
// Deadline overruns are surfaced as DependencyError{TIMEOUT}, any other
// failure as DependencyError{REMOTE_ERROR}.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.settings.Timeout)
	defer cancel()

	opErr := op(callCtx)
	classified := b.classify(callCtx, opErr)
	b.record(probe, classified)
	return classified
}

// admit decides whether a call may proceed. The OPEN -> HALF_OPEN transition
// happens lazily here: the first caller after the cooldown
// becomes the single probe, everyone else keeps getting rejected.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.nowFn().Sub(b.openedAt) < b.settings.ResetTimeout {
			return false, apperrors.NewDependencyError(b.name, apperrors.KindCircuitOpen, nil)
		}
		b.state = StateHalfOpen
		b.probing = true
		b.log.Info("breaker half-open, admitting probe call")
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, apperrors.NewDependencyError(b.name, apperrors.KindCircuitOpen, nil)
		}
		b.probing = true
		return true, nil
	}
	return false, apperrors.NewDependencyError(b.name, apperrors.KindCircuitOpen, nil)
}

// classify normalizes op's outcome into the error taxonomy. NotFound passes
// through untouched; transport errors become DependencyError variants.
func (b *Breaker) classify(callCtx context.Context, opErr error) error {
	if opErr == nil || apperrors.IsNotFound(opErr) {
		return opErr
	}
	if dep, ok := apperrors.AsDependencyError(opErr); ok && dep.Dependency != "" {
		return opErr
	}
	if errors.Is(opErr, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return apperrors.NewDependencyError(b.name, apperrors.KindTimeout, opErr)
	}
	return apperrors.NewDependencyError(b.name, apperrors.KindRemoteError, opErr)
}

func (b *Breaker) record(probe bool, classified error) {
	failed := classified != nil && !apperrors.IsNotFound(classified)

	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
		if failed {
			b.state = StateOpen
			b.openedAt = b.nowFn()
			b.log.Warn("probe failed, breaker re-opened")
		} else {
			b.state = StateClosed
			b.resetWindowLocked()
			b.log.Info("probe succeeded, breaker closed")
		}
		return
	}

	// Outcomes recorded while OPEN (a call admitted just before the trip)
	// must not disturb the cooldown.
	if b.state != StateClosed {
		return
	}

	now := b.nowFn()
	if now.Sub(b.windowStart) > b.settings.RollingWindow {
		b.resetWindowLocked()
	}
	if failed {
		b.failures++
	} else {
		b.successes++
	}

	total := b.successes + b.failures
	if total < b.settings.VolumeThreshold {
		return
	}
	if b.failures*100 >= b.settings.ErrorThresholdPercentage*total {
		b.state = StateOpen
		b.openedAt = now
		b.log.Warn("failure threshold reached, breaker opened",
			"failures", b.failures, "total", total)
	}
}

func (b *Breaker) resetWindowLocked() {
	b.successes = 0
	b.failures = 0
	b.windowStart = b.nowFn()
}
