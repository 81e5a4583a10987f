// internal/registration/navigator/navigator.go
package navigator

import (
	"context"
	"sync"
	"time"

	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/common/metrics"
)

const (
	FirstStep = 1
	LastStep  = 3

	// StepSubmitted is the virtual position shown after a successful final
	// submission. Nothing navigates out of it.
	StepSubmitted = LastStep + 1

	// DefaultGateDwell is how long step 1 holds after the name registration
	// call before advancing. The registry gives no completion signal.
	DefaultGateDwell = 3 * time.Second
)

var (
	ErrGateInFlight = errors.NewNavigationDeniedError("step 1 gate in flight")
	ErrSubmitting   = errors.NewNavigationDeniedError("submission in flight")
	ErrSuperseded   = errors.NewNavigationDeniedError("navigator closed")
	ErrTerminal     = errors.NewNavigationDeniedError("application already submitted")
)

// Hooks are the host callbacks a Navigator drives. Any of them may be nil.
type Hooks struct {
	// Gate runs the step-1 side effect. A failure is logged and the gate
	// still advances after the dwell.
	Gate func(ctx context.Context) error
	// Submit performs the final submission from step 3.
	Submit func(ctx context.Context) error
	// Exit is called by Back on step 1.
	Exit func()
	// Observer receives the new position after every transition.
	Observer func(step int)
}

type Options struct {
	Start     int
	GateDwell time.Duration
}

// Navigator walks a draft linearly through steps 1..3. Only one gate or
// submission can be in flight at a time.
type Navigator struct {
	mu         sync.Mutex
	step       int
	gating     bool
	submitting bool
	closed     bool
	generation uint64
	done       chan struct{}

	dwell  time.Duration
	hooks  Hooks
	logger logger.Logger
}

// New creates a navigator positioned at opts.Start, clamped to 1..3.
func New(opts Options, hooks Hooks, log logger.Logger) *Navigator {
	start := opts.Start
	if start < FirstStep {
		start = FirstStep
	}
	if start > LastStep {
		start = LastStep
	}
	dwell := opts.GateDwell
	if dwell <= 0 {
		dwell = DefaultGateDwell
	}

	return &Navigator{
		step:   start,
		done:   make(chan struct{}),
		dwell:  dwell,
		hooks:  hooks,
		logger: log.WithFields(map[string]interface{}{"component": "navigator"}),
	}
}

func (n *Navigator) Step() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.step
}

// Busy reports whether a gate or submission is in flight.
func (n *Navigator) Busy() (gating, submitting bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gating, n.submitting
}

// Back moves one step back, or calls the exit hook on step 1.
func (n *Navigator) Back() error {
	n.mu.Lock()
	if err := n.checkIdleLocked(); err != nil {
		n.mu.Unlock()
		return err
	}

	if n.step == FirstStep {
		n.mu.Unlock()
		if n.hooks.Exit != nil {
			n.hooks.Exit()
		}
		return nil
	}

	n.step--
	step := n.step
	n.mu.Unlock()

	n.notify(step)
	return nil
}

// Next advances one step. From step 1 it runs the gate and blocks for the
// dwell; from step 3 it submits and moves to StepSubmitted on success.
func (n *Navigator) Next(ctx context.Context) error {
	n.mu.Lock()
	if err := n.checkIdleLocked(); err != nil {
		n.mu.Unlock()
		return err
	}

	switch n.step {
	case FirstStep:
		n.gating = true
		gen := n.generation
		n.mu.Unlock()
		return n.runGate(ctx, gen)

	case LastStep:
		n.submitting = true
		gen := n.generation
		n.mu.Unlock()
		return n.runSubmit(ctx, gen)

	default:
		n.step++
		step := n.step
		n.mu.Unlock()
		n.notify(step)
		return nil
	}
}

// Close abandons the navigator. A gate or submission still in flight
// completes without moving it.
func (n *Navigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	n.generation++
	close(n.done)
}

func (n *Navigator) runGate(ctx context.Context, gen uint64) error {
	started := time.Now()

	if n.hooks.Gate != nil {
		if err := n.hooks.Gate(ctx); err != nil {
			n.logger.Warn("step 1 gate call failed, advancing after dwell", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	timer := time.NewTimer(n.dwell)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-n.done:
		return ErrSuperseded
	case <-ctx.Done():
		n.mu.Lock()
		if n.generation == gen {
			n.gating = false
		}
		n.mu.Unlock()
		return ctx.Err()
	}

	n.mu.Lock()
	if n.generation != gen {
		n.mu.Unlock()
		return ErrSuperseded
	}
	n.gating = false
	n.step = FirstStep + 1
	n.mu.Unlock()

	metrics.GateDuration.Observe(time.Since(started).Seconds())
	n.notify(FirstStep + 1)
	return nil
}

func (n *Navigator) runSubmit(ctx context.Context, gen uint64) error {
	var err error
	if n.hooks.Submit != nil {
		err = n.hooks.Submit(ctx)
	}

	n.mu.Lock()
	if n.generation != gen {
		n.mu.Unlock()
		n.logger.Info("submission finished after navigator closed", map[string]interface{}{
			"failed": err != nil,
		})
		return err
	}
	n.submitting = false
	if err != nil {
		n.mu.Unlock()
		return err
	}
	n.step = StepSubmitted
	n.mu.Unlock()

	n.notify(StepSubmitted)
	return nil
}

func (n *Navigator) checkIdleLocked() error {
	switch {
	case n.closed:
		return ErrSuperseded
	case n.gating:
		return ErrGateInFlight
	case n.submitting:
		return ErrSubmitting
	case n.step == StepSubmitted:
		return ErrTerminal
	}
	return nil
}

func (n *Navigator) notify(step int) {
	if n.hooks.Observer != nil {
		n.hooks.Observer(step)
	}
}
