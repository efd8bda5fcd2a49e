package internal

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// State is a servlet instance's lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateDraining
	StateDestroyed
	StateFailedInit
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateDestroyed:
		return "destroyed"
	case StateFailedInit:
		return "failed_init"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// AcquirePolicy decides what Acquire does while a servlet is not yet ready.
type AcquirePolicy int

const (
	// AcquireWait blocks until initialization finishes, starting it if needed.
	AcquireWait AcquirePolicy = iota
	// AcquireFailFast returns ErrUnavailable immediately.
	AcquireFailFast
)

const panicStackSize = 4096

// Instance is the single hosted instance of one Definition together with its
// lifecycle gate. Service holders share the gate; Init and Destroy own it.
type Instance struct {
	servlet Servlet
	cfg     *Config
	log     *slog.Logger
	def     *Definition

	initDone     chan struct{} // closed when Init has finished either way
	drained      chan struct{} // closed when the last holder leaves a draining instance
	shutdownDone chan struct{} // closed when BeginShutdown has finished

	initErr     error
	shutdownErr error

	policy AcquirePolicy
	state  State
	live   int

	shutdownStarted bool
	forced          bool // destroyed with handles outstanding
	mu              sync.Mutex
}

func newInstance(def *Definition, s Servlet, cfg *Config, policy AcquirePolicy, log *slog.Logger) *Instance {
	return &Instance{
		servlet:      s,
		cfg:          cfg,
		log:          log.With(slog.String("servlet", def.Name)),
		def:          def,
		initDone:     make(chan struct{}),
		drained:      make(chan struct{}),
		shutdownDone: make(chan struct{}),
		policy:       policy,
	}
}

// Name returns the servlet's registered name.
func (i *Instance) Name() string { return i.def.Name }

// Servlet returns the hosted servlet.
func (i *Instance) Servlet() Servlet { return i.servlet }

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Live returns the number of outstanding service handles.
func (i *Instance) Live() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.live
}

// InitErr returns the initialization error of a failed instance, else nil.
func (i *Instance) InitErr() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.initErr
}

// Activate runs Init exactly once. Concurrent and later callers wait for the
// first call and observe its outcome. Calling Activate on a draining or
// destroyed instance returns ErrUnavailable.
func (i *Instance) Activate() error {
	i.mu.Lock()
	switch i.state {
	case StateUninitialized:
		i.state = StateInitializing
		i.mu.Unlock()

		err := i.runInit()

		i.mu.Lock()
		if err != nil {
			i.initErr = &ServletError{Kind: ErrInitialization, Servlet: i.def.Name, Err: err}
			i.state = StateFailedInit
			i.log.Error("servlet init failed", slog.Any("error", err))
		} else {
			i.state = StateReady
			if d, ok := i.servlet.(Describer); ok {
				i.log.Info("servlet ready", slog.String("info", d.Info()))
			} else {
				i.log.Info("servlet ready")
			}
		}
		close(i.initDone)
		err = i.initErr
		i.mu.Unlock()
		return err

	case StateInitializing:
		done := i.initDone
		i.mu.Unlock()
		<-done
		i.mu.Lock()
		defer i.mu.Unlock()
		return i.initErr

	case StateFailedInit:
		defer i.mu.Unlock()
		return i.initErr

	case StateReady:
		i.mu.Unlock()
		return nil

	default:
		i.mu.Unlock()
		return fmt.Errorf("%w: %q is %s", ErrUnavailable, i.def.Name, i.state)
	}
}

// Acquire registers one in-flight service call and returns its handle.
// The caller must Release the handle on every exit path.
func (i *Instance) Acquire(ctx context.Context) (*Handle, error) {
	for {
		i.mu.Lock()
		switch i.state {
		case StateReady:
			i.live++
			i.mu.Unlock()
			return &Handle{inst: i}, nil

		case StateUninitialized, StateInitializing:
			if i.policy == AcquireFailFast {
				st := i.state
				i.mu.Unlock()
				return nil, fmt.Errorf("%w: %q is %s", ErrUnavailable, i.def.Name, st)
			}
			uninit := i.state == StateUninitialized
			done := i.initDone
			i.mu.Unlock()

			if uninit {
				// Activate reports init failures; the loop picks them up below.
				_ = i.Activate()
				continue
			}
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		case StateFailedInit:
			err := i.initErr
			i.mu.Unlock()
			return nil, err

		default:
			st := i.state
			i.mu.Unlock()
			return nil, fmt.Errorf("%w: %q is %s", ErrUnavailable, i.def.Name, st)
		}
	}
}

// BeginShutdown drains and destroys the instance.
//
// A ready instance stops accepting acquisitions and waits for outstanding
// handles, at most timeout (no bound when timeout <= 0). Destroy then runs
// exactly once. If the wait timed out, Destroy runs anyway and a
// *DrainTimeoutError is returned. An instance that was never initialized
// moves straight to Destroyed without calling Destroy; a failed one is left
// alone. Concurrent callers wait for the first and share its result.
func (i *Instance) BeginShutdown(timeout time.Duration) error {
	i.mu.Lock()
	if i.shutdownStarted {
		done := i.shutdownDone
		i.mu.Unlock()
		<-done
		i.mu.Lock()
		defer i.mu.Unlock()
		return i.shutdownErr
	}
	i.shutdownStarted = true

	for i.state == StateInitializing {
		done := i.initDone
		i.mu.Unlock()
		<-done
		i.mu.Lock()
	}

	switch i.state {
	case StateUninitialized:
		i.state = StateDestroyed
		close(i.shutdownDone)
		i.mu.Unlock()
		return nil
	case StateFailedInit:
		close(i.shutdownDone)
		i.mu.Unlock()
		return nil
	}

	i.state = StateDraining
	if i.live == 0 {
		close(i.drained)
	}
	i.mu.Unlock()

	var err error
	if !i.waitDrained(timeout) {
		i.mu.Lock()
		i.forced = true
		n := i.live
		i.mu.Unlock()
		err = &DrainTimeoutError{Servlet: i.def.Name, Outstanding: n, Timeout: timeout}
		i.log.Error("drain timed out, destroying servlet with requests in flight",
			slog.Int("outstanding", n),
			slog.Duration("timeout", timeout),
		)
	}

	i.runDestroy()

	i.mu.Lock()
	i.state = StateDestroyed
	i.shutdownErr = err
	close(i.shutdownDone)
	i.mu.Unlock()
	return err
}

func (i *Instance) waitDrained(timeout time.Duration) bool {
	if timeout <= 0 {
		<-i.drained
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-i.drained:
		return true
	case <-timer.C:
		return false
	}
}

func (i *Instance) runInit() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return i.servlet.Init(i.cfg)
}

func (i *Instance) runDestroy() {
	defer func() {
		if r := recover(); r != nil {
			i.log.Error("servlet destroy panicked", slog.Any("panic", r))
		}
	}()
	i.servlet.Destroy()
	i.log.Debug("servlet destroyed")
}

func (i *Instance) release() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.live--
	if i.forced {
		return fmt.Errorf("%w: %q", ErrTornDown, i.def.Name)
	}
	if i.state == StateDraining && i.live == 0 {
		close(i.drained)
	}
	return nil
}

// Handle is one acquired service slot.
type Handle struct {
	inst     *Instance
	released atomic.Bool
}

// Release returns the slot. Only the first call has an effect. It reports
// ErrTornDown when the instance was destroyed while the slot was held.
func (h *Handle) Release() error {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return nil
	}
	return h.inst.release()
}

func recovered(r any) *PanicError {
	stack := make([]byte, panicStackSize)
	stack = stack[:runtime.Stack(stack, false)]
	return &PanicError{Value: r, Stack: stack}
}
