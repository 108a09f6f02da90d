// Package scheduler turns file change events into backend restarts.
//
// All restart state (the current child, the debounce timer and the in-flight
// guard) is owned by the event loop goroutine. Events, timer fires, restart
// completions and shutdown requests are all received by that one loop, so no
// two of them are ever handled at the same time. The only slow work, stopping
// and starting the child, runs in a separate goroutine that reports back to
// the loop when done; the loop keeps consuming events meanwhile.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/magdyamr542/gindev/config"
	"github.com/magdyamr542/gindev/events"
	"github.com/magdyamr542/gindev/execer"
	"github.com/magdyamr542/gindev/matcher"
)

// DefaultDebounce is the quiet period after the last eligible change before a restart.
const DefaultDebounce = 150 * time.Millisecond

// Controller starts and stops the supervised child.
type Controller interface {
	Start(ctx context.Context) (*execer.Handle, error)
	Stop(h *execer.Handle, timeout time.Duration)
}

type requestKind int

const (
	cancelPending requestKind = iota
	shutdown
)

type request struct {
	kind requestKind
	done chan struct{}
}

// Scheduler debounces change events and serializes restarts.
type Scheduler struct {
	cfg         config.WatchConfig
	controller  Controller
	debounce    time.Duration
	stopTimeout time.Duration
	logger      hclog.Logger

	requests    chan request
	restartDone chan *execer.Handle
	exited      chan struct{}
	running     atomic.Bool

	// Owned by the event loop once Start was called.
	current    *execer.Handle
	exitC      <-chan struct{}
	timer      *time.Timer
	timerC     <-chan time.Time
	trigger    events.Event
	restarting bool
	deferred   bool
	closing    bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithStopTimeout sets the graceful stop budget. Non-positive values keep the default.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

func New(cfg config.WatchConfig, controller Controller, logger hclog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:         cfg,
		controller:  controller,
		debounce:    DefaultDebounce,
		stopTimeout: execer.DefaultShutdownTimeout,
		logger:      logger,
		requests:    make(chan request),
		restartDone: make(chan *execer.Handle, 1),
		exited:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap starts the first child without debouncing. It must be called
// before Start. A failed start is logged; the next change retries.
func (s *Scheduler) Bootstrap(ctx context.Context) {
	h, err := s.controller.Start(ctx)
	if err != nil {
		s.logger.Error("start failed, waiting for changes", "error", err)
	}
	s.adopt(h)
}

// Start consumes events in the background until ctx is done or Shutdown is
// called. Done is closed once the loop returned and the child was stopped.
func (s *Scheduler) Start(ctx context.Context, in <-chan events.Event) {
	s.running.Store(true)
	go s.run(ctx, in)
}

// Done is closed when the event loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.exited
}

func (s *Scheduler) run(ctx context.Context, in <-chan events.Event) {
	defer close(s.exited)

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			s.handleEvent(ev)

		case <-s.timerC:
			s.timer, s.timerC = nil, nil
			s.fire(ctx)

		case h := <-s.restartDone:
			s.finishRestart(ctx, h)

		case <-s.exitC:
			s.exitC = nil
			if err := s.current.Err(); err != nil {
				s.logger.Warn("backend exited, waiting for changes", "pid", s.current.Pid(), "error", err)
			} else {
				s.logger.Info("backend exited, waiting for changes", "pid", s.current.Pid())
			}

		case req := <-s.requests:
			switch req.kind {
			case cancelPending:
				s.closing = true
				s.stopTimer()
				close(req.done)
			case shutdown:
				s.teardown()
				close(req.done)
				return
			}

		case <-ctx.Done():
			s.teardown()
			return
		}
	}
}

// CancelPending drops any scheduled restart and ignores further events.
func (s *Scheduler) CancelPending() {
	s.send(cancelPending)
}

// Shutdown cancels any scheduled restart, waits for an in-flight restart and
// stops the child. Calling it again is a no-op.
func (s *Scheduler) Shutdown() {
	if !s.running.Load() {
		s.controller.Stop(s.current, s.stopTimeout)
		s.adopt(nil)
		return
	}
	s.send(shutdown)
}

func (s *Scheduler) send(kind requestKind) {
	req := request{kind: kind, done: make(chan struct{})}
	select {
	case s.requests <- req:
		<-req.done
	case <-s.exited:
	}
}

func (s *Scheduler) handleEvent(ev events.Event) {
	if s.closing || !matcher.ShouldTrigger(ev.Rel, s.cfg) {
		return
	}
	s.trigger = ev
	s.stopTimer()
	s.timer = time.NewTimer(s.debounce)
	s.timerC = s.timer.C
}

func (s *Scheduler) fire(ctx context.Context) {
	if s.closing {
		return
	}
	if s.restarting {
		s.logger.Debug("restart in progress, deferring", "path", s.trigger.Rel)
		s.deferred = true
		return
	}
	s.restart(ctx)
}

// restart hands the current child to a goroutine that stops it and starts a
// replacement. Ownership comes back through restartDone.
func (s *Scheduler) restart(ctx context.Context) {
	s.restarting = true
	s.logger.Info("restarting", "event", s.trigger.Op.String(), "path", s.trigger.Rel)

	old := s.current
	s.adopt(nil)

	go func() {
		s.controller.Stop(old, s.stopTimeout)
		h, err := s.controller.Start(ctx)
		if err != nil {
			s.logger.Error("start failed, waiting for changes", "error", err)
		}
		s.restartDone <- h
	}()
}

func (s *Scheduler) finishRestart(ctx context.Context, h *execer.Handle) {
	s.restarting = false
	s.adopt(h)
	if s.closing || !s.deferred {
		return
	}
	s.deferred = false
	s.restart(ctx)
}

func (s *Scheduler) teardown() {
	s.closing = true
	s.stopTimer()
	if s.restarting {
		s.adopt(<-s.restartDone)
		s.restarting = false
	}
	s.controller.Stop(s.current, s.stopTimeout)
	s.adopt(nil)
}

func (s *Scheduler) adopt(h *execer.Handle) {
	s.current = h
	s.exitC = nil
	if h != nil {
		s.exitC = h.Done()
	}
}

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer, s.timerC = nil, nil
}
