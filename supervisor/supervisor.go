// Package supervisor wires the dev loop together: it starts the backend,
// watches the project and tears everything down on SIGINT or SIGTERM.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/magdyamr542/gindev/config"
	"github.com/magdyamr542/gindev/events"
	"github.com/magdyamr542/gindev/execer"
	"github.com/magdyamr542/gindev/matcher"
	"github.com/magdyamr542/gindev/notifier"
	"github.com/magdyamr542/gindev/portkill"
	"github.com/magdyamr542/gindev/scheduler"
)

// Options holds everything the supervisor needs to run.
type Options struct {
	ProjectDir  string
	Watch       config.WatchConfig
	Run         config.RunConfig
	Port        int
	Debounce    time.Duration
	StopTimeout time.Duration
	Reclaimer   portkill.Reclaimer
	Logger      hclog.Logger
}

// Option overrides a collaborator.
type Option func(*Supervisor)

// WithController replaces the child process controller.
func WithController(c scheduler.Controller) Option {
	return func(s *Supervisor) { s.controller = c }
}

// WithNotifier replaces the filesystem watcher.
func WithNotifier(n notifier.Notifier) Option {
	return func(s *Supervisor) { s.notifier = n }
}

// WithSignals replaces the OS signal subscription.
func WithSignals(ch <-chan os.Signal) Option {
	return func(s *Supervisor) { s.signals = ch }
}

type Supervisor struct {
	opts       Options
	logger     hclog.Logger
	controller scheduler.Controller
	notifier   notifier.Notifier
	signals    <-chan os.Signal

	stop         chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	shutdownDone chan struct{}
}

func New(opts Options, extra ...Option) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	s := &Supervisor{
		opts:         opts,
		logger:       opts.Logger,
		stop:         make(chan struct{}),
		shutdownDone: make(chan struct{}),
	}
	for _, o := range extra {
		o(s)
	}
	if s.controller == nil {
		s.controller = execer.New(opts.Run, opts.Logger.Named("execer"),
			execer.WithPort(opts.Port, opts.Reclaimer))
	}
	if s.notifier == nil {
		s.notifier = notifier.New(opts.ProjectDir, func(rel string) bool {
			return matcher.IsIgnored(rel, opts.Watch)
		}, opts.Logger.Named("notifier"))
	}
	return s
}

// WatchRoots are the include dirs below the project, or the project itself.
func (s *Supervisor) WatchRoots() []string {
	if len(s.opts.Watch.IncludeDir) == 0 {
		return []string{s.opts.ProjectDir}
	}
	roots := make([]string, 0, len(s.opts.Watch.IncludeDir))
	for _, dir := range s.opts.Watch.IncludeDir {
		roots = append(roots, filepath.Join(s.opts.ProjectDir, filepath.FromSlash(dir)))
	}
	return roots
}

// Stop requests the same shutdown a termination signal triggers.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Run starts the backend, then the watcher, and blocks until a termination
// signal, Stop or ctx ends the loop. A clean shutdown returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	roots := s.WatchRoots()
	rels := make([]string, 0, len(roots))
	for _, r := range roots {
		rels = append(rels, matcher.Relative(s.opts.ProjectDir, r))
	}
	s.logger.Info("watching", "roots", strings.Join(rels, ", "))

	sigs := s.signals
	if sigs == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigs = ch
	}

	sched := scheduler.New(s.opts.Watch, s.controller, s.logger.Named("scheduler"),
		scheduler.WithDebounce(s.opts.Debounce),
		scheduler.WithStopTimeout(s.opts.StopTimeout))

	// The first start happens before anything is observed.
	sched.Bootstrap(ctx)

	eventCh := make(chan events.Event, 64)
	errCh := make(chan error, 8)
	closer, err := s.notifier.Notify(ctx, roots, eventCh, errCh)
	if err != nil {
		sched.Shutdown()
		return fmt.Errorf("init notifier: %w", err)
	}

	sched.Start(ctx, eventCh)

	stop := s.stop
	for {
		select {
		case sig := <-sigs:
			s.logger.Info("got signal to stop", "signal", sig)
			go s.shutdown(sched, closer)

		case <-stop:
			s.logger.Info("stop requested")
			stop = nil
			go s.shutdown(sched, closer)

		case err := <-errCh:
			s.logger.Debug("watch error", "error", err)

		case <-s.shutdownDone:
			return nil

		case <-sched.Done():
			// ctx ended the loop; the child is already stopped.
			s.shutdown(sched, closer)
			return nil
		}
	}
}

// shutdown cancels the pending restart, closes the watcher and stops the
// child, in that order. Only the first call has any effect; later callers
// wait for it to finish.
func (s *Supervisor) shutdown(sched *scheduler.Scheduler, closer notifier.Closer) {
	s.shutdownOnce.Do(func() {
		defer close(s.shutdownDone)
		sched.CancelPending()
		if err := closer(); err != nil {
			s.logger.Warn("close watcher", "error", err)
		}
		sched.Shutdown()
		s.logger.Info("stopped")
	})
	<-s.shutdownDone
}
