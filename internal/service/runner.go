package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"arena-timer/internal/domain"
)

var ErrRunnerStopped = errors.New("runner stopped")

// Engine is the part of client.Client the runner drives
type Engine interface {
	Connect(ctx context.Context, host string, port uint16, path string) error
	Disconnect()
	Poll(ctx context.Context) error
	IsConnected() bool
	State() domain.ConnectionState
	Status() domain.Status
	ServerURL() string
	Failures() uint
	NextRetry() time.Time
}

// Snapshot is the engine state published after every loop iteration
type Snapshot struct {
	Connected bool       `json:"connected"`
	Status    string     `json:"status"`
	URL       string     `json:"url"`
	State     string     `json:"state"`
	Failures  uint       `json:"failures"`
	NextRetry *time.Time `json:"nextRetry,omitempty"`
}

type command struct {
	run  func(ctx context.Context) error
	done chan error
}

// Runner owns an Engine on a single goroutine. Other goroutines reach it
// through commands and read the last published Snapshot.
type Runner struct {
	engine   Engine
	interval time.Duration
	cmds     chan command
	stopped  chan struct{}
	snap     atomic.Pointer[Snapshot]
	log      logr.Logger
}

// NewRunner creates a Runner polling engine every interval
func NewRunner(engine Engine, interval time.Duration, log logr.Logger) *Runner {
	r := &Runner{
		engine:   engine,
		interval: interval,
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
		log:      log,
	}
	r.publish()
	return r
}

// Run polls the engine until ctx is done, then disconnects it
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("run loop started", "interval", r.interval.String())
	for {
		select {
		case <-ctx.Done():
			r.engine.Disconnect()
			r.publish()
			r.log.Info("run loop stopped")
			return nil

		case cmd := <-r.cmds:
			err := cmd.run(ctx)
			r.publish()
			cmd.done <- err

		case <-ticker.C:
			if err := r.engine.Poll(ctx); err != nil {
				r.log.V(1).Info("poll interrupted", "error", err.Error())
			}
			r.publish()
		}
	}
}

// Connect asks the loop to connect and waits for the attempt to finish
func (r *Runner) Connect(ctx context.Context, host string, port uint16, path string) error {
	return r.do(ctx, func(loopCtx context.Context) error {
		return r.engine.Connect(loopCtx, host, port, path)
	})
}

// Disconnect asks the loop to disconnect
func (r *Runner) Disconnect(ctx context.Context) error {
	return r.do(ctx, func(context.Context) error {
		r.engine.Disconnect()
		return nil
	})
}

// Snapshot returns the last published engine state
func (r *Runner) Snapshot() Snapshot {
	return *r.snap.Load()
}

func (r *Runner) do(ctx context.Context, run func(ctx context.Context) error) error {
	cmd := command{run: run, done: make(chan error, 1)}
	select {
	case r.cmds <- cmd:
	case <-r.stopped:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) publish() {
	s := &Snapshot{
		Connected: r.engine.IsConnected(),
		Status:    r.engine.Status().String(),
		URL:       r.engine.ServerURL(),
		State:     r.engine.State().String(),
		Failures:  r.engine.Failures(),
	}
	if next := r.engine.NextRetry(); !next.IsZero() {
		s.NextRetry = &next
	}
	r.snap.Store(s)
}
