// Package progress consumes a job's progress stream and maintains the
// client-side view of it until the job reaches a terminal state.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veranemoloko/vidbatch/internal/domain"
	errpkg "github.com/veranemoloko/vidbatch/internal/errors"
)

// Source produces the raw payloads of a job's progress stream.
type Source interface {
	// Stream sends every payload received for handle to out until the stream
	// ends or ctx is cancelled. A nil error means the server closed the stream.
	Stream(ctx context.Context, handle domain.JobHandle, out chan<- []byte) error
}

// State is the lifecycle state of a Subscription.
type State int

const (
	StateIdle State = iota
	StateAttached
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttached:
		return "attached"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// OutcomeKind tells how a Subscription terminated.
type OutcomeKind string

const (
	OutcomeCompleted    OutcomeKind = "completed"
	OutcomeFailed       OutcomeKind = "failed"
	OutcomeDisconnected OutcomeKind = "disconnected"
	OutcomeClosed       OutcomeKind = "closed"
)

// Outcome is the terminal result of a Subscription.
type Outcome struct {
	Kind        OutcomeKind
	DownloadURL string
	Message     string
	Err         error
}

// Options tune a Consumer. Callbacks run on the drain goroutine after the
// stream has been closed and before Done is signalled.
type Options struct {
	// IdleTimeout terminates a subscription that received nothing for this
	// long. Zero disables it.
	IdleTimeout time.Duration

	OnComplete   func(downloadURL string)
	OnJobError   func(message string)
	OnDisconnect func(err error)
}

// Consumer attaches to progress streams and drives a ViewModel from them.
type Consumer struct {
	source Source
	view   *ViewModel
	opts   Options
	logger *slog.Logger
}

// NewConsumer creates a Consumer reading from source and writing into view.
func NewConsumer(source Source, view *ViewModel, logger *slog.Logger, opts Options) *Consumer {
	return &Consumer{
		source: source,
		view:   view,
		opts:   opts,
		logger: logger,
	}
}

// View returns the view model the consumer writes into.
func (c *Consumer) View() *ViewModel {
	return c.view
}

// Attach opens the progress stream of handle. The returned Subscription is
// already Attached; ctx bounds its whole lifetime.
func (c *Consumer) Attach(ctx context.Context, handle domain.JobHandle) (*Subscription, error) {
	if handle == "" {
		return nil, fmt.Errorf("attach: empty job handle")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		handle:   handle,
		consumer: c,
		state:    StateAttached,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	msgs := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		errc <- c.source.Stream(streamCtx, handle, msgs)
	}()
	go sub.run(streamCtx, msgs, errc)

	c.logger.Info("attached to progress stream", "job_id", handle)
	return sub, nil
}

// Subscription is the client-side handle of one open progress stream.
type Subscription struct {
	handle   domain.JobHandle
	consumer *Consumer

	mu      sync.Mutex
	state   State
	outcome Outcome

	cancel context.CancelFunc
	done   chan struct{}
}

// Handle returns the job handle the subscription is attached to.
func (s *Subscription) Handle() domain.JobHandle {
	return s.handle
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the subscription terminated.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the terminal outcome, or the zero value while attached.
func (s *Subscription) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Wait blocks until the subscription terminated or ctx is done.
func (s *Subscription) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		return s.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Close terminates the subscription. Closing a terminated subscription is a no-op.
func (s *Subscription) Close() {
	s.terminate(Outcome{Kind: OutcomeClosed}, func() {
		s.consumer.logger.Info("progress subscription closed", "job_id", s.handle)
	})
}

func (s *Subscription) run(ctx context.Context, msgs <-chan []byte, errc <-chan error) {
	idleTimeout := s.consumer.opts.IdleTimeout

	var (
		timer *time.Timer
		idle  <-chan time.Time
	)
	if idleTimeout > 0 {
		timer = time.NewTimer(idleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case data := <-msgs:
			if s.apply(data) {
				return
			}
			if timer != nil {
				timer.Reset(idleTimeout)
			}
		case err := <-errc:
			if ctx.Err() != nil {
				s.terminate(Outcome{Kind: OutcomeClosed, Err: ctx.Err()}, nil)
				return
			}
			s.disconnect(err)
			return
		case <-idle:
			s.disconnect(errpkg.ErrIdleTimeout)
			return
		case <-ctx.Done():
			s.terminate(Outcome{Kind: OutcomeClosed, Err: ctx.Err()}, nil)
			return
		}
	}
}

// apply handles one inbound payload and reports whether the subscription is
// terminated afterwards.
func (s *Subscription) apply(data []byte) bool {
	logger := s.consumer.logger

	var snap domain.ProgressSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("failed to decode progress snapshot", "job_id", s.handle, "error", err)
		return s.State() == StateTerminated
	}

	s.mu.Lock()
	if s.state != StateAttached {
		s.mu.Unlock()
		return true
	}

	s.consumer.view.Apply(snap)

	var outcome Outcome
	switch {
	case snap.Completed && snap.DownloadURL != "":
		outcome = Outcome{Kind: OutcomeCompleted, DownloadURL: snap.DownloadURL}
	case snap.Error != "":
		outcome = Outcome{Kind: OutcomeFailed, Message: snap.Error}
	default:
		s.mu.Unlock()
		return false
	}

	s.state = StateTerminated
	s.outcome = outcome
	s.mu.Unlock()

	s.closeWith(func() {
		opts := s.consumer.opts
		switch outcome.Kind {
		case OutcomeCompleted:
			logger.Info("job completed", "job_id", s.handle, "download_url", outcome.DownloadURL)
			s.consumer.view.SetDownloadURL(outcome.DownloadURL)
			if opts.OnComplete != nil {
				opts.OnComplete(outcome.DownloadURL)
			}
		case OutcomeFailed:
			logger.Warn("job failed", "job_id", s.handle, "error", outcome.Message)
			s.consumer.view.SetError(outcome.Message)
			if opts.OnJobError != nil {
				opts.OnJobError(outcome.Message)
			}
		}
	})

	return true
}

func (s *Subscription) disconnect(cause error) {
	err := errpkg.ErrConnectionLost
	switch {
	case errors.Is(cause, errpkg.ErrIdleTimeout):
		err = cause
	case cause != nil:
		err = fmt.Errorf("%w: %v", errpkg.ErrConnectionLost, cause)
	}

	s.terminate(Outcome{Kind: OutcomeDisconnected, Err: err}, func() {
		s.consumer.logger.Error("progress stream failed", "job_id", s.handle, "error", err)
		if fn := s.consumer.opts.OnDisconnect; fn != nil {
			fn(err)
		}
	})
}

func (s *Subscription) terminate(outcome Outcome, onClosed func()) bool {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return false
	}
	s.state = StateTerminated
	s.outcome = outcome
	s.mu.Unlock()

	s.closeWith(onClosed)
	return true
}

// closeWith closes the stream, runs the terminal action and signals Done.
func (s *Subscription) closeWith(onClosed func()) {
	s.cancel()
	if onClosed != nil {
		onClosed()
	}
	close(s.done)
}
