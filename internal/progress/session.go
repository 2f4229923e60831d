package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veranemoloko/vidbatch/internal/domain"
	errpkg "github.com/veranemoloko/vidbatch/internal/errors"
)

// Submitter starts a backend job for a batch of links.
type Submitter interface {
	Submit(ctx context.Context, rawText string) (domain.JobHandle, error)
}

// SessionOptions tune a Session.
type SessionOptions struct {
	// Supersede closes an attached subscription when a new submission starts
	// instead of rejecting the submission.
	Supersede bool
}

// Session drives the "start download" action: it submits a batch, attaches
// to the resulting job and keeps at most one subscription attached.
type Session struct {
	submitter Submitter
	consumer  *Consumer
	opts      SessionOptions
	logger    *slog.Logger

	mu      sync.Mutex
	current *Subscription
}

// NewSession creates a Session.
func NewSession(submitter Submitter, consumer *Consumer, logger *slog.Logger, opts SessionOptions) *Session {
	return &Session{
		submitter: submitter,
		consumer:  consumer,
		opts:      opts,
		logger:    logger,
	}
}

// View returns the view model shared by every submission of the session.
func (s *Session) View() *ViewModel {
	return s.consumer.View()
}

// Start submits rawText and attaches to the created job.
// It fails with ErrSubscriptionActive while a previous subscription is still
// attached, unless the session supersedes it.
func (s *Session) Start(ctx context.Context, rawText string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.current; cur != nil {
		if cur.State() == StateAttached {
			if !s.opts.Supersede {
				return nil, errpkg.ErrSubscriptionActive
			}
			s.logger.Info("superseding active subscription", "job_id", cur.Handle())
			cur.Close()
		}
		// terminal callbacks of the previous subscription write to the view
		select {
		case <-cur.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.current = nil
	}

	view := s.consumer.View()
	view.Reset()

	handle, err := s.submitter.Submit(ctx, rawText)
	if err != nil {
		view.SetError(userMessage(err))
		return nil, err
	}

	sub, err := s.consumer.Attach(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("attach to job %s: %w", handle, err)
	}

	s.current = sub
	return sub, nil
}

// Close closes the current subscription, if any.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Close()
	}
}

func userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return err.Error()
}
