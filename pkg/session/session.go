package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akam1o/arca-replay/pkg/plan"
)

// Session is the handle to one open remote shell. It owns exactly one channel
// and is closed exactly once.
type Session struct {
	id        string
	target    string
	ch        Channel
	mode      plan.Mode
	sent      int
	createdAt time.Time

	closeOnce sync.Once
	closeErr  error
}

func newSession(target string) *Session {
	return &Session{
		id:        uuid.New().String(),
		target:    target,
		mode:      plan.ModeClosed,
		createdAt: time.Now(),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Target() string       { return s.target }
func (s *Session) Mode() plan.Mode      { return s.mode }
func (s *Session) Sent() int            { return s.sent }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// open attaches the channel obtained from the transport
func (s *Session) open(ctx context.Context, t Transport) error {
	s.mode = plan.ModeOpening
	ch, err := t.Open(ctx, s.target)
	if err != nil {
		s.mode = plan.ModeClosed
		return err
	}
	s.ch = ch
	s.mode = plan.ModeShellReady
	return nil
}

// send transmits one command and records the mode it leads to
func (s *Session) send(ctx context.Context, cmd plan.Command) error {
	if err := s.ch.Send(ctx, cmd.Text); err != nil {
		return err
	}
	s.sent++
	s.mode = cmd.Mode
	return nil
}

// Close closes the channel; later calls return the first result
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.ch != nil {
			s.closeErr = s.ch.Close()
		}
		s.mode = plan.ModeClosed
	})
	return s.closeErr
}
