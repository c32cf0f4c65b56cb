// Package notify delivers workflow events to linked chats.
//
// Delivery is best-effort by contract: the workflow treats the persisted
// state change as the source of truth and callers here log failures instead
// of propagating them.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"subtrack/internal/models"
)

// Sender is the chat transport.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// UserDirectory resolves notification targets.
type UserDirectory interface {
	Get(ctx context.Context, id string) (*models.User, error)
	ListStaff(ctx context.Context) ([]models.User, error)
}

// Gate is the explicit readiness signal for the chat transport. It replaces
// a module-level flag: main marks it ready after the bot verifies its own
// connectivity, and senders await it with a bounded delay. Sends proceed
// after the delay even when readiness never arrived.
type Gate struct {
	once  sync.Once
	ready chan struct{}
	delay time.Duration
}

func NewGate(maxDelay time.Duration) *Gate {
	return &Gate{ready: make(chan struct{}), delay: maxDelay}
}

func (g *Gate) MarkReady() {
	g.once.Do(func() { close(g.ready) })
}

// Await blocks until the gate is ready, the bounded delay elapses, or ctx is
// done. It never returns an error: readiness is advisory.
func (g *Gate) Await(ctx context.Context) {
	select {
	case <-g.ready:
	case <-time.After(g.delay):
	case <-ctx.Done():
	}
}

// Service fans workflow messages out to linked chats. Users without a
// linked chat are silently skipped.
type Service struct {
	users  UserDirectory
	sender Sender
	gate   *Gate
	lg     *zap.SugaredLogger
}

func NewService(users UserDirectory, sender Sender, gate *Gate, lg *zap.SugaredLogger) *Service {
	return &Service{users: users, sender: sender, gate: gate, lg: lg}
}

func (s *Service) NotifyUser(ctx context.Context, userID string, text string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.ChatID == nil {
		return nil
	}
	s.gate.Await(ctx)
	return s.sender.Send(ctx, *u.ChatID, text)
}

func (s *Service) NotifyStaff(ctx context.Context, text string) error {
	staff, err := s.users.ListStaff(ctx)
	if err != nil {
		return err
	}
	s.gate.Await(ctx)
	var lastErr error
	for _, u := range staff {
		if u.ChatID == nil {
			continue
		}
		if err := s.sender.Send(ctx, *u.ChatID, text); err != nil {
			s.lg.Warnw("staff send failed", "user", u.ID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
