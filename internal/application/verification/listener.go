package verification

import (
	"context"

	"github.com/go-healthcare-api/internal/domain"
)

type jobQueue interface {
	Enqueue(ctx context.Context, job domain.SendVerificationCodeJob) error
}

// Listener turns a UserRegistered event into one SendVerificationCodeJob.
type Listener struct {
	queue jobQueue
}

func NewListener(queue jobQueue) *Listener {
	return &Listener{queue: queue}
}

// ShouldQueue reports that the listener runs off the request path.
func (l *Listener) ShouldQueue() bool { return true }

func (l *Listener) Handle(ctx context.Context, e domain.UserRegistered) error {
	return l.queue.Enqueue(ctx, domain.SendVerificationCodeJob{
		UserID:    e.User.UserID,
		Email:     e.User.Email,
		FirstName: e.User.FirstName,
	})
}
