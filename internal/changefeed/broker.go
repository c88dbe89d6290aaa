// Package changefeed fans document change notifications out to every
// session subscribed for the same owner.
package changefeed

import (
	"context"
	"sync"

	"braindump/internal/domain/models"
)

// subscriberBuffer bounds how many undelivered events a slow subscriber may
// hold before further events are dropped for it. Events are only refetch
// hints, so dropping while a refetch is already queued loses nothing.
const subscriberBuffer = 16

// Broker publishes and delivers ChangeEvents scoped by owner.
type Broker interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
	Subscribe(ctx context.Context, ownerID string) (*Subscription, error)
	Close() error
}

// Subscription is a live feed of one owner's change events. Close is the
// unsubscribe handle and is safe to call more than once.
type Subscription struct {
	C <-chan models.ChangeEvent

	closeOnce sync.Once
	closeFn   func()
}

func newSubscription(c <-chan models.ChangeEvent, closeFn func()) *Subscription {
	return &Subscription{C: c, closeFn: closeFn}
}

// Close stops delivery and releases the subscription.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.closeFn)
}
