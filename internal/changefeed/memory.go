package changefeed

import (
	"context"
	"log/slog"
	"sync"

	"braindump/internal/domain/models"
)

// MemoryBroker delivers events to subscribers in the same process.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[chan models.ChangeEvent]struct{}
	closed bool
	logger *slog.Logger
}

// NewMemoryBroker creates an in-process broker
func NewMemoryBroker(logger *slog.Logger) *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[string]map[chan models.ChangeEvent]struct{}),
		logger: logger,
	}
}

// Publish delivers event to every subscriber of its owner without blocking.
func (b *MemoryBroker) Publish(_ context.Context, event models.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[event.OwnerID] {
		select {
		case ch <- event:
		default:
			b.logger.Debug("change event dropped for slow subscriber",
				"owner_id", event.OwnerID,
				"document_id", event.DocumentID,
			)
		}
	}
	return nil
}

// Subscribe registers a subscriber for ownerID. The subscription also ends
// when ctx is cancelled.
func (b *MemoryBroker) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	ch := make(chan models.ChangeEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return newSubscription(ch, func() {}), nil
	}
	if b.subs[ownerID] == nil {
		b.subs[ownerID] = make(map[chan models.ChangeEvent]struct{})
	}
	b.subs[ownerID][ch] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	sub := newSubscription(ch, func() {
		close(done)
		b.remove(ownerID, ch)
	})

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-done:
		}
	}()

	return sub, nil
}

// SubscriberCount reports how many live subscriptions ownerID has.
func (b *MemoryBroker) SubscriberCount(ownerID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[ownerID])
}

// Close ends every subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for owner, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, owner)
	}
	b.closed = true
	return nil
}

func (b *MemoryBroker) remove(ownerID string, ch chan models.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[ownerID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(b.subs, ownerID)
	}
}
