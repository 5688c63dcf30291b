package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// EventStore is an in-memory append-only audit log.
type EventStore struct {
	mu     sync.Mutex
	nextID int64
	events []domain.Event
}

// NewEventStore returns an empty audit log.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Log appends one audit entry.
func (s *EventStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.events = append(s.events, domain.Event{
		ID:        s.nextID,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns audit entries matching opts, newest first.
func (s *EventStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Event, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}
