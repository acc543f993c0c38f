package audit

import (
	"context"
	"time"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. When an inbox
// is attached, every event is also handed to the background worker for
// external delivery; a full inbox never blocks the calling workflow.
type Publisher struct {
	store Store
	inbox chan<- Event
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// WithInbox attaches the channel consumed by a Worker.
func (p *Publisher) WithInbox(inbox chan<- Event) *Publisher {
	p.inbox = inbox
	return p
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, base); err != nil {
		return err
	}
	if p.inbox != nil {
		select {
		case p.inbox <- base:
		default:
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, userID string) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}
