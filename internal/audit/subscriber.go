package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/doctorry/platform/internal/shared/events"
)

// AppendOnlyLog is the write side of the audit log
type AppendOnlyLog interface {
	Append(ctx context.Context, entry *Entry) error
}

// Subscriber listens to domain events and appends audit entries
type Subscriber struct {
	log AppendOnlyLog
	bus events.EventBus
}

// NewSubscriber creates a new audit subscriber
func NewSubscriber(log AppendOnlyLog, bus events.EventBus) *Subscriber {
	return &Subscriber{log: log, bus: bus}
}

// Start subscribes to the audited event streams
func (s *Subscriber) Start(ctx context.Context) error {
	patterns := []struct {
		pattern      string
		consumerName string
	}{
		{"appointment.*", "audit-appointment-subscriber"},
		{"auth.*", "audit-auth-subscriber"},
		{"doctor.*", "audit-doctor-subscriber"},
	}

	for _, p := range patterns {
		if err := s.bus.Subscribe(ctx, p.pattern, p.consumerName, s.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", p.pattern, err)
		}
	}

	return nil
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	entry := s.eventToEntry(event)
	if entry == nil {
		return nil
	}

	if err := s.log.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// eventToEntry converts a domain event to an audit entry
func (s *Subscriber) eventToEntry(event events.Event) *Entry {
	parts := strings.SplitN(event.Type, ".", 2)
	if len(parts) < 2 {
		return nil
	}

	resourceType := parts[0]

	var resourceID string
	changes := map[string]any{}
	if data, ok := event.Data.(map[string]any); ok {
		for _, field := range []string{resourceType + "_id", "id", "user_id"} {
			if idVal, ok := data[field]; ok {
				resourceID = fmt.Sprint(idVal)
				break
			}
		}
		changes = data
	}

	actorType := ActorType(event.ActorType)
	if actorType == "" {
		actorType = ActorTypeSystem
	}

	// Hash is chained in by Append; prevHash is filled there
	entry := NewEntry(
		actorType,
		event.ActorID.String(),
		event.Type,
		resourceType,
		resourceID,
		changes,
		"",
	)
	entry.CorrelationID = event.CorrelationID

	return entry
}
