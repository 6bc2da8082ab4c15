package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-loja/internal/repo"
)

type memoryStore struct {
	events []repo.DomainEvent
}

func (m *memoryStore) Insert(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (repo.DomainEvent, error) {
	ev := repo.DomainEvent{
		ID:          int64(len(m.events) + 1),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	m.events = append(m.events, ev)
	return ev, nil
}

func TestEmitFansOutToSubscribers(t *testing.T) {
	bus := &Bus{Store: &memoryStore{}}

	var seen []string
	cancel := bus.Subscribe(TopicCartChanged, func(_ context.Context, ev repo.DomainEvent) error {
		seen = append(seen, ev.Topic)
		return nil
	})
	defer cancel()

	_, err := bus.Emit(context.Background(), TopicCartChanged, uuid.New(), map[string]any{"items": 2})
	require.NoError(t, err)
	require.Equal(t, []string{TopicCartChanged}, seen)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := &Bus{Store: &memoryStore{}}

	calls := 0
	cancel := bus.Subscribe(TopicCartChanged, func(context.Context, repo.DomainEvent) error {
		calls++
		return nil
	})

	_, err := bus.Emit(context.Background(), TopicCartChanged, uuid.New(), nil)
	require.NoError(t, err)
	cancel()
	_, err = bus.Emit(context.Background(), TopicCartChanged, uuid.New(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestEmitJoinsSubscriberErrors(t *testing.T) {
	bus := &Bus{Store: &memoryStore{}}
	boom := errors.New("boom")
	cancel := bus.Subscribe(TopicOrderCreated, func(context.Context, repo.DomainEvent) error {
		return boom
	})
	defer cancel()

	ev, err := bus.Emit(context.Background(), TopicOrderCreated, uuid.New(), nil)
	require.ErrorIs(t, err, boom)
	require.Equal(t, TopicOrderCreated, ev.Topic)
}

func TestEmitRejectsInvalidPayload(t *testing.T) {
	bus := &Bus{Store: &memoryStore{}}
	_, err := bus.Emit(context.Background(), TopicCartChanged, uuid.New(), []byte("{not json"))
	require.Error(t, err)
}
