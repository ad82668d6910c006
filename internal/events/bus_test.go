package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sehaty-app/backend-sehaty/internal/events"
)

type stubStore struct {
	events []events.Event
	err    error
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	ev := events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}
	s.events = append(s.events, ev)
	return ev, nil
}

type stubNotifier struct {
	seen []events.Event
	err  error
}

func (n *stubNotifier) Notify(_ context.Context, ev events.Event) error {
	n.seen = append(n.seen, ev)
	return n.err
}

func TestBusEmitPersistsAndNotifies(t *testing.T) {
	store := &stubStore{}
	notifier := &stubNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), events.TopicPaymentPaid, "booking_1700000000000", map[string]any{
		"orderId": "booking_1700000000000",
		"amount":  "250",
	})
	require.NoError(t, err)
	require.Equal(t, events.TopicPaymentPaid, ev.Topic)
	require.Equal(t, "booking_1700000000000", ev.AggregateID)
	require.Len(t, store.events, 1)
	require.Len(t, notifier.seen, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, "250", payload["amount"])
}

func TestBusEmitValidation(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "", "agg-1", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicBookingCreated, "", nil)
	require.Error(t, err)
}

func TestBusEmitNilPayload(t *testing.T) {
	store := &stubStore{}
	bus := &events.Bus{Store: store}

	ev, err := bus.Emit(context.Background(), events.TopicBookingCreated, "agg-1", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(ev.Payload))
}

func TestBusEmitNotifierErrorsJoined(t *testing.T) {
	store := &stubStore{}
	failing := &stubNotifier{err: errors.New("smtp down")}
	ok := &stubNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{failing, ok}}

	_, err := bus.Emit(context.Background(), events.TopicBookingConfirmed, "agg-2", map[string]string{"k": "v"})
	require.Error(t, err)
	// persistence succeeded and every notifier ran despite the first failing
	require.Len(t, store.events, 1)
	require.Len(t, ok.seen, 1)
}

func TestBusEmitStoreError(t *testing.T) {
	notifier := &stubNotifier{}
	bus := &events.Bus{Store: &stubStore{err: errors.New("db down")}, Notifiers: []events.Notifier{notifier}}

	_, err := bus.Emit(context.Background(), events.TopicPaymentFailed, "agg-3", nil)
	require.Error(t, err)
	require.Empty(t, notifier.seen)
}
