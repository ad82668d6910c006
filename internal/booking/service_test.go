package booking_test

import (
	"context"
	"strings"
	"testing"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sehaty-app/backend-sehaty/internal/booking"
	"github.com/sehaty-app/backend-sehaty/internal/events"
)

type memBookings struct {
	byID      map[uuid.UUID]booking.Booking
	byOrderID map[string]uuid.UUID
}

func newMemBookings() *memBookings {
	return &memBookings{byID: map[uuid.UUID]booking.Booking{}, byOrderID: map[string]uuid.UUID{}}
}

func (m *memBookings) Insert(_ context.Context, b booking.Booking) (booking.Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.byID[b.ID] = b
	m.byOrderID[b.OrderID] = b.ID
	return b, nil
}

func (m *memBookings) GetByID(_ context.Context, id uuid.UUID) (booking.Booking, error) {
	b, ok := m.byID[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (m *memBookings) GetByOrderID(_ context.Context, orderID string) (booking.Booking, error) {
	id, ok := m.byOrderID[orderID]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *memBookings) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]booking.Booking, error) {
	var out []booking.Booking
	for _, b := range m.byID {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) ListAll(_ context.Context, status string, _, _ int) ([]booking.Booking, error) {
	var out []booking.Booking
	for _, b := range m.byID {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) UpdateStatus(_ context.Context, id uuid.UUID, status string) (booking.Booking, error) {
	b, ok := m.byID[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	m.byID[id] = b
	return b, nil
}

func (m *memBookings) UpdatePayment(_ context.Context, orderID, paymentStatus, status string) (booking.Booking, error) {
	id, ok := m.byOrderID[orderID]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	b := m.byID[id]
	b.PaymentStatus = paymentStatus
	b.Status = status
	b.UpdatedAt = time.Now()
	m.byID[id] = b
	return b, nil
}

type captureEvents struct {
	topics []string
}

func (c *captureEvents) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}, nil
}

func newTestService() (*booking.Service, *memBookings, *captureEvents) {
	store := newMemBookings()
	capture := &captureEvents{}
	svc := &booking.Service{
		Store:    store,
		Validate: validator.New(),
		Events:   &events.Bus{Store: capture},
		NowMilli: func() int64 { return 1700000000000 },
	}
	return svc, store, capture
}

func validInput() booking.CreateInput {
	return booking.CreateInput{
		ServiceType: booking.ServiceDoctor,
		ServiceID:   "doc-1",
		PatientName: "أحمد علي",
		Phone:       "+201001234567",
		Date:        "2026-09-15",
		Time:        "14:30",
		Amount:      "250",
	}
}

func TestCreateBooking(t *testing.T) {
	svc, _, capture := newTestService()
	userID := uuid.New()

	created, err := svc.Create(context.Background(), userID, validInput())
	require.NoError(t, err)
	require.Equal(t, "booking_1700000000000", created.OrderID)
	require.Equal(t, booking.StatusPending, created.Status)
	require.Equal(t, booking.PaymentUnpaid, created.PaymentStatus)
	require.Equal(t, "250", created.Price)
	require.Equal(t, []string{events.TopicBookingCreated}, capture.topics)
}

func TestCreateBookingValidation(t *testing.T) {
	svc, _, _ := newTestService()
	userID := uuid.New()

	cases := []func(*booking.CreateInput){
		func(in *booking.CreateInput) { in.ServiceType = "spa" },
		func(in *booking.CreateInput) { in.PatientName = "" },
		func(in *booking.CreateInput) { in.Phone = "123" },
		func(in *booking.CreateInput) { in.Date = "15/09/2026" },
		func(in *booking.CreateInput) { in.Amount = "-50" },
		func(in *booking.CreateInput) { in.Amount = nil },
	}
	for i, mutate := range cases {
		in := validInput()
		mutate(&in)
		_, err := svc.Create(context.Background(), userID, in)
		require.Error(t, err, "case %d", i)
	}
}

func TestCancelOwnPendingBooking(t *testing.T) {
	svc, _, capture := newTestService()
	userID := uuid.New()
	created, err := svc.Create(context.Background(), userID, validInput())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), userID, created.ID)
	require.NoError(t, err)
	require.Equal(t, booking.StatusCancelled, cancelled.Status)
	require.Contains(t, capture.topics, events.TopicBookingCancelled)

	// A second cancel is rejected.
	_, err = svc.Cancel(context.Background(), userID, created.ID)
	require.Error(t, err)
}

func TestCancelForeignBooking(t *testing.T) {
	svc, _, _ := newTestService()
	created, err := svc.Create(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), uuid.New(), created.ID)
	require.ErrorIs(t, err, booking.ErrNotFound)
}

func TestAdminTransitions(t *testing.T) {
	svc, _, capture := newTestService()
	created, err := svc.Create(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)

	confirmed, err := svc.SetStatus(context.Background(), created.ID, booking.StatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, booking.StatusConfirmed, confirmed.Status)
	require.Contains(t, capture.topics, events.TopicBookingConfirmed)

	completed, err := svc.SetStatus(context.Background(), created.ID, booking.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, booking.StatusCompleted, completed.Status)

	// Completed is terminal.
	_, err = svc.SetStatus(context.Background(), created.ID, booking.StatusCancelled)
	require.Error(t, err)
}

func TestSettlePaymentConfirmsBooking(t *testing.T) {
	svc, store, capture := newTestService()
	created, err := svc.Create(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)

	require.NoError(t, svc.SettlePayment(context.Background(), created.OrderID, booking.PaymentPaid))
	settled := store.byID[created.ID]
	require.Equal(t, booking.PaymentPaid, settled.PaymentStatus)
	require.Equal(t, booking.StatusConfirmed, settled.Status)
	require.Contains(t, capture.topics, events.TopicBookingConfirmed)

	// Duplicate settlement is a no-op and emits nothing further.
	seen := len(capture.topics)
	require.NoError(t, svc.SettlePayment(context.Background(), created.OrderID, booking.PaymentPaid))
	require.Len(t, capture.topics, seen)
}

func TestSettlePaymentFailureKeepsBookingPending(t *testing.T) {
	svc, store, _ := newTestService()
	created, err := svc.Create(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)

	require.NoError(t, svc.SettlePayment(context.Background(), created.OrderID, booking.PaymentFailed))
	settled := store.byID[created.ID]
	require.Equal(t, booking.PaymentFailed, settled.PaymentStatus)
	require.Equal(t, booking.StatusPending, settled.Status)
}

func TestOrderIDPrefix(t *testing.T) {
	svc := &booking.Service{}
	orderID := svc.NewOrderID()
	require.True(t, strings.HasPrefix(orderID, "booking_"))
}
