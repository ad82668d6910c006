package prescription_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sehaty-app/backend-sehaty/internal/common"
	"github.com/sehaty-app/backend-sehaty/internal/events"
	"github.com/sehaty-app/backend-sehaty/internal/prescription"
)

type memPrescriptions struct {
	rows map[uuid.UUID]prescription.Prescription
}

func newMemPrescriptions() *memPrescriptions {
	return &memPrescriptions{rows: map[uuid.UUID]prescription.Prescription{}}
}

func (m *memPrescriptions) Insert(_ context.Context, p prescription.Prescription) (prescription.Prescription, error) {
	m.rows[p.ID] = p
	return p, nil
}

func (m *memPrescriptions) GetByID(_ context.Context, id uuid.UUID) (prescription.Prescription, error) {
	p, ok := m.rows[id]
	if !ok {
		return prescription.Prescription{}, prescription.ErrNotFound
	}
	return p, nil
}

func (m *memPrescriptions) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]prescription.Prescription, error) {
	var out []prescription.Prescription
	for _, p := range m.rows {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPrescriptions) ListAll(_ context.Context, status string, _, _ int) ([]prescription.Prescription, error) {
	var out []prescription.Prescription
	for _, p := range m.rows {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPrescriptions) UpdateStatus(_ context.Context, id uuid.UUID, status string) (prescription.Prescription, error) {
	p, ok := m.rows[id]
	if !ok {
		return prescription.Prescription{}, prescription.ErrNotFound
	}
	p.Status = status
	m.rows[id] = p
	return p, nil
}

type captureEvents struct {
	topics []string
}

func (c *captureEvents) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}, nil
}

func newTestService() (*prescription.Service, *memPrescriptions, *captureEvents) {
	store := newMemPrescriptions()
	capture := &captureEvents{}
	svc := &prescription.Service{
		Store:    store,
		Validate: validator.New(),
		Events:   &events.Bus{Store: capture},
	}
	return svc, store, capture
}

func validInput() prescription.SubmitInput {
	return prescription.SubmitInput{
		Category:    prescription.CategoryPharmacy,
		PatientName: "سارة محمود",
		Phone:       "+201001234567",
		Address:     "١٢ شارع التحرير، الدقي، الجيزة",
		Items:       "Panadol Extra x2\nAugmentin 1g x1",
	}
}

func TestSubmit(t *testing.T) {
	svc, store, capture := newTestService()
	userID := uuid.New()

	created, err := svc.Submit(context.Background(), userID, validInput())
	require.NoError(t, err)
	require.Equal(t, prescription.StatusReceived, created.Status)
	require.Equal(t, userID, created.UserID)
	require.NotEqual(t, uuid.Nil, created.ID)
	require.Contains(t, store.rows, created.ID)
	require.Equal(t, []string{events.TopicPrescriptionReceived}, capture.topics)
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newTestService()

	cases := []struct {
		name   string
		mutate func(*prescription.SubmitInput)
	}{
		{"unknown category", func(in *prescription.SubmitInput) { in.Category = "dental" }},
		{"missing name", func(in *prescription.SubmitInput) { in.PatientName = "" }},
		{"short phone", func(in *prescription.SubmitInput) { in.Phone = "123" }},
		{"missing address", func(in *prescription.SubmitInput) { in.Address = "" }},
		{"bad attachment url", func(in *prescription.SubmitInput) { in.AttachmentURL = "not a url" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Submit(context.Background(), uuid.New(), in)
			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, "VALIDATION_ERROR", appErr.Code)
		})
	}
}

func TestSubmitRequiresItemsOrAttachment(t *testing.T) {
	svc, _, _ := newTestService()

	in := validInput()
	in.Items = ""
	_, err := svc.Submit(context.Background(), uuid.New(), in)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	in.AttachmentURL = "https://cdn.sehaty.example/uploads/rx-1001.jpg"
	created, err := svc.Submit(context.Background(), uuid.New(), in)
	require.NoError(t, err)
	require.Empty(t, created.Items)
	require.NotEmpty(t, created.AttachmentURL)
}

func TestStatusLifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	created, err := svc.Submit(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)

	updated, err := svc.SetStatus(context.Background(), created.ID, prescription.StatusProcessing)
	require.NoError(t, err)
	require.Equal(t, prescription.StatusProcessing, updated.Status)

	updated, err = svc.SetStatus(context.Background(), created.ID, prescription.StatusFulfilled)
	require.NoError(t, err)
	require.Equal(t, prescription.StatusFulfilled, updated.Status)

	// Fulfilled is terminal.
	_, err = svc.SetStatus(context.Background(), created.ID, prescription.StatusProcessing)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)
}

func TestStatusSkipRejected(t *testing.T) {
	svc, _, _ := newTestService()
	created, err := svc.Submit(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)

	// Received cannot jump straight to fulfilled.
	_, err = svc.SetStatus(context.Background(), created.ID, prescription.StatusFulfilled)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)

	updated, err := svc.SetStatus(context.Background(), created.ID, prescription.StatusRejected)
	require.NoError(t, err)
	require.Equal(t, prescription.StatusRejected, updated.Status)
}

func TestSetStatusUnknownID(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.SetStatus(context.Background(), uuid.New(), prescription.StatusProcessing)
	require.ErrorIs(t, err, prescription.ErrNotFound)
}

func TestListMineScopedToUser(t *testing.T) {
	svc, _, _ := newTestService()
	mine := uuid.New()

	_, err := svc.Submit(context.Background(), mine, validInput())
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)

	list, err := svc.ListMine(context.Background(), mine, 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, mine, list[0].UserID)
}
