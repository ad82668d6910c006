package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sehaty-app/backend-sehaty/internal/common"
	"github.com/sehaty-app/backend-sehaty/internal/events"
	"github.com/sehaty-app/backend-sehaty/internal/kashier"
	"github.com/sehaty-app/backend-sehaty/internal/obs"
)

// CreateInput carries the caller-supplied fields for a new booking.
type CreateInput struct {
	ServiceType string `json:"serviceType" validate:"required,oneof=doctor home_visit nursing physiotherapy"`
	ServiceID   string `json:"serviceId" validate:"omitempty,max=64"`
	PatientName string `json:"patientName" validate:"required,max=120"`
	Phone       string `json:"phone" validate:"required,min=8,max=20"`
	Address     string `json:"address" validate:"omitempty,max=300"`
	Notes       string `json:"notes" validate:"omitempty,max=1000"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,max=20"`
	Amount      any    `json:"amount" validate:"required"`
}

// Service coordinates booking creation, cancellation, and payment settlement.
type Service struct {
	Store    Store
	Validate *validator.Validate
	Events   *events.Bus
	NowMilli func() int64
}

// NewOrderID generates a payment order identifier for this booking attempt.
func (s *Service) NewOrderID() string {
	millis := time.Now().UnixMilli()
	if s.NowMilli != nil {
		millis = s.NowMilli()
	}
	return fmt.Sprintf("booking_%d", millis)
}

// Create validates the input, prices it via the amount normalizer, and
// persists a pending booking carrying a fresh order id.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (Booking, error) {
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return Booking{}, common.NewAppError("VALIDATION_ERROR", "invalid booking payload", 400, err)
		}
	}
	price, err := kashier.NormalizeAmount(in.Amount)
	if err != nil {
		return Booking{}, common.NewAppError("VALIDATION_ERROR", "invalid booking amount", 400, err)
	}

	created, err := s.Store.Insert(ctx, Booking{
		OrderID:       s.NewOrderID(),
		UserID:        userID,
		ServiceType:   in.ServiceType,
		ServiceID:     strings.TrimSpace(in.ServiceID),
		PatientName:   strings.TrimSpace(in.PatientName),
		Phone:         strings.TrimSpace(in.Phone),
		Address:       strings.TrimSpace(in.Address),
		Notes:         strings.TrimSpace(in.Notes),
		Date:          in.Date,
		Time:          in.Time,
		Price:         price,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
	})
	if err != nil {
		return Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	s.countStatus(StatusPending)
	s.emit(ctx, events.TopicBookingCreated, created)
	return created, nil
}

// ListMine returns the caller's bookings, newest first.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error) {
	return s.Store.ListByUser(ctx, userID, limit, offset)
}

// Cancel cancels the caller's own pending booking.
func (s *Service) Cancel(ctx context.Context, userID, bookingID uuid.UUID) (Booking, error) {
	existing, err := s.Store.GetByID(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if existing.UserID != userID {
		return Booking{}, ErrNotFound
	}
	if existing.Status != StatusPending {
		return Booking{}, common.NewAppError("INVALID_STATE", "only pending bookings can be cancelled", 409, nil)
	}
	updated, err := s.Store.UpdateStatus(ctx, bookingID, StatusCancelled)
	if err != nil {
		return Booking{}, err
	}
	s.countStatus(StatusCancelled)
	s.emit(ctx, events.TopicBookingCancelled, updated)
	return updated, nil
}

// adminTransitions enumerates the allowed status moves.
var adminTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// SetStatus applies an administrative status transition.
func (s *Service) SetStatus(ctx context.Context, bookingID uuid.UUID, status string) (Booking, error) {
	existing, err := s.Store.GetByID(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if !transitionAllowed(existing.Status, status) {
		return Booking{}, common.NewAppError("INVALID_STATE",
			fmt.Sprintf("cannot move booking from %s to %s", existing.Status, status), 409, nil)
	}
	updated, err := s.Store.UpdateStatus(ctx, bookingID, status)
	if err != nil {
		return Booking{}, err
	}
	s.countStatus(status)
	switch status {
	case StatusConfirmed:
		s.emit(ctx, events.TopicBookingConfirmed, updated)
	case StatusCancelled:
		s.emit(ctx, events.TopicBookingCancelled, updated)
	}
	return updated, nil
}

// SettlePayment records a verified payment outcome on the booking carrying
// orderID. A paid booking is confirmed; a failed payment leaves the booking
// pending so the patient can retry. Safe to call multiple times.
func (s *Service) SettlePayment(ctx context.Context, orderID, paymentStatus string) error {
	existing, err := s.Store.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	switch paymentStatus {
	case PaymentPaid:
		if existing.PaymentStatus == PaymentPaid {
			return nil
		}
		status := existing.Status
		if status == StatusPending {
			status = StatusConfirmed
		}
		updated, err := s.Store.UpdatePayment(ctx, orderID, PaymentPaid, status)
		if err != nil {
			return err
		}
		if status == StatusConfirmed && existing.Status == StatusPending {
			s.countStatus(StatusConfirmed)
			s.emit(ctx, events.TopicBookingConfirmed, updated)
		}
		return nil
	case PaymentFailed:
		if existing.PaymentStatus != PaymentUnpaid {
			return nil
		}
		_, err := s.Store.UpdatePayment(ctx, orderID, PaymentFailed, existing.Status)
		return err
	default:
		return fmt.Errorf("booking: unsupported payment status %q", paymentStatus)
	}
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range adminTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *Service) countStatus(status string) {
	if obs.BookingTotal != nil {
		obs.BookingTotal.WithLabelValues(status).Inc()
	}
}

func (s *Service) emit(ctx context.Context, topic string, b Booking) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"bookingId":   b.ID.String(),
		"orderId":     b.OrderID,
		"userId":      b.UserID.String(),
		"serviceType": b.ServiceType,
		"date":        b.Date,
		"time":        b.Time,
	}
	_, _ = s.Events.Emit(ctx, topic, b.OrderID, payload)
}
