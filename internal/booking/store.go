package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Payment states carried on the booking row.
const (
	PaymentUnpaid = "UNPAID"
	PaymentPaid   = "PAID"
	PaymentFailed = "FAILED"
)

// Service types a booking can be made for.
const (
	ServiceDoctor        = "doctor"
	ServiceHomeVisit     = "home_visit"
	ServiceNursing       = "nursing"
	ServicePhysiotherapy = "physiotherapy"
)

// ErrNotFound indicates no booking matches the requested identifier.
var ErrNotFound = errors.New("booking: not found")

// Booking is a persisted service booking. OrderID doubles as the payment
// order identifier sent to the gateway.
type Booking struct {
	ID            uuid.UUID `json:"id"`
	OrderID       string    `json:"orderId"`
	UserID        uuid.UUID `json:"userId"`
	ServiceType   string    `json:"serviceType"`
	ServiceID     string    `json:"serviceId,omitempty"`
	PatientName   string    `json:"patientName"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Price         string    `json:"price"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store defines the persistence operations the booking service needs.
type Store interface {
	Insert(ctx context.Context, b Booking) (Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (Booking, error)
	GetByOrderID(ctx context.Context, orderID string) (Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (Booking, error)
	UpdatePayment(ctx context.Context, orderID, paymentStatus, status string) (Booking, error)
}

const bookingColumns = `id, order_id, user_id, service_type, service_id, patient_name,
	phone, address, notes, visit_date, visit_time, price, status, payment_status,
	created_at, updated_at`

// PGStore is the Postgres-backed booking store.
type PGStore struct {
	Pool *pgxpool.Pool
}

// Insert implements Store.
func (s PGStore) Insert(ctx context.Context, b Booking) (Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO bookings (id, order_id, user_id, service_type, service_id, patient_name,
		                       phone, address, notes, visit_date, visit_time, price, status, payment_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING created_at, updated_at`,
		b.ID, b.OrderID, b.UserID, b.ServiceType, b.ServiceID, b.PatientName,
		b.Phone, b.Address, b.Notes, b.Date, b.Time, b.Price, b.Status, b.PaymentStatus)
	if err := row.Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return Booking{}, err
	}
	return b, nil
}

// GetByID implements Store.
func (s PGStore) GetByID(ctx context.Context, id uuid.UUID) (Booking, error) {
	return scanBooking(s.Pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

// GetByOrderID implements Store.
func (s PGStore) GetByOrderID(ctx context.Context, orderID string) (Booking, error) {
	return scanBooking(s.Pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE order_id = $1`, orderID))
}

// ListByUser implements Store.
func (s PGStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListAll implements Store. An empty status matches every booking.
func (s PGStore) ListAll(ctx context.Context, status string, limit, offset int) ([]Booking, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// UpdateStatus implements Store.
func (s PGStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (Booking, error) {
	return scanBooking(s.Pool.QueryRow(ctx,
		`UPDATE bookings SET status = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+bookingColumns, id, status))
}

// UpdatePayment implements Store.
func (s PGStore) UpdatePayment(ctx context.Context, orderID, paymentStatus, status string) (Booking, error) {
	return scanBooking(s.Pool.QueryRow(ctx,
		`UPDATE bookings SET payment_status = $2, status = $3, updated_at = now()
		 WHERE order_id = $1
		 RETURNING `+bookingColumns, orderID, paymentStatus, status))
}

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.OrderID, &b.UserID, &b.ServiceType, &b.ServiceID, &b.PatientName,
		&b.Phone, &b.Address, &b.Notes, &b.Date, &b.Time, &b.Price, &b.Status, &b.PaymentStatus,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.OrderID, &b.UserID, &b.ServiceType, &b.ServiceID, &b.PatientName,
			&b.Phone, &b.Address, &b.Notes, &b.Date, &b.Time, &b.Price, &b.Status, &b.PaymentStatus,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
