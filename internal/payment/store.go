package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Payment statuses. A payment starts PENDING and moves to PAID or FAILED
// exactly once; later webhook deliveries for the same order are no-ops.
const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
	StatusFailed  = "FAILED"
)

// ErrNotFound indicates no payment row exists for the requested order.
var ErrNotFound = errors.New("payment: not found")

// Payment is a persisted payment attempt keyed by the order identifier.
type Payment struct {
	ID          uuid.UUID
	OrderID     string
	UserID      uuid.UUID
	Amount      string
	Currency    string
	Status      string
	CheckoutURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store defines the persistence operations the payment boundary needs.
type Store interface {
	// CreatePending inserts a PENDING row for the order, or refreshes the
	// existing pending row when the client retries before paying.
	CreatePending(ctx context.Context, p Payment) (Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (Payment, error)
	// ApplyStatus transitions the payment for orderID out of PENDING. It
	// returns applied=false without error when the row already left PENDING,
	// which makes duplicate webhook deliveries harmless.
	ApplyStatus(ctx context.Context, orderID, status string, payload []byte) (Payment, bool, error)
	InsertEvent(ctx context.Context, paymentID uuid.UUID, status string, payload []byte) error
}

// NormalizeStatus maps gateway status vocabulary onto the local payment
// lifecycle. Unrecognised values stay PENDING.
func NormalizeStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID", "SUCCESS", "SUCCESSFUL", "CAPTURED", "SETTLED":
		return StatusPaid
	case "FAILED", "FAILURE", "CANCELLED", "CANCELED", "DECLINED", "EXPIRED":
		return StatusFailed
	default:
		return StatusPending
	}
}

// PGStore is the Postgres-backed payment store.
type PGStore struct {
	Pool *pgxpool.Pool
}

// CreatePending implements Store.
func (s PGStore) CreatePending(ctx context.Context, p Payment) (Payment, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO payments (id, order_id, user_id, amount, currency, status, checkout_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (order_id)
		 DO UPDATE SET amount = EXCLUDED.amount,
		               currency = EXCLUDED.currency,
		               checkout_url = EXCLUDED.checkout_url,
		               updated_at = now()
		 WHERE payments.status = 'PENDING'
		 RETURNING id, status, created_at, updated_at`,
		p.ID, p.OrderID, p.UserID, p.Amount, p.Currency, StatusPending, p.CheckoutURL)
	err := row.Scan(&p.ID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// The order already settled; return the final row untouched.
		return s.GetByOrderID(ctx, p.OrderID)
	}
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// GetByOrderID implements Store.
func (s PGStore) GetByOrderID(ctx context.Context, orderID string) (Payment, error) {
	var p Payment
	row := s.Pool.QueryRow(ctx,
		`SELECT id, order_id, user_id, amount, currency, status, checkout_url, created_at, updated_at
		 FROM payments
		 WHERE order_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, orderID)
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Currency, &p.Status, &p.CheckoutURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// ApplyStatus implements Store. The WHERE clause makes the transition a
// single-shot: only a PENDING row is updated, so replays change nothing.
func (s PGStore) ApplyStatus(ctx context.Context, orderID, status string, payload []byte) (Payment, bool, error) {
	var p Payment
	row := s.Pool.QueryRow(ctx,
		`UPDATE payments
		 SET status = $2, updated_at = now()
		 WHERE order_id = $1 AND status = 'PENDING'
		 RETURNING id, order_id, user_id, amount, currency, status, checkout_url, created_at, updated_at`,
		orderID, status)
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Currency, &p.Status, &p.CheckoutURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := s.GetByOrderID(ctx, orderID)
		if getErr != nil {
			return Payment{}, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return Payment{}, false, err
	}
	if insErr := s.InsertEvent(ctx, p.ID, status, payload); insErr != nil {
		return p, true, insErr
	}
	return p, true, nil
}

// InsertEvent implements Store.
func (s PGStore) InsertEvent(ctx context.Context, paymentID uuid.UUID, status string, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO payment_events (id, payment_id, status, payload)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New(), paymentID, status, payload)
	return err
}
