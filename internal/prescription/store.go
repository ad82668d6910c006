package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Fulfilment categories for submitted prescriptions.
const (
	CategoryPharmacy  = "pharmacy"
	CategoryLab       = "lab"
	CategoryRadiology = "radiology"
)

// Prescription lifecycle statuses.
const (
	StatusReceived   = "received"
	StatusProcessing = "processing"
	StatusFulfilled  = "fulfilled"
	StatusRejected   = "rejected"
)

// ErrNotFound indicates no prescription matches the requested identifier.
var ErrNotFound = errors.New("prescription: not found")

// Prescription is a patient-submitted medication or test request.
type Prescription struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	Category      string    `json:"category"`
	PatientName   string    `json:"patientName"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	Items         string    `json:"items,omitempty"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store defines the persistence operations for prescriptions.
type Store interface {
	Insert(ctx context.Context, p Prescription) (Prescription, error)
	GetByID(ctx context.Context, id uuid.UUID) (Prescription, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Prescription, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (Prescription, error)
}

// PGStore is the Postgres-backed prescription store.
type PGStore struct {
	Pool *pgxpool.Pool
}

const prescriptionColumns = `id, user_id, category, patient_name, phone, address, items, attachment_url, status, created_at, updated_at`

func scanPrescription(row pgx.Row) (Prescription, error) {
	var p Prescription
	err := row.Scan(
		&p.ID, &p.UserID, &p.Category, &p.PatientName, &p.Phone, &p.Address,
		&p.Items, &p.AttachmentURL, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Prescription{}, ErrNotFound
	}
	return p, err
}

func collectPrescriptions(rows pgx.Rows) ([]Prescription, error) {
	defer rows.Close()
	var out []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s PGStore) Insert(ctx context.Context, p Prescription) (Prescription, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO prescriptions (id, user_id, category, patient_name, phone, address, items, attachment_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+prescriptionColumns,
		p.ID, p.UserID, p.Category, p.PatientName, p.Phone, p.Address, p.Items, p.AttachmentURL, p.Status,
	)
	return scanPrescription(row)
}

func (s PGStore) GetByID(ctx context.Context, id uuid.UUID) (Prescription, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id)
	return scanPrescription(row)
}

func (s PGStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Prescription, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+prescriptionColumns+` FROM prescriptions
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPrescriptions(rows)
}

func (s PGStore) ListAll(ctx context.Context, status string, limit, offset int) ([]Prescription, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+prescriptionColumns+` FROM prescriptions
		 WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPrescriptions(rows)
}

func (s PGStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (Prescription, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE prescriptions SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+prescriptionColumns,
		id, status)
	return scanPrescription(row)
}
