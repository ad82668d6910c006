package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Package categories mirror the service sections of the storefront.
const (
	CategoryClinic        = "clinic"
	CategorySurgery       = "surgery"
	CategoryNursing       = "nursing"
	CategoryPhysiotherapy = "physiotherapy"
	CategoryLab           = "lab"
	CategoryRadiology     = "radiology"
)

// ErrNotFound indicates no catalog entry matches the requested identifier.
var ErrNotFound = errors.New("catalog: not found")

// Doctor is a bookable practitioner in the directory.
type Doctor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	Bio       string    `json:"bio,omitempty"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	Price     string    `json:"price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ServicePackage is a priced offering such as a nursing package or lab test.
type ServicePackage struct {
	ID          uuid.UUID `json:"id"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store defines the persistence operations the catalog service needs.
type Store interface {
	ListDoctors(ctx context.Context, specialty, query string) ([]Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (Doctor, error)
	UpsertDoctor(ctx context.Context, d Doctor) (Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	ListPackages(ctx context.Context, category string) ([]ServicePackage, error)
	GetPackage(ctx context.Context, id uuid.UUID) (ServicePackage, error)
	UpsertPackage(ctx context.Context, p ServicePackage) (ServicePackage, error)
	DeletePackage(ctx context.Context, id uuid.UUID) error
}

// PGStore is the Postgres-backed catalog store.
type PGStore struct {
	Pool *pgxpool.Pool
}

// ListDoctors implements Store. Empty filters match everything; query
// performs a case-insensitive name search.
func (s PGStore) ListDoctors(ctx context.Context, specialty, query string) ([]Doctor, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, name, specialty, bio, photo_url, price, active, created_at, updated_at
		 FROM doctors
		 WHERE active
		   AND ($1 = '' OR specialty = $1)
		   AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		 ORDER BY name`, specialty, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty, &d.Bio, &d.PhotoURL, &d.Price, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDoctor implements Store.
func (s PGStore) GetDoctor(ctx context.Context, id uuid.UUID) (Doctor, error) {
	var d Doctor
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, specialty, bio, photo_url, price, active, created_at, updated_at
		 FROM doctors WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Specialty, &d.Bio, &d.PhotoURL, &d.Price, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Doctor{}, ErrNotFound
	}
	if err != nil {
		return Doctor{}, err
	}
	return d, nil
}

// UpsertDoctor implements Store.
func (s PGStore) UpsertDoctor(ctx context.Context, d Doctor) (Doctor, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO doctors (id, name, specialty, bio, photo_url, price, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, specialty = EXCLUDED.specialty, bio = EXCLUDED.bio,
		   photo_url = EXCLUDED.photo_url, price = EXCLUDED.price, active = EXCLUDED.active,
		   updated_at = now()
		 RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Specialty, d.Bio, d.PhotoURL, d.Price, d.Active).
		Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Doctor{}, err
	}
	return d, nil
}

// DeleteDoctor implements Store.
func (s PGStore) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPackages implements Store.
func (s PGStore) ListPackages(ctx context.Context, category string) ([]ServicePackage, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, category, name, description, price, active, created_at, updated_at
		 FROM service_packages
		 WHERE active AND ($1 = '' OR category = $1)
		 ORDER BY name`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ServicePackage
	for rows.Next() {
		var p ServicePackage
		if err := rows.Scan(&p.ID, &p.Category, &p.Name, &p.Description, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPackage implements Store.
func (s PGStore) GetPackage(ctx context.Context, id uuid.UUID) (ServicePackage, error) {
	var p ServicePackage
	err := s.Pool.QueryRow(ctx,
		`SELECT id, category, name, description, price, active, created_at, updated_at
		 FROM service_packages WHERE id = $1`, id).
		Scan(&p.ID, &p.Category, &p.Name, &p.Description, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ServicePackage{}, ErrNotFound
	}
	if err != nil {
		return ServicePackage{}, err
	}
	return p, nil
}

// UpsertPackage implements Store.
func (s PGStore) UpsertPackage(ctx context.Context, p ServicePackage) (ServicePackage, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO service_packages (id, category, name, description, price, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   category = EXCLUDED.category, name = EXCLUDED.name, description = EXCLUDED.description,
		   price = EXCLUDED.price, active = EXCLUDED.active, updated_at = now()
		 RETURNING created_at, updated_at`,
		p.ID, p.Category, p.Name, p.Description, p.Price, p.Active).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return ServicePackage{}, err
	}
	return p, nil
}

// DeletePackage implements Store.
func (s PGStore) DeletePackage(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM service_packages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
