package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Roles assignable to users. Admin unlocks catalog management, booking
// administration, and site settings.
const (
	RolePatient = "patient"
	RoleAdmin   = "admin"
)

// ErrUserNotFound indicates no user exists for the requested identifier.
var ErrUserNotFound = errors.New("auth: user not found")

// ErrEmailTaken indicates the email is already registered.
var ErrEmailTaken = errors.New("auth: email already registered")

// UserRecord is the stored user row, password hash included.
type UserRecord struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store defines the persistence operations the auth service needs.
type Store interface {
	CreateUser(ctx context.Context, u UserRecord) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error)
}

// PGStore is the Postgres-backed user store.
type PGStore struct {
	Pool *pgxpool.Pool
}

// CreateUser implements Store.
func (s PGStore) CreateUser(ctx context.Context, u UserRecord) (UserRecord, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RolePatient
	}
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO users (id, name, email, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role)
	err := row.Scan(&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrEmailTaken
	}
	if err != nil {
		return UserRecord{}, err
	}
	return u, nil
}

// GetUserByEmail implements Store.
func (s PGStore) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	return s.scanUser(s.Pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, created_at, updated_at
		 FROM users WHERE email = $1`, email))
}

// GetUserByID implements Store.
func (s PGStore) GetUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	return s.scanUser(s.Pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, created_at, updated_at
		 FROM users WHERE id = $1`, id))
}

func (s PGStore) scanUser(row pgx.Row) (UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, err
	}
	return u, nil
}
