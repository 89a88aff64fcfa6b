package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository persists profile records keyed by identity id.
type Repository interface {
	Get(ctx context.Context, identityID string) (Record, error)
	Insert(ctx context.Context, record Record) (Record, error)
	Update(ctx context.Context, identityID string, patch Patch) (Record, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed profile repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `identity_id, full_name, phone, date_of_birth, occupation, monthly_income,
        financial_goals, pin_digest, pin_created_at, created_at, updated_at`

// Get fetches the profile for an identity.
func (r *PostgresRepository) Get(ctx context.Context, identityID string) (Record, error) {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return Record{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM user_profiles WHERE identity_id = $1`, id)
	return scanRecord(row)
}

// Insert creates the profile record.
func (r *PostgresRepository) Insert(ctx context.Context, record Record) (Record, error) {
	id, err := uuid.Parse(record.IdentityID)
	if err != nil {
		return Record{}, fmt.Errorf("parse identity id: %w", err)
	}
	now := time.Now().UTC()
	row := r.db.QueryRow(ctx, `INSERT INTO user_profiles (identity_id, full_name, phone, date_of_birth, occupation,
        monthly_income, financial_goals, pin_digest, pin_created_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
        RETURNING `+selectColumns,
		id, record.FullName, record.Phone, record.DateOfBirth, record.Occupation,
		record.MonthlyIncome, record.FinancialGoals, record.PINDigest, record.PINCreatedAt, now)
	stored, err := scanRecord(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Record{}, ErrExists
	}
	return stored, err
}

// Update applies patch in one statement; absent fields keep their value.
func (r *PostgresRepository) Update(ctx context.Context, identityID string, patch Patch) (Record, error) {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return Record{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `UPDATE user_profiles SET
        full_name = COALESCE($2, full_name),
        phone = COALESCE($3, phone),
        date_of_birth = COALESCE($4, date_of_birth),
        occupation = COALESCE($5, occupation),
        monthly_income = COALESCE($6, monthly_income),
        financial_goals = COALESCE($7, financial_goals),
        pin_digest = COALESCE($8, pin_digest),
        pin_created_at = COALESCE($9, pin_created_at),
        updated_at = now()
        WHERE identity_id = $1
        RETURNING `+selectColumns,
		id, patch.FullName, patch.Phone, patch.DateOfBirth, patch.Occupation,
		patch.MonthlyIncome, patch.FinancialGoals, patch.PINDigest, patch.PINCreatedAt)
	return scanRecord(row)
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		id     uuid.UUID
		record Record
	)
	err := row.Scan(&id, &record.FullName, &record.Phone, &record.DateOfBirth, &record.Occupation,
		&record.MonthlyIncome, &record.FinancialGoals, &record.PINDigest, &record.PINCreatedAt,
		&record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	record.IdentityID = id.String()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}
