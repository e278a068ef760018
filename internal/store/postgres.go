// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"krishi-sahayak/internal/models"
)

// PostgresStore implements ApplicationStore and UserStore on PostgreSQL.
// The unique index on (owner_id, loan_type) plus INSERT ... ON CONFLICT
// gives the atomic upsert the lifecycle engine relies on.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema bootstraps the tables and the identity-key index.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			mobile_number TEXT NOT NULL UNIQUE,
			language TEXT NOT NULL DEFAULT 'Hindi',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS loan_applications (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			loan_type TEXT NOT NULL,
			status TEXT NOT NULL,
			details JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (owner_id, loan_type)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const applicationColumns = `id, owner_id, loan_type, status, details, created_at, updated_at`

// Upsert writes the record for (ownerID, loanType) in one atomic statement,
// creating it on first write and fully replacing status/details afterwards.
func (s *PostgresStore) Upsert(ctx context.Context, filter Filter, patch Patch) (*models.LoanApplication, error) {
	detailsJSON, err := json.Marshal(patch.Details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO loan_applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (owner_id, loan_type) DO UPDATE
		SET status = EXCLUDED.status,
		    details = EXCLUDED.details,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+applicationColumns,
		uuid.New().String(),
		filter.OwnerID,
		filter.LoanType,
		patch.Status,
		detailsJSON,
		now,
	)
	return scanApplication(row)
}

// Find returns the record for (ownerID, loanType), or nil when absent.
func (s *PostgresStore) Find(ctx context.Context, filter Filter) (*models.LoanApplication, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM loan_applications
		WHERE owner_id = $1 AND loan_type = $2`,
		filter.OwnerID, filter.LoanType,
	)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return app, err
}

// List returns every record for an owner, newest update first.
func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]*models.LoanApplication, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM loan_applications
		WHERE owner_id = $1
		ORDER BY updated_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.LoanApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.LoanApplication, error) {
	var app models.LoanApplication
	var detailsJSON []byte
	err := row.Scan(
		&app.ID, &app.OwnerID, &app.LoanType, &app.Status,
		&detailsJSON, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(detailsJSON, &app.Details); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	return &app, nil
}
