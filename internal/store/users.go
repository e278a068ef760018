// internal/store/users.go
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"krishi-sahayak/internal/models"
)

const userColumns = `id, name, mobile_number, language, created_at`

// FindOrCreate returns the user for a mobile number, creating the record on
// first login. The no-op DO UPDATE makes the statement return the existing
// row atomically instead of racing a separate SELECT.
func (s *PostgresStore) FindOrCreate(ctx context.Context, mobileNumber, name, language string) (*models.User, error) {
	if name == "" {
		name = "Farmer"
	}
	if language == "" {
		language = "Hindi"
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mobile_number) DO UPDATE
		SET mobile_number = EXCLUDED.mobile_number
		RETURNING `+userColumns,
		uuid.New().String(), name, mobileNumber, language, time.Now().UTC(),
	)
	return scanUser(row)
}

// FindByMobile resolves a contact value to a user, or nil when unknown.
// Collaborators with only a caller id (e.g. an inbound voice call) must go
// through this before touching the lifecycle engine.
func (s *PostgresStore) FindByMobile(ctx context.Context, mobileNumber string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE mobile_number = $1`,
		mobileNumber,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.MobileNumber, &u.Language, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
