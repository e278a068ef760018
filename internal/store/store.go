// internal/store/store.go

// Package store is the narrow persistence adapter for application and user
// records. The only application identity key is (ownerID, loanType); no code
// path may key on a contact value buried in the details document.
package store

import (
	"context"

	"krishi-sahayak/internal/models"
)

// Filter is the identity key for find-or-create. Both parts are mandatory.
type Filter struct {
	OwnerID  string
	LoanType models.LoanType
}

// Patch is the full replacement content written by an upsert. Upserts are
// last-write-wins: the stored record reflects exactly one patch in full.
type Patch struct {
	Status  models.ApplicationStatus
	Details map[string]interface{}
}

// ApplicationStore persists loan applications. Upsert must be atomic
// (a single find-and-modify, not a read-modify-write pair): it is the sole
// mutual-exclusion primitive for racing saves.
type ApplicationStore interface {
	Upsert(ctx context.Context, filter Filter, patch Patch) (*models.LoanApplication, error)
	Find(ctx context.Context, filter Filter) (*models.LoanApplication, error)
	List(ctx context.Context, ownerID string) ([]*models.LoanApplication, error)
}

// UserStore persists farmers, keyed by unique mobile number.
type UserStore interface {
	FindOrCreate(ctx context.Context, mobileNumber, name, language string) (*models.User, error)
	FindByMobile(ctx context.Context, mobileNumber string) (*models.User, error)
}
