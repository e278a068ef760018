// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"krishi-sahayak/internal/models"
)

// MemoryStore is an in-memory ApplicationStore used by tests and local
// development. It mirrors the postgres semantics: one record per
// (ownerID, loanType), upserts replace status and details wholesale.
type MemoryStore struct {
	mu   sync.Mutex
	apps map[Filter]*models.LoanApplication
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{apps: map[Filter]*models.LoanApplication{}}
}

func (s *MemoryStore) Upsert(_ context.Context, filter Filter, patch Patch) (*models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	app, ok := s.apps[filter]
	if !ok {
		app = &models.LoanApplication{
			ID:        uuid.New().String(),
			OwnerID:   filter.OwnerID,
			LoanType:  filter.LoanType,
			CreatedAt: now,
		}
		s.apps[filter] = app
	}
	app.Status = patch.Status
	app.Details = cloneDetails(patch.Details)
	app.UpdatedAt = now

	return copyApplication(app), nil
}

func (s *MemoryStore) Find(_ context.Context, filter Filter) (*models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[filter]
	if !ok {
		return nil, nil
	}
	return copyApplication(app), nil
}

func (s *MemoryStore) List(_ context.Context, ownerID string) ([]*models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var apps []*models.LoanApplication
	for _, app := range s.apps {
		if app.OwnerID == ownerID {
			apps = append(apps, copyApplication(app))
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].UpdatedAt.After(apps[j].UpdatedAt)
	})
	return apps, nil
}

// MemoryUserStore is an in-memory UserStore keyed by mobile number.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: map[string]*models.User{}}
}

func (s *MemoryUserStore) FindOrCreate(_ context.Context, mobileNumber, name, language string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[mobileNumber]; ok {
		cp := *u
		return &cp, nil
	}
	if name == "" {
		name = "Farmer"
	}
	if language == "" {
		language = "Hindi"
	}
	u := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		MobileNumber: mobileNumber,
		Language:     language,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[mobileNumber] = u
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) FindByMobile(_ context.Context, mobileNumber string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[mobileNumber]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func cloneDetails(details map[string]interface{}) map[string]interface{} {
	cloned := make(map[string]interface{}, len(details))
	for k, v := range details {
		cloned[k] = v
	}
	return cloned
}

func copyApplication(app *models.LoanApplication) *models.LoanApplication {
	cp := *app
	cp.Details = cloneDetails(app.Details)
	return &cp
}
