// internal/lifecycle/service.go

// Package lifecycle implements the draft/submit state machine for loan
// applications. Drafts persist whatever the farmer has so far; validation
// happens only at submission, and a rejected submission leaves the stored
// record exactly as it was.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"krishi-sahayak/internal/common/errors"
	"krishi-sahayak/internal/common/logger"
	"krishi-sahayak/internal/common/metrics"
	"krishi-sahayak/internal/common/observability"
	"krishi-sahayak/internal/models"
	"krishi-sahayak/internal/schema"
	"krishi-sahayak/internal/store"
)

// OwnerResolver turns a caller credential into an owner identity.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, credential string) (string, error)
}

// Service is the application lifecycle engine.
type Service struct {
	store store.ApplicationStore
	auth  OwnerResolver
	log   logger.Logger
	obs   *observability.Observability
}

func NewService(appStore store.ApplicationStore, auth OwnerResolver, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: appStore, auth: auth, log: log}
}

// WithObservability attaches the otel instruments recorded per operation.
func (s *Service) WithObservability(obs *observability.Observability) *Service {
	s.obs = obs
	return s
}

func (s *Service) record(ctx context.Context, operation, status string, start time.Time) {
	if s.obs == nil {
		return
	}
	s.obs.RecordOperation(ctx, operation, status)
	s.obs.RecordDuration(ctx, operation, time.Since(start))
}

// SaveDraft persists a draft for (owner, loanType), overwriting any previous
// content for that key. Field content is NOT validated here; a draft with a
// malformed survey number or an out-of-range price saves fine. The only
// rejections are an unresolvable owner, an unknown loan type, and a payload
// carrying no mobile number at all.
func (s *Service) SaveDraft(ctx context.Context, credential string, loanType models.LoanType, details map[string]interface{}) (*models.LoanApplication, error) {
	start := time.Now()

	ownerID, err := s.auth.ResolveOwner(ctx, credential)
	if err != nil {
		s.record(ctx, "save_draft", "unauthorized", start)
		return nil, err
	}
	if !loanType.Valid() {
		return nil, errors.NewInvalidLoanTypeError(string(loanType))
	}

	details = normalizeDetails(details)
	if mobileOf(details) == "" {
		return nil, errors.NewMissingIdentifierError()
	}

	app, err := s.store.Upsert(ctx,
		store.Filter{OwnerID: ownerID, LoanType: loanType},
		store.Patch{Status: models.StatusDraft, Details: details},
	)
	if err != nil {
		s.log.WithError(err).Error("draft upsert failed", map[string]interface{}{
			"ownerId":  ownerID,
			"loanType": loanType,
		})
		s.record(ctx, "save_draft", "store_error", start)
		return nil, errors.NewStoreUnavailableError(err)
	}

	s.record(ctx, "save_draft", "ok", start)
	metrics.DraftsSaved.WithLabelValues(string(loanType)).Inc()
	s.log.Info("draft saved", map[string]interface{}{
		"ownerId":       ownerID,
		"loanType":      loanType,
		"applicationId": app.ID,
	})
	return app, nil
}

// Submit validates the full payload against the loan type's schema and, when
// every field passes, overwrites the record for (owner, loanType) as
// submitted. On validation failure the first violation in declared field
// order is returned and the store is not touched. Resubmission of an already
// submitted application is allowed and is last-write-wins.
func (s *Service) Submit(ctx context.Context, credential string, loanType models.LoanType, details map[string]interface{}) (*models.LoanApplication, error) {
	start := time.Now()

	ownerID, err := s.auth.ResolveOwner(ctx, credential)
	if err != nil {
		s.record(ctx, "submit", "unauthorized", start)
		return nil, err
	}
	if !loanType.Valid() {
		return nil, errors.NewInvalidLoanTypeError(string(loanType))
	}

	details = normalizeDetails(details)
	validated, fieldErrs := schema.Get(loanType).Validate(details)
	if len(fieldErrs) > 0 {
		first := fieldErrs[0]
		metrics.ValidationFailures.WithLabelValues(string(loanType), first.Field).Inc()
		s.log.Warn("submission rejected", map[string]interface{}{
			"ownerId":  ownerID,
			"loanType": loanType,
			"field":    first.Field,
			"code":     first.Code,
		})
		s.record(ctx, "submit", "rejected", start)
		return nil, errors.NewValidationFailedError(first.Field, first.Message)
	}

	app, err := s.store.Upsert(ctx,
		store.Filter{OwnerID: ownerID, LoanType: loanType},
		store.Patch{Status: models.StatusSubmitted, Details: validated},
	)
	if err != nil {
		s.log.WithError(err).Error("submit upsert failed", map[string]interface{}{
			"ownerId":  ownerID,
			"loanType": loanType,
		})
		s.record(ctx, "submit", "store_error", start)
		return nil, errors.NewStoreUnavailableError(err)
	}

	s.record(ctx, "submit", "ok", start)
	metrics.ApplicationsSubmitted.WithLabelValues(string(loanType)).Inc()
	s.log.Info("application submitted", map[string]interface{}{
		"ownerId":       ownerID,
		"loanType":      loanType,
		"applicationId": app.ID,
	})
	return app, nil
}

// List returns the caller's applications, newest update first. An
// unresolvable owner yields an empty list rather than an error; a store
// failure is still surfaced, so "no applications" is never conflated with
// "store down".
func (s *Service) List(ctx context.Context, credential string) ([]*models.LoanApplication, error) {
	ownerID, err := s.auth.ResolveOwner(ctx, credential)
	if err != nil {
		return []*models.LoanApplication{}, nil
	}

	apps, err := s.store.List(ctx, ownerID)
	if err != nil {
		s.log.WithError(err).Error("list failed", map[string]interface{}{"ownerId": ownerID})
		return nil, errors.NewStoreUnavailableError(err)
	}
	if apps == nil {
		apps = []*models.LoanApplication{}
	}
	return apps, nil
}

// FindForOwner returns one application by its identity key, or nil when the
// owner has no record of that type. Used by collaborators that resolved the
// owner themselves (e.g. the agent webhook after a contact lookup).
func (s *Service) FindForOwner(ctx context.Context, ownerID string, loanType models.LoanType) (*models.LoanApplication, error) {
	if !loanType.Valid() {
		return nil, errors.NewInvalidLoanTypeError(string(loanType))
	}
	app, err := s.store.Find(ctx, store.Filter{OwnerID: ownerID, LoanType: loanType})
	if err != nil {
		return nil, errors.NewStoreUnavailableError(err)
	}
	return app, nil
}

// normalizeDetails copies the payload and folds the mobileNumber alias into
// the canonical mobile field. Voice and chat channels send mobileNumber; the
// form sends mobile. Both land in the same place before anything else reads
// the payload.
func normalizeDetails(details map[string]interface{}) map[string]interface{} {
	normalized := make(map[string]interface{}, len(details))
	for k, v := range details {
		normalized[k] = v
	}
	if alias, ok := normalized["mobileNumber"]; ok {
		if _, exists := normalized["mobile"]; !exists {
			normalized["mobile"] = alias
		}
		delete(normalized, "mobileNumber")
	}
	return normalized
}

func mobileOf(details map[string]interface{}) string {
	if v, ok := details["mobile"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
