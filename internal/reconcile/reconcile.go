// internal/reconcile/reconcile.go

// Package reconcile merges externally sourced field updates into an
// in-progress form. It is a merge layer, not a validation layer: values land
// on the form exactly as sent, and the farmer sees what changed through
// short-lived highlights. Judging the values is submission's job.
package reconcile

import (
	"time"

	"krishi-sahayak/internal/common/metrics"
	"krishi-sahayak/internal/models"
	"krishi-sahayak/internal/schema"
)

// FormState is the client-side form mirror for one session. Values holds
// fields the active loan type's schema knows about; Extra holds fields no
// current schema declares, retained inertly in case a later category switch
// gives them a home. Highlighted records when each field last changed by an
// external update.
type FormState struct {
	LoanType    models.LoanType      `json:"loanType"`
	Values      map[string]string    `json:"values"`
	Extra       map[string]string    `json:"extra"`
	Highlighted map[string]time.Time `json:"highlighted"`
	Submitted   bool                 `json:"submitted"`
}

// NewFormState returns an empty form for a loan type.
func NewFormState(loanType models.LoanType) *FormState {
	return &FormState{
		LoanType:    loanType,
		Values:      map[string]string{},
		Extra:       map[string]string{},
		Highlighted: map[string]time.Time{},
	}
}

// Apply merges one update into the form. Updates arriving after submission
// are dropped entirely. A suggested category switch is handled before the
// field itself so the field lands under the schema it belongs to. Repeated
// updates to the same field are last-write-wins.
func (f *FormState) Apply(update models.FieldUpdateEvent, now time.Time) {
	if f.Submitted {
		return
	}

	if update.SuggestedType.Valid() && update.SuggestedType != f.LoanType {
		f.switchLoanType(update.SuggestedType)
	}

	if update.Field == "" {
		return
	}

	if schema.Get(f.LoanType).Knows(update.Field) {
		f.Values[update.Field] = update.Value
		f.Highlighted[update.Field] = now
	} else {
		// Unknown to the active schema: keep it, never highlight it.
		f.Extra[update.Field] = update.Value
		delete(f.Highlighted, update.Field)
	}
}

// switchLoanType re-partitions the form against the new schema. Fields the
// new schema also declares (the common block, typically) stay in place with
// their values and highlights; fields it does not declare move to Extra, and
// previously inert extras the new schema declares come back onto the form.
func (f *FormState) switchLoanType(to models.LoanType) {
	next := schema.Get(to)

	for name, value := range f.Values {
		if !next.Knows(name) {
			f.Extra[name] = value
			delete(f.Values, name)
			delete(f.Highlighted, name)
		}
	}
	for name, value := range f.Extra {
		if next.Knows(name) {
			f.Values[name] = value
			delete(f.Extra, name)
		}
	}
	f.LoanType = to
}

// ExpireHighlights clears highlights older than the decay window. The field
// values themselves are untouched.
func (f *FormState) ExpireHighlights(now time.Time, window time.Duration) {
	for name, at := range f.Highlighted {
		if now.Sub(at) >= window {
			delete(f.Highlighted, name)
		}
	}
}

// ApplyAll merges a batch of updates in order and records the source label
// on the applied-updates counter.
func (f *FormState) ApplyAll(updates []models.FieldUpdateEvent, now time.Time, source string) {
	for _, update := range updates {
		f.Apply(update, now)
	}
	if !f.Submitted && len(updates) > 0 {
		metrics.FieldUpdatesApplied.WithLabelValues(source).Add(float64(len(updates)))
	}
}
