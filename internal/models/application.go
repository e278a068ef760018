// internal/models/application.go
package models

import "time"

// LoanType is the closed set of loan categories. It is fixed per application
// record; a category change re-keys to a different record, never mutates in place.
type LoanType string

const (
	LoanTypeCropInput     LoanType = "CropInput"
	LoanTypeMechanization LoanType = "Mechanization"
	LoanTypeDairy         LoanType = "Dairy"
)

// Valid reports whether lt is one of the known loan types.
func (lt LoanType) Valid() bool {
	switch lt {
	case LoanTypeCropInput, LoanTypeMechanization, LoanTypeDairy:
		return true
	}
	return false
}

// AllLoanTypes lists every loan type in a stable order.
func AllLoanTypes() []LoanType {
	return []LoanType{LoanTypeCropInput, LoanTypeMechanization, LoanTypeDairy}
}

// ApplicationStatus is the lifecycle state of a loan application.
// Submitted is terminal for this service; amendment workflows live elsewhere.
type ApplicationStatus string

const (
	StatusDraft     ApplicationStatus = "draft"
	StatusSubmitted ApplicationStatus = "submitted"
)

// LoanApplication is the persisted application record. Exactly one record
// exists per (OwnerID, LoanType); draft saves and submissions overwrite it.
type LoanApplication struct {
	ID        string                 `json:"id" db:"id"`
	OwnerID   string                 `json:"ownerId" db:"owner_id"`
	LoanType  LoanType               `json:"loanType" db:"loan_type"`
	Status    ApplicationStatus      `json:"status" db:"status"`
	Details   map[string]interface{} `json:"details" db:"details"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time              `json:"updatedAt" db:"updated_at"`
}

// FieldUpdateEvent is a single externally sourced field value destined for an
// in-progress form. An agent tool call, a document-scan extraction and a
// land-registry verification all produce this same shape. Events are
// ephemeral and consumed exactly once.
type FieldUpdateEvent struct {
	Field         string   `json:"field"`
	Value         string   `json:"value"`
	SuggestedType LoanType `json:"suggestedType,omitempty"`
}
