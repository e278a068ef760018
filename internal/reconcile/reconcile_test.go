// internal/reconcile/reconcile_test.go
package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"krishi-sahayak/internal/models"
)

func TestApply_KnownFieldIsSetAndHighlighted(t *testing.T) {
	f := NewFormState(models.LoanTypeCropInput)
	now := time.Now()

	f.Apply(models.FieldUpdateEvent{Field: "crop", Value: "Sugarcane"}, now)

	assert.Equal(t, "Sugarcane", f.Values["crop"])
	assert.Equal(t, now, f.Highlighted["crop"])
	assert.Empty(t, f.Extra)
}

func TestApply_UnknownFieldIsRetainedInert(t *testing.T) {
	f := NewFormState(models.LoanTypeCropInput)

	f.Apply(models.FieldUpdateEvent{Field: "tractorModel", Value: "JD-5310"}, time.Now())

	assert.Equal(t, "JD-5310", f.Extra["tractorModel"])
	assert.NotContains(t, f.Values, "tractorModel")
	assert.NotContains(t, f.Highlighted, "tractorModel")
}

func TestApply_LastWriteWins(t *testing.T) {
	f := NewFormState(models.LoanTypeCropInput)
	now := time.Now()

	f.Apply(models.FieldUpdateEvent{Field: "crop", Value: "Wheat"}, now)
	f.Apply(models.FieldUpdateEvent{Field: "crop", Value: "Sugarcane"}, now.Add(time.Second))

	assert.Equal(t, "Sugarcane", f.Values["crop"])
	assert.Equal(t, now.Add(time.Second), f.Highlighted["crop"])
}

func TestApply_CategorySwitchKeepsCommonFields(t *testing.T) {
	f := NewFormState(models.LoanTypeCropInput)
	now := time.Now()
	f.Apply(models.FieldUpdateEvent{Field: "village", Value: "Pune"}, now)
	f.Apply(models.FieldUpdateEvent{Field: "crop", Value: "Sugarcane"}, now)

	f.Apply(models.FieldUpdateEvent{SuggestedType: models.LoanTypeDairy}, now)

	assert.Equal(t, models.LoanTypeDairy, f.LoanType)
	assert.Equal(t, "Pune", f.Values["village"])
	// crop has no home under Dairy: parked in Extra, unhighlighted.
	assert.NotContains(t, f.Values, "crop")
	assert.Equal(t, "Sugarcane", f.Extra["crop"])
	assert.NotContains(t, f.Highlighted, "crop")
}

func TestApply_SwitchBackRestoresParkedFields(t *testing.T) {
	f := NewFormState(models.LoanTypeCropInput)
	now := time.Now()
	f.Apply(models.FieldUpdateEvent{Field: "crop", Value: "Sugarcane"}, now)
	f.Apply(models.FieldUpdateEvent{SuggestedType: models.LoanTypeDairy}, now)
	f.Apply(models.FieldUpdateEvent{SuggestedType: models.LoanTypeCropInput}, now)

	assert.Equal(t, "Sugarcane", f.Values["crop"])
	assert.Empty(t, f.Extra)
}

func TestApply_SwitchAndFieldInOneEvent(t *testing.T) {
	f := NewFormState(models.LoanTypeCropInput)

	f.Apply(models.FieldUpdateEvent{
		Field:         "animalType",
		Value:         "Cow",
		SuggestedType: models.LoanTypeDairy,
	}, time.Now())

	assert.Equal(t, models.LoanTypeDairy, f.LoanType)
	assert.Equal(t, "Cow", f.Values["animalType"])
}

func TestApply_AfterSubmissionIsDropped(t *testing.T) {
	f := NewFormState(models.LoanTypeCropInput)
	f.Apply(models.FieldUpdateEvent{Field: "crop", Value: "Wheat"}, time.Now())
	f.Submitted = true

	f.Apply(models.FieldUpdateEvent{Field: "crop", Value: "Sugarcane", SuggestedType: models.LoanTypeDairy}, time.Now())

	assert.Equal(t, models.LoanTypeCropInput, f.LoanType)
	assert.Equal(t, "Wheat", f.Values["crop"])
}

func TestExpireHighlights(t *testing.T) {
	f := NewFormState(models.LoanTypeCropInput)
	now := time.Now()
	f.Apply(models.FieldUpdateEvent{Field: "crop", Value: "Wheat"}, now.Add(-5*time.Second))
	f.Apply(models.FieldUpdateEvent{Field: "village", Value: "Pune"}, now)

	f.ExpireHighlights(now, 3*time.Second)

	assert.NotContains(t, f.Highlighted, "crop")
	assert.Contains(t, f.Highlighted, "village")
	// The values themselves outlive the highlight.
	assert.Equal(t, "Wheat", f.Values["crop"])
}
