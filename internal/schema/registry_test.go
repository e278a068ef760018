// internal/schema/registry_test.go
package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krishi-sahayak/internal/models"
)

func minimalPayload(lt models.LoanType) map[string]interface{} {
	base := map[string]interface{}{
		"farmerName": "Ram Kumar",
		"mobile":     "9876543210",
		"village":    "Pune",
	}
	switch lt {
	case models.LoanTypeCropInput:
		base["surveyNo"] = "105"
		base["crop"] = "Sugarcane"
		base["acreage"] = "3.5"
		base["cropSeason"] = "Kharif"
	case models.LoanTypeMechanization:
		base["equipment"] = "Tractor-5310"
		base["dealer"] = "ABC Motors"
		base["price"] = 500000
	case models.LoanTypeDairy:
		base["animalType"] = "Cow"
		base["animalCount"] = 2
	}
	return base
}

func TestValidate_MinimalPayloadSucceeds(t *testing.T) {
	for _, lt := range models.AllLoanTypes() {
		t.Run(string(lt), func(t *testing.T) {
			validated, errs := Get(lt).Validate(minimalPayload(lt))
			assert.Empty(t, errs)
			assert.Equal(t, "Ram Kumar", validated["farmerName"])
		})
	}
}

func TestValidate_EachRequiredFieldMissing(t *testing.T) {
	for _, lt := range models.AllLoanTypes() {
		s := Get(lt)
		for _, f := range s.Fields {
			if !f.Required {
				continue
			}
			t.Run(string(lt)+"/"+f.Name, func(t *testing.T) {
				payload := minimalPayload(lt)
				delete(payload, f.Name)
				_, errs := s.Validate(payload)
				require.Len(t, errs, 1)
				assert.Equal(t, f.Name, errs[0].Field)
				assert.Equal(t, CodeMissingRequired, errs[0].Code)
			})
		}
	}
}

func TestValidate_ReturnsAllViolationsInDeclaredOrder(t *testing.T) {
	payload := minimalPayload(models.LoanTypeCropInput)
	delete(payload, "farmerName")
	payload["mobile"] = "12345"          // bad prefix and length
	payload["acreage"] = "three acres"   // not numeric
	payload["cropSeason"] = "kharif"     // wrong case

	_, errs := Get(models.LoanTypeCropInput).Validate(payload)
	require.Len(t, errs, 4)
	assert.Equal(t, "farmerName", errs[0].Field)
	assert.Equal(t, "mobile", errs[1].Field)
	assert.Equal(t, "acreage", errs[2].Field)
	assert.Equal(t, "cropSeason", errs[3].Field)
}

func TestValidate_NumericCoercion(t *testing.T) {
	payload := minimalPayload(models.LoanTypeDairy)
	payload["animalCount"] = "3"

	validated, errs := Get(models.LoanTypeDairy).Validate(payload)
	require.Empty(t, errs)
	assert.Equal(t, int64(3), validated["animalCount"])
}

func TestValidate_NonNumericStringIsTypeMismatch(t *testing.T) {
	payload := minimalPayload(models.LoanTypeDairy)
	payload["animalCount"] = "two"

	_, errs := Get(models.LoanTypeDairy).Validate(payload)
	require.Len(t, errs, 1)
	assert.Equal(t, "animalCount", errs[0].Field)
	assert.Equal(t, CodeTypeMismatch, errs[0].Code)
}

func TestValidate_EnumCaseSensitive(t *testing.T) {
	payload := minimalPayload(models.LoanTypeDairy)
	payload["animalType"] = "cow"

	_, errs := Get(models.LoanTypeDairy).Validate(payload)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeInvalidEnum, errs[0].Code)
	assert.Contains(t, errs[0].Message, "Cow, Buffalo")
}

func TestValidate_MobileFormat(t *testing.T) {
	cases := map[string]bool{
		"9876543210":  true,
		"6123456789":  true,
		"5876543210":  false, // must start 6-9
		"98765432":    false, // too short
		"98765432101": false, // too long
	}
	for mobile, ok := range cases {
		payload := minimalPayload(models.LoanTypeCropInput)
		payload["mobile"] = mobile
		_, errs := Get(models.LoanTypeCropInput).Validate(payload)
		if ok {
			assert.Empty(t, errs, mobile)
		} else {
			require.Len(t, errs, 1, mobile)
			assert.Equal(t, "mobile", errs[0].Field)
			assert.Equal(t, CodeInvalidFormat, errs[0].Code)
		}
	}
}

func TestValidate_QuotationBelowMinimum(t *testing.T) {
	payload := minimalPayload(models.LoanTypeMechanization)
	payload["price"] = 5000

	_, errs := Get(models.LoanTypeMechanization).Validate(payload)
	require.Len(t, errs, 1)
	assert.Equal(t, "price", errs[0].Field)
	assert.Equal(t, CodeBelowMinimum, errs[0].Code)
	assert.Contains(t, errs[0].Message, "must be at least 10000")
}

func TestValidate_ExtraFieldsPreservedUnvalidated(t *testing.T) {
	payload := minimalPayload(models.LoanTypeDairy)
	payload["equipment"] = "Tractor" // meaningful only to Mechanization
	payload["notes"] = 42            // arbitrary type, never validated

	validated, errs := Get(models.LoanTypeDairy).Validate(payload)
	require.Empty(t, errs)
	assert.Equal(t, "Tractor", validated["equipment"])
	assert.Equal(t, 42, validated["notes"])
}

func TestValidate_OptionalFieldCheckedWhenPresent(t *testing.T) {
	payload := minimalPayload(models.LoanTypeDairy)
	payload["shedArea"] = "-20"

	_, errs := Get(models.LoanTypeDairy).Validate(payload)
	require.Len(t, errs, 1)
	assert.Equal(t, "shedArea", errs[0].Field)
	assert.Equal(t, CodeBelowMinimum, errs[0].Code)
}

func TestGet_PanicsOnUnknownType(t *testing.T) {
	assert.Panics(t, func() { Get(models.LoanType("Poultry")) })
}
