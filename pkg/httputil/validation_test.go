package httputil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yoozak/yoozak-backend/pkg/errors"
)

type contactInput struct {
	Name  string `json:"customer_name" validate:"required"`
	Phone string `json:"phone" validate:"required,phone"`
	Qty   int    `json:"quantity" validate:"gt=0"`
}

func TestValidate_ReportsJSONNames(t *testing.T) {
	err := Validate(&contactInput{Phone: "12", Qty: 0})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "this field is required", appErr.Details["customer_name"])
	assert.Equal(t, "must be a valid phone number", appErr.Details["phone"])
	assert.Equal(t, "must be greater than 0", appErr.Details["quantity"])
}

func TestValidate_Phone(t *testing.T) {
	for _, phone := range []string{"0612345678", "+212 6 12 34 56 78", "06-12-34-56-78"} {
		assert.NoError(t, Validate(&contactInput{Name: "A", Phone: phone, Qty: 1}), phone)
	}
	for _, phone := range []string{"0612", "06123x5678", "06+12345678", "+2126123456789012"} {
		assert.Error(t, Validate(&contactInput{Name: "A", Phone: phone, Qty: 1}), phone)
	}
}
