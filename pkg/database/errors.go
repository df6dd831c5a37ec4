package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/yoozak/yoozak-backend/pkg/errors"
)

// uniqueMessages maps unique constraint names to a client-facing message
var uniqueMessages = map[string]string{
	"articles_reference_key":          "an article with this reference already exists",
	"variants_article_size_color_key": "this size and color already exist for the article",
	"variants_barcode_key":            "a variant with this barcode already exists",
	"orders_number_key":               "an order with this number already exists",
	"orders_external_ref_key":         "an order with this external reference was already imported",
	"operators_email_key":             "an operator with this email already exists",
}

// checkErrors maps check constraints to the error returned when they fail
var checkErrors = map[string]func() *errors.AppError{
	"variants_quantity_non_negative": func() *errors.AppError {
		return errors.Conflict("stock cannot go below zero")
	},
	"promotions_discount_range": func() *errors.AppError {
		return errors.Validation(map[string]string{"discount_percent": "must be between 0 and 100 (exclusive)"})
	},
	"promotions_promotion_window": func() *errors.AppError {
		return errors.Validation(map[string]string{"ends_at": "must be after starts_at"})
	},
	"orders_status_valid": func() *errors.AppError {
		return errors.Validation(map[string]string{"status": "unknown order status"})
	},
	"articles_phase_valid": func() *errors.AppError {
		return errors.Validation(map[string]string{"phase": "must be one of: active liquidation test"})
	},
	"operators_role_valid": func() *errors.AppError {
		return errors.Validation(map[string]string{"role": "unknown role"})
	},
}

// MapPQError converts a PostgreSQL integrity error to an AppError.
// It returns nil for anything else.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code.Name() {
	case "unique_violation":
		if msg, ok := uniqueMessages[pqErr.Constraint]; ok {
			return errors.Conflict(msg)
		}
		return errors.Conflict("a record with these values already exists")
	case "check_violation":
		if build, ok := checkErrors[pqErr.Constraint]; ok {
			return build()
		}
		return errors.BadRequest("data validation failed: " + strings.TrimSpace(pqErr.Constraint))
	case "invalid_text_representation":
		// Usually a path or filter ID that is not a UUID
		return errors.BadRequest("malformed identifier")
	case "foreign_key_violation":
		return errors.BadRequest("referenced record does not exist")
	case "not_null_violation":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{col: "must not be empty"})
	}
	return nil
}

// Translate returns the mapped AppError when there is one, otherwise err unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}
