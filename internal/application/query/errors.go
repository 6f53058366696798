package query

import "github.com/schoolhub/grade-engine/internal/domain/shared"

// validationError classifies a query validation failure so callers can
// map it to a client error rather than a system fault.
func validationError(op string, err error) error {
	return shared.WrapError("query", op, shared.ErrValidation,
		shared.CodeValidationError, "invalid query", err)
}
