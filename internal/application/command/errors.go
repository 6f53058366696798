package command

import "github.com/schoolhub/grade-engine/internal/domain/shared"

// validationError classifies a command validation failure so callers can
// map it to a client error rather than a system fault.
func validationError(op string, err error) error {
	return shared.WrapError("command", op, shared.ErrValidation,
		shared.CodeValidationError, "invalid command", err)
}
