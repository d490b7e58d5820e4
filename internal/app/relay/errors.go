package relay

import (
	"busrelay/internal/app/common"
)

func IsNotFound(err error) bool {
	return common.IsNotFound(err)
}

func IsValidation(err error) bool {
	return common.IsValidation(err)
}

func NewReplyNotFoundError(correlationID string) error {
	return common.NewNotFound("reply", correlationID)
}

func NewValidationError(field, reason string) error {
	return common.NewValidation(field, reason)
}
