package service

import (
	"fmt"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
)

// internalError logs the failure and hides it behind the generic message.
func internalError(logger *zap.Logger, msg string, err error) error {
	logger.Error(msg, zap.Error(err))
	return appErrors.Internal(fmt.Errorf("%s: %w", msg, err))
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
