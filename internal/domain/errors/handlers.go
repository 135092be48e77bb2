package errors

import (
	"blog/internal/errors"
)

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}

	return nil, false
}

// UserMessage returns a message that is safe to show to the end user.
// Errors outside the taxonomy collapse to the generic internal error message.
func UserMessage(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Message()
	}

	return ErrInternalError.Message()
}
