package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"wedding-chat/internal/transport/httpdto"
	chat_errors "wedding-chat/pkg/errors"
)

var knownErrors = []error{
	chat_errors.ErrInvalidInput,
	chat_errors.ErrUnauthorized,
	chat_errors.ErrForbidden,
	chat_errors.ErrNotFound,
	chat_errors.ErrAlreadyExists,
	chat_errors.ErrRateLimited,
	chat_errors.ErrStoreUnavailable,
	context.Canceled,
	context.DeadlineExceeded,
}

// storeError passes typed failures through and reports anything else,
// typically a failed begin or commit, as the store being unavailable.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", chat_errors.ErrStoreUnavailable, err)
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, chat_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, chat_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, chat_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat_errors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, chat_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, chat_errors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the machine readable code sent alongside HTTPStatus.
func ErrorCode(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return httpdto.CodeInvalidArgument
	case http.StatusUnauthorized:
		return httpdto.CodeUnauthorized
	case http.StatusForbidden:
		return httpdto.CodeForbidden
	case http.StatusNotFound:
		return httpdto.CodeNotFound
	case http.StatusConflict:
		return httpdto.CodeAlreadyExists
	case http.StatusTooManyRequests:
		return httpdto.CodeRateLimited
	case http.StatusServiceUnavailable:
		return httpdto.CodeStoreUnavailable
	default:
		return httpdto.CodeInternal
	}
}
