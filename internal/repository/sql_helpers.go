package repository

import (
	"context"
	"errors"
	"fmt"

	chat_errors "wedding-chat/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// translateError maps driver and gorm errors onto the service error set.
// Anything unrecognised is reported as the store being unavailable.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return chat_errors.ErrNotFound
	case isUniqueViolation(err):
		return chat_errors.ErrAlreadyExists
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, chat_errors.ErrNotFound),
		errors.Is(err, chat_errors.ErrAlreadyExists),
		errors.Is(err, chat_errors.ErrStoreUnavailable):
		return err
	}
	return fmt.Errorf("%w: %v", chat_errors.ErrStoreUnavailable, err)
}

func normalizePage(page, limit, defaultLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
