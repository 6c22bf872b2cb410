package service

import (
	"errors"
	"time"

	"planora-backend/internal/domain"
)

func ptr[T any](v T) *T { return &v }

// clock lets tests pin time; zero value uses time.Now.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// businessOf returns the caller's tenant or Forbidden when none is selected.
func businessOf(id *domain.Identity) (int64, error) {
	if id == nil {
		return 0, domain.Unauthenticatedf("authentication required")
	}
	if id.BusinessID == nil {
		return 0, domain.Forbiddenf("no business selected")
	}
	return *id.BusinessID, nil
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
