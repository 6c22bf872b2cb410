package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"planora-backend/internal/db"
	"planora-backend/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

// notFound maps pgx.ErrNoRows onto the domain NotFound kind.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundf("%s not found", what)
	}
	return err
}

// conflictOr maps unique violations onto the domain Conflict kind.
func conflictOr(err error, message string) error {
	if err != nil && IsDuplicate(err) {
		return domain.Conflictf("%s", message)
	}
	return err
}

// IsDuplicate detects unique constraint violation.
func IsDuplicate(err error) bool {
	return db.IsUniqueViolation(err)
}

func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

func unmarshalJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	return nil
}
