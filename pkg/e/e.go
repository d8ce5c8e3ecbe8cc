package e

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func Wrap(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrValidation         = errors.New("validation failed")
	ErrPersistence        = errors.New("persistence failure")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrLimitExceeded      = errors.New("filter limit exceeded")
	ErrGeocodeUnavailable = errors.New("geocoding unavailable")
	ErrMapInit            = errors.New("map initialization failed")
	ErrInvalidState       = errors.New("invalid state")
	ErrDeadline           = errors.New("deadline exceeded")
	ErrCanceled           = errors.New("context canceled")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrActivityQueueEmpty = errors.New("activity queue is empty")
)

// Backend error codes reported by the pin store.
const (
	CodePermissionDenied = "permission-denied"
	CodeNotFound         = "not-found"
	CodeInvalidArgument  = "invalid-argument"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
)

// StoreError is the {code, message} shape the backing store reports.
type StoreError struct {
	Code    string
	Message string
	kind    error
}

func NewStoreError(code, message string) *StoreError {
	return &StoreError{Code: code, Message: message, kind: kindForCode(code)}
}

func (s *StoreError) Error() string {
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

func (s *StoreError) Unwrap() error { return s.kind }

func kindForCode(code string) error {
	switch code {
	case CodePermissionDenied:
		return ErrPermissionDenied
	case CodeNotFound:
		return ErrNotFound
	case CodeInvalidArgument:
		return ErrInvalidInput
	default:
		return ErrPersistence
	}
}

// ValidationError lists the form fields that blocked a save.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(v.Fields))
}

func (v *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func WrapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrDeadline)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrCanceled)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case "23503", "23514", "22P02":
			return fmt.Errorf("%s: %w", op, ErrInvalidInput)
		case "42501":
			return fmt.Errorf("%s: %w", op, NewStoreError(CodePermissionDenied, pgErr.Message))
		default:
			return fmt.Errorf("%s: pg error %s: %w", op, pgErr.Code, ErrPersistence)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, ErrPersistence)
}
