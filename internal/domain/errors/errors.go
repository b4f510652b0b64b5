package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")
	ErrNotAuthenticated   = errors.New("authentication credentials were not provided or are invalid")
	ErrNotFound           = errors.New("not found")
	ErrBadRequest         = errors.New("malformed request body")
	ErrInternalServer     = errors.New("internal server error")

	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUserAlreadyExists  = errors.New("a user with that username already exists")
	ErrEmailAlreadyExists = errors.New("a user with that email already exists")

	ErrInvalidUsername   = errors.New("invalid username")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrMissingCredential = errors.New("must include username or email and password")
	ErrInvalidTitle      = errors.New("invalid task title")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidPriority   = errors.New("invalid task priority")
	ErrInvalidDueDate    = errors.New("invalid due date, expected YYYY-MM-DD")
	ErrInvalidComment    = errors.New("invalid task comment")
	ErrInvalidOrdering   = errors.New("invalid ordering")

	ErrConfigFileReadFailed = errors.New("failed to read config file")
	ErrConfigParseFailed    = errors.New("failed to parse config file")
	ErrConfigInvalidFormat  = errors.New("invalid config value")
	ErrMigrationConfig      = errors.New("migration requires a database DSN and a migrations path")

	ErrInvalidGzipRequest    = errors.New("invalid gzip request body")
	ErrGzipCompressionFailed = errors.New("gzip compression failed")
)

// Validation marks reason as a client input error.
func Validation(reason error) error {
	return fmt.Errorf("%w: %w", ErrValidationFailed, reason)
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
