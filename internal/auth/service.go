// Package auth verifies credentials and manages opaque session tokens.
package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionStore keeps at most one session per user.
type SessionStore interface {
	// GetOrCreateSession atomically returns the user's session, creating it with
	// token if none exists.
	GetOrCreateSession(ctx context.Context, userID, token string, now time.Time) (*models.Session, error)
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

const maxPasswordBytes = 72

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type Service struct {
	users    UserStore
	sessions SessionStore
	hasher   *PasswordHasher
	tokens   TokenGenerator
	validate *validator.Validate
	now      func() time.Time
}

func NewService(users UserStore, sessions SessionStore, hasher *PasswordHasher, tokens TokenGenerator) *Service {
	valid := validator.New()
	_ = valid.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		validate: valid,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Register creates the account and issues its first token.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, *models.Session, error) {
	// checked before lowering, which would mask invalid bytes
	if !utf8.ValidString(req.Email) || strings.ContainsRune(req.Email, 0) {
		return nil, nil, errors.Validation(errors.ErrInvalidEmail)
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, errors.Validation(validationErrorToReason(err))
	}
	// bcrypt only looks at the first 72 bytes
	if len(req.Password) > maxPasswordBytes {
		return nil, nil, errors.Validation(errors.ErrInvalidPassword)
	}

	if _, err := s.users.GetUserByUsername(ctx, req.Username); err == nil {
		return nil, nil, errors.Validation(errors.ErrUserAlreadyExists)
	} else if !errors.Is(err, errors.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("lookup username: %w", err)
	}
	if _, err := s.users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, nil, errors.Validation(errors.ErrEmailAlreadyExists)
	} else if !errors.Is(err, errors.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// a concurrent registration won the unique constraint
		if errors.Is(err, errors.ErrUserAlreadyExists) || errors.Is(err, errors.ErrEmailAlreadyExists) {
			return nil, nil, errors.Validation(err)
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	session, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Login accepts a username or an email as identifier. Every failure to match
// reports ErrInvalidCredentials so callers cannot tell which part was wrong.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.User, *models.Session, error) {
	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" || req.Password == "" {
		return nil, nil, errors.Validation(errors.ErrMissingCredential)
	}
	// no stored username or email can contain these
	if !utf8.ValidString(identifier) || strings.ContainsRune(identifier, 0) {
		s.hasher.VerifyDummy(req.Password)
		return nil, nil, errors.ErrInvalidCredentials
	}

	user, err := s.authenticate(ctx, identifier, req.Password)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// authenticate tries the identifier as a username first and falls back to the
// email match, so a username that equals another account's email does not
// shadow that account.
func (s *Service) authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	byUsername, err := s.users.GetUserByUsername(ctx, identifier)
	if err != nil && !errors.Is(err, errors.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if byUsername != nil && s.hasher.Verify(password, byUsername.PasswordHash) {
		return byUsername, nil
	}

	byEmail, err := s.users.GetUserByEmail(ctx, strings.ToLower(identifier))
	if err != nil {
		if !errors.Is(err, errors.ErrUserNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		if byUsername == nil {
			s.hasher.VerifyDummy(password)
		}
		return nil, errors.ErrInvalidCredentials
	}
	if byUsername != nil && byUsername.ID == byEmail.ID {
		return nil, errors.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, byEmail.PasswordHash) {
		return nil, errors.ErrInvalidCredentials
	}
	return byEmail, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if !WellFormedToken(token) {
		return errors.ErrNotAuthenticated
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		if errors.Is(err, errors.ErrSessionNotFound) {
			return errors.ErrNotAuthenticated
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Resolve maps a token to its user. Tokens that could not have been issued
// never reach the store.
func (s *Service) Resolve(ctx context.Context, token string) (*models.User, error) {
	if !WellFormedToken(token) {
		return nil, errors.ErrNotAuthenticated
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, errors.ErrSessionNotFound) {
			return nil, errors.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("get session user: %w", err)
	}
	return user, nil
}

func (s *Service) issue(ctx context.Context, userID string) (*models.Session, error) {
	token, err := s.tokens()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	session, err := s.sessions.GetOrCreateSession(ctx, userID, token, s.now())
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return session, nil
}

func validationErrorToReason(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Username":
				return errors.ErrInvalidUsername
			case "Email":
				return errors.ErrInvalidEmail
			case "Password":
				return errors.ErrInvalidPassword
			}
		}
	}
	return err
}
