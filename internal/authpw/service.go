// Package authpw provides email/password accounts on top of the users table.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNameTaken          = errors.New("display name already taken")
)

// ValidationError reports unusable sign-up or sign-in input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByName(ctx context.Context, name string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	SetUserPassword(ctx context.Context, id, passwordHash string) error
}

// Service provides email/password authentication
type Service struct {
	store UserStore
	cost  int
}

func NewService(st UserStore) *Service {
	return &Service{store: st, cost: bcrypt.DefaultCost}
}

type SignUpRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// SignUp creates an editor account with a hashed password.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.DisplayName)
	if email == "" || req.Password == "" || name == "" {
		return store.User{}, &ValidationError{Message: "email, password, and display name are required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return store.User{}, &ValidationError{Message: "email is not valid"}
	}
	if len(req.Password) < minPasswordLength {
		return store.User{}, &ValidationError{Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}

	if err := s.ensureFree(ctx, email, name); err != nil {
		return store.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, store.User{
		DisplayName:  name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         "editor",
	})
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) ensureFree(ctx context.Context, email, name string) error {
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.store.GetUserByName(ctx, name); err == nil {
		return ErrNameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lookup display name: %w", err)
	}
	return nil
}

type SignInRequest struct {
	Email    string
	Password string
}

// SignIn authenticates a user. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return store.User{}, &ValidationError{Message: "email and password are required"}
	}
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, ErrInvalidCredentials
		}
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == "" {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < minPasswordLength {
		return &ValidationError{Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.SetUserPassword(ctx, userID, string(hash))
}
