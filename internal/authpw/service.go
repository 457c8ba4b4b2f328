// Package authpw implements password-based sign-up and sign-in on top of
// bcrypt hashes stored with the user row.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"grimoire/api/internal/store"
	"grimoire/api/internal/util"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password too short")
)

const minPasswordLen = 8

// UserStore is the slice of the relational store this service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
}

// Service handles credential checks and account creation.
type Service struct {
	users UserStore
}

func NewService(users UserStore) *Service {
	return &Service{users: users}
}

// SignUp creates a user with a bcrypt password hash and returns it.
func (s *Service) SignUp(ctx context.Context, email, displayName, password string) (store.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return store.User{}, ErrInvalidCredentials
	}
	if len(password) < minPasswordLen {
		return store.User{}, ErrWeakPassword
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SignIn verifies the password and returns the user. The same error covers a
// missing account and a wrong password.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	email = normalizeEmail(email)
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
