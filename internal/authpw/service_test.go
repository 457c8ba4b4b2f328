package authpw

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"grimoire/api/internal/store"
)

type fakeUsers struct {
	byEmail map[string]store.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]store.User)}
}

func (f *fakeUsers) CreateUser(ctx context.Context, user store.User) error {
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newFakeUsers())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "Alice@Example.com ", "Alice", "correct horse")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "correct horse" || user.PasswordHash == "" {
		t.Fatal("password stored unhashed")
	}

	got, err := svc.SignIn(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("user = %+v", got)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUsers())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "a@example.com", "A", "password1"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := svc.SignUp(ctx, "a@example.com", "A again", "password2"); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("want ErrEmailExists, got %v", err)
	}
}

func TestSignUpWeakPassword(t *testing.T) {
	svc := NewService(newFakeUsers())
	if _, err := svc.SignUp(context.Background(), "a@example.com", "A", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("want ErrWeakPassword, got %v", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	svc := NewService(newFakeUsers())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "a@example.com", "A", "password1"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := svc.SignIn(ctx, "a@example.com", "password2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
}
