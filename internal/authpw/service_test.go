package authpw

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store/storetest"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(storetest.New(t))
	svc.cost = bcrypt.MinCost
	return svc
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{Email: " Dana@Example.com ", Password: "correct-horse", DisplayName: "Dana"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Email != "dana@example.com" || user.Role != "editor" || user.PasswordHash == "correct-horse" {
		t.Fatalf("unexpected user: %+v", user)
	}

	got, err := svc.SignIn(ctx, SignInRequest{Email: "dana@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("signed in as %s, want %s", got.ID, user.ID)
	}
}

func TestSignUpValidation(t *testing.T) {
	tests := []struct {
		name string
		req  SignUpRequest
	}{
		{"missing email", SignUpRequest{Password: "password1", DisplayName: "A"}},
		{"missing name", SignUpRequest{Email: "a@example.com", Password: "password1"}},
		{"bad email", SignUpRequest{Email: "not-an-email", Password: "password1", DisplayName: "A"}},
		{"short password", SignUpRequest{Email: "a@example.com", Password: "short", DisplayName: "A"}},
	}
	svc := newTestService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSignUpConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@example.com", Password: "password1", DisplayName: "Avery"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "A@example.com", Password: "password1", DisplayName: "Other"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "b@example.com", Password: "password1", DisplayName: "Avery"}); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@example.com", Password: "password1", DisplayName: "Avery"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	for _, req := range []SignInRequest{
		{Email: "a@example.com", Password: "password2"},
		{Email: "nobody@example.com", Password: "password1"},
	} {
		if _, err := svc.SignIn(ctx, req); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("SignIn(%s) expected ErrInvalidCredentials, got %v", req.Email, err)
		}
	}
}

func TestChangePassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user, err := svc.SignUp(ctx, SignUpRequest{Email: "a@example.com", Password: "password1", DisplayName: "Avery"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrong-one", "password2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "password1", "password2"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@example.com", Password: "password1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@example.com", Password: "password2"}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}
