package authpw

import (
	"context"
	"errors"
	"testing"

	"sharedscriptures/api/internal/store"
)

type fakeUserStore struct {
	byEmail map[string]store.User
	created []store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]store.User)}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.byEmail[user.Email] = user
	f.created = append(f.created, user)
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "Reader@Example.com",
		Password:    "correct horse",
		DisplayName: "Reader",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected a generated user id")
	}
	if user.Email != "reader@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "correct horse" || user.PasswordHash == "" {
		t.Error("password stored without hashing")
	}

	signedIn, err := svc.SignIn(ctx, "reader@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if signedIn.ID != user.ID {
		t.Errorf("wrong account: %q vs %q", signedIn.ID, user.ID)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	cases := []SignUpRequest{
		{Email: "", Password: "long enough", DisplayName: "A"},
		{Email: "a@b.c", Password: "", DisplayName: "A"},
		{Email: "a@b.c", Password: "long enough", DisplayName: ""},
		{Email: "a@b.c", Password: "short", DisplayName: "A"},
	}
	for i, req := range cases {
		if _, err := svc.SignUp(ctx, req); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	req := SignUpRequest{Email: "reader@example.com", Password: "correct horse", DisplayName: "Reader"}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := svc.SignUp(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "reader@example.com", Password: "correct horse", DisplayName: "Reader"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if _, err := svc.SignIn(ctx, "reader@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown account: expected ErrInvalidCredentials, got %v", err)
	}
}
