package user

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/storage/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := New(Dependencies{
		Users:      store,
		Sessions:   store,
		Secret:     []byte("test-secret"),
		SessionTTL: time.Hour,
		Log:        logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated user id")
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("email must be normalized, got %q", created.Email)
	}
	if created.PasswordHash == "correct-horse" {
		t.Fatal("password must be stored hashed")
	}

	token, u, err := svc.Login(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("expected session token")
	}
	if u.ID != created.ID {
		t.Fatalf("login returned wrong user %s", u.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "", Email: "not-an-email", Password: "long-enough"})
	se := apperrors.GetServiceError(err)
	if se == nil || se.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "short"})
	se = apperrors.GetServiceError(err)
	if se == nil || se.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(se.Message, "8 characters") {
		t.Fatalf("error must name the password length rule, got %q", se.Message)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	input := RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err := svc.Register(ctx, input)
	se := apperrors.GetServiceError(err)
	if se == nil || se.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for name, attempt := range map[string][2]string{
		"wrong password": {"alice@example.com", "wrong"},
		"unknown email":  {"nobody@example.com", "correct-horse"},
	} {
		_, _, err := svc.Login(ctx, attempt[0], attempt[1])
		se := apperrors.GetServiceError(err)
		if se == nil || se.HTTPStatus != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %v", name, err)
		}
		if se.Message != "invalid credentials" {
			t.Fatalf("%s: error must not reveal which field failed, got %q", name, se.Message)
		}
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	token, _, err := svc.Login(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := store.GetSession(ctx, token); err != nil {
		t.Fatalf("session must exist after login: %v", err)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := store.GetSession(ctx, token); err == nil {
		t.Fatal("session must be gone after logout")
	}
}

func TestUpdateProfileMergesAndDeletes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := svc.UpdateProfile(ctx, created.ID, map[string]string{"city": "Lisbon", "phone": "123"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if u.Profile["city"] != "Lisbon" || u.Profile["phone"] != "123" {
		t.Fatalf("unexpected profile %v", u.Profile)
	}

	u, err = svc.UpdateProfile(ctx, created.ID, map[string]string{"phone": ""})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if _, ok := u.Profile["phone"]; ok {
		t.Fatal("empty value must delete the attribute")
	}
	if u.Profile["city"] != "Lisbon" {
		t.Fatal("untouched attributes must survive the merge")
	}
}
