package app

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store/storetest"
)

func TestAssignRoleByName(t *testing.T) {
	env := newTestEnv(t)
	_, userID := env.login("Avery")

	user, err := AssignRole(t.Context(), env.store, "Avery", "viewer")
	if err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if user.ID != userID || user.Role != "viewer" {
		t.Fatalf("unexpected user %+v", user)
	}

	token, _ := env.login("Avery")
	rr := env.do(http.MethodPost, "/api/boards", token, map[string]any{"name": "Onboarding"})
	expectCode(t, rr, http.StatusForbidden, "FORBIDDEN")
}

func TestAssignRoleGrantsAdminAcrossBoards(t *testing.T) {
	env := newTestEnv(t)
	_, ownerID := env.login("Avery")
	_, adminID := env.login("Blake")
	board := storetest.Board(t, env.store, ownerID, "a")

	if _, err := AssignRole(t.Context(), env.store, adminID, " Admin "); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	token, _ := env.login("Blake")
	expectStatus(t, env.do(http.MethodGet, "/api/boards/"+board.ID, token, nil), http.StatusOK)
}

func TestAssignRoleRejectsUnknownInput(t *testing.T) {
	env := newTestEnv(t)
	env.login("Avery")

	if _, err := AssignRole(t.Context(), env.store, "Avery", "owner"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if _, err := AssignRole(t.Context(), env.store, "Nobody", "admin"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for missing user, got %v", err)
	}
}
