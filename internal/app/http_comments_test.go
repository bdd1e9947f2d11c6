package app

import (
	"net/http"
	"testing"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store/storetest"
)

func TestReplyInheritsParentNode(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")
	board := storetest.Board(t, env.store, userID, "a", "b")
	base := "/api/boards/" + board.ID + "/comments"

	rr := env.do(http.MethodPost, base, token, map[string]any{"nodeId": "a", "body": "Too many fields"})
	expectStatus(t, rr, http.StatusCreated)
	var parent store.Comment
	decodeInto(t, rr, &parent)

	rr = env.do(http.MethodPost, base, token, map[string]any{"nodeId": "b", "parentId": parent.ID, "body": "Agreed"})
	expectStatus(t, rr, http.StatusCreated)
	var reply store.Comment
	decodeInto(t, rr, &reply)
	if reply.NodeID != "a" || reply.ParentID != parent.ID {
		t.Fatalf("expected reply on node a under parent, got %+v", reply)
	}

	rr = env.do(http.MethodGet, base+"?nodeId=a", token, nil)
	expectStatus(t, rr, http.StatusOK)
	var list struct {
		Comments []store.Comment `json:"comments"`
	}
	decodeInto(t, rr, &list)
	if len(list.Comments) != 2 {
		t.Fatalf("expected 2 comments on node a, got %d", len(list.Comments))
	}
}

func TestCommentValidation(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")
	board := storetest.Board(t, env.store, userID, "a")
	base := "/api/boards/" + board.ID + "/comments"

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "blank body", body: map[string]any{"body": "   "}},
		{name: "unknown node", body: map[string]any{"nodeId": "nope", "body": "hi"}},
		{name: "unknown parent", body: map[string]any{"parentId": "cmt_missing", "body": "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, base, token, tt.body)
			expectCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
		})
	}
}

func TestCommentModeration(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, ownerID := env.login("Avery")
	adminToken, adminID := env.login("Blake")
	if err := env.store.SetUserRole(t.Context(), adminID, "admin"); err != nil {
		t.Fatalf("set role: %v", err)
	}
	board := storetest.Board(t, env.store, ownerID, "a")
	base := "/api/boards/" + board.ID + "/comments"

	rr := env.do(http.MethodPost, base, adminToken, map[string]any{"nodeId": "a", "body": "From an admin"})
	expectStatus(t, rr, http.StatusCreated)
	var comment store.Comment
	decodeInto(t, rr, &comment)

	rr = env.do(http.MethodPut, base+"/"+comment.ID, ownerToken, map[string]any{"body": "Rewritten"})
	expectCode(t, rr, http.StatusForbidden, "FORBIDDEN")

	rr = env.do(http.MethodPost, base+"/"+comment.ID+"/resolve", ownerToken, map[string]any{})
	expectStatus(t, rr, http.StatusOK)
	decodeInto(t, rr, &comment)
	if !comment.Resolved {
		t.Fatalf("expected resolve without a body to mark resolved")
	}

	rr = env.do(http.MethodDelete, base+"/"+comment.ID, ownerToken, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodDelete, base+"/"+comment.ID, ownerToken, nil)
	expectCode(t, rr, http.StatusNotFound, "NOT_FOUND")
}

func TestDeleteCommentRemovesReplies(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")
	board := storetest.Board(t, env.store, userID, "a")
	base := "/api/boards/" + board.ID + "/comments"

	rr := env.do(http.MethodPost, base, token, map[string]any{"nodeId": "a", "body": "Parent"})
	var parent store.Comment
	decodeInto(t, rr, &parent)
	expectStatus(t, env.do(http.MethodPost, base, token, map[string]any{"parentId": parent.ID, "body": "Child"}), http.StatusCreated)

	expectStatus(t, env.do(http.MethodDelete, base+"/"+parent.ID, token, nil), http.StatusOK)

	comments, err := env.store.ListComments(t.Context(), board.ID, "")
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 0 {
		t.Fatalf("expected replies removed with parent, got %d", len(comments))
	}
}
