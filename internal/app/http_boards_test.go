package app

import (
	"net/http"
	"testing"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store/storetest"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/versioning"
)

func TestBoardLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")

	rr := env.do(http.MethodPost, "/api/boards", token, map[string]any{
		"name":        "  Onboarding  ",
		"description": "First run",
	})
	expectStatus(t, rr, http.StatusCreated)
	var board store.Board
	decodeInto(t, rr, &board)
	if board.Name != "Onboarding" || board.OwnerID != userID {
		t.Fatalf("unexpected board %+v", board)
	}

	rr = env.do(http.MethodGet, "/api/boards", token, nil)
	expectStatus(t, rr, http.StatusOK)
	var list struct {
		Boards []store.Board `json:"boards"`
	}
	decodeInto(t, rr, &list)
	if len(list.Boards) != 1 || list.Boards[0].ID != board.ID {
		t.Fatalf("expected the created board in list, got %+v", list.Boards)
	}

	rr = env.do(http.MethodPut, "/api/boards/"+board.ID, token, map[string]any{"name": "Onboarding v2"})
	expectStatus(t, rr, http.StatusOK)
	decodeInto(t, rr, &board)
	if board.Name != "Onboarding v2" {
		t.Fatalf("expected renamed board, got %q", board.Name)
	}

	rr = env.do(http.MethodPut, "/api/boards/"+board.ID, token, map[string]any{"name": "   "})
	expectCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr = env.do(http.MethodGet, "/api/boards/"+board.ID, token, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodDelete, "/api/boards/"+board.ID, token, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodGet, "/api/boards/"+board.ID, token, nil)
	expectCode(t, rr, http.StatusNotFound, "NOT_FOUND")
}

func TestCreateBoardValidatesName(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login("Avery")

	rr := env.do(http.MethodPost, "/api/boards", token, map[string]any{"description": "no name"})

	expectCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	details, _ := decodeMap(t, rr)["details"].(map[string]any)
	if details["name"] != "required" {
		t.Fatalf("expected name=required detail, got %v", details)
	}
}

func TestOtherUsersBoardIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, ownerID := env.login("Avery")
	intruder, _ := env.login("Blake")
	board := storetest.Board(t, env.store, ownerID, "a")

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/boards/" + board.ID},
		{http.MethodDelete, "/api/boards/" + board.ID},
		{http.MethodGet, "/api/boards/" + board.ID + "/nodes"},
		{http.MethodGet, "/api/boards/" + board.ID + "/comments"},
	} {
		rr := env.do(tc.method, tc.path, intruder, nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestViewerCannotEditOwnBoard(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")
	board := storetest.Board(t, env.store, userID, "a")
	if err := env.store.SetUserRole(t.Context(), userID, "viewer"); err != nil {
		t.Fatalf("set role: %v", err)
	}

	rr := env.do(http.MethodGet, "/api/boards/"+board.ID, token, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodPut, "/api/boards/"+board.ID, token, map[string]any{"name": "Renamed"})
	expectCode(t, rr, http.StatusForbidden, "FORBIDDEN")

	rr = env.do(http.MethodPost, "/api/boards", token, map[string]any{"name": "New"})
	expectCode(t, rr, http.StatusForbidden, "FORBIDDEN")
}

func TestNodeAndEdgeEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")
	board := storetest.Board(t, env.store, userID, "a")
	base := "/api/boards/" + board.ID

	rr := env.do(http.MethodPost, base+"/nodes", token, map[string]any{
		"nodeId": "b",
		"type":   "text",
		"x":      200,
		"y":      100,
		"data":   map[string]any{"label": "Pay"},
	})
	expectStatus(t, rr, http.StatusCreated)

	rr = env.do(http.MethodPost, base+"/nodes", token, map[string]any{"nodeId": "b"})
	expectCode(t, rr, http.StatusConflict, "NODE_EXISTS")

	rr = env.do(http.MethodPost, base+"/edges", token, map[string]any{"source": "a", "target": "missing"})
	expectCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr = env.do(http.MethodPost, base+"/edges", token, map[string]any{"source": "a", "target": "b", "label": "next"})
	expectStatus(t, rr, http.StatusCreated)
	var edge store.Edge
	decodeInto(t, rr, &edge)

	rr = env.do(http.MethodPut, base+"/edges/"+edge.EdgeID, token, map[string]any{"label": "then"})
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodPut, base+"/nodes/positions", token, map[string]any{
		"positions": []map[string]any{{"nodeId": "a", "x": 10, "y": 20}},
	})
	expectStatus(t, rr, http.StatusOK)
	node, err := env.store.GetNode(t.Context(), board.ID, "a")
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if node.X != 10 || node.Y != 20 {
		t.Fatalf("expected moved node, got (%v,%v)", node.X, node.Y)
	}

	rr = env.do(http.MethodDelete, base+"/nodes/b", token, nil)
	expectStatus(t, rr, http.StatusOK)
	edges, err := env.store.ListEdges(t.Context(), board.ID)
	if err != nil {
		t.Fatalf("list edges: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected edges touching b to be removed, got %d", len(edges))
	}

	rr = env.do(http.MethodDelete, base+"/nodes/b", token, nil)
	expectCode(t, rr, http.StatusNotFound, "NOT_FOUND")
}

func TestPersonaAssignment(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")
	board := storetest.Board(t, env.store, userID, "a")
	base := "/api/boards/" + board.ID

	rr := env.do(http.MethodPost, base+"/personas", token, map[string]any{"name": "First-time buyer"})
	expectStatus(t, rr, http.StatusCreated)
	var persona store.Persona
	decodeInto(t, rr, &persona)

	rr = env.do(http.MethodPost, base+"/personas/"+persona.ID+"/nodes", token, map[string]any{"nodeId": "zzz"})
	expectCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr = env.do(http.MethodPost, base+"/personas/"+persona.ID+"/nodes", token, map[string]any{"nodeId": "a"})
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodGet, base+"/persona-nodes", token, nil)
	expectStatus(t, rr, http.StatusOK)
	var links struct {
		PersonaNodes []store.PersonaNode `json:"personaNodes"`
	}
	decodeInto(t, rr, &links)
	if len(links.PersonaNodes) != 1 {
		t.Fatalf("expected one persona link, got %d", len(links.PersonaNodes))
	}

	rr = env.do(http.MethodDelete, base+"/personas/"+persona.ID+"/nodes/a", token, nil)
	expectStatus(t, rr, http.StatusOK)
}

func TestCloneUnknownBoardReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login("Avery")

	rr := env.do(http.MethodPost, "/api/boards/brd_missing/clone", token, map[string]any{})

	expectCode(t, rr, http.StatusNotFound, "NOT_FOUND")
}

func TestCloneAndCompare(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")
	board := storetest.Board(t, env.store, userID, "a", "b")

	rr := env.do(http.MethodPost, "/api/boards/"+board.ID+"/clone", token, map[string]any{"versionNote": "copy"})
	expectStatus(t, rr, http.StatusCreated)
	var clone store.Board
	decodeInto(t, rr, &clone)
	if clone.ID == board.ID || clone.Version == "" {
		t.Fatalf("unexpected clone %+v", clone)
	}

	rr = env.do(http.MethodGet, "/api/boards/"+board.ID+"/versions", token, nil)
	expectStatus(t, rr, http.StatusOK)
	var versions struct {
		Versions []store.Board `json:"versions"`
	}
	decodeInto(t, rr, &versions)
	if len(versions.Versions) != 2 {
		t.Fatalf("expected two versions, got %d", len(versions.Versions))
	}

	rr = env.do(http.MethodGet, "/api/boards/"+board.ID+"/compare?to="+clone.ID, token, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodGet, "/api/boards/"+board.ID+"/compare", token, nil)
	expectCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestApplyProposalsCreatesVersion(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")
	board := storetest.Board(t, env.store, userID, "existing")

	rr := env.do(http.MethodPost, "/api/boards/"+board.ID+"/proposals/apply", token, `{
		"proposals": [
			{"action":"addNode","label":"X"},
			{"action":"addEdge","source":"x","target":"existing","label":"then"},
			{"action":"explode"}
		],
		"versionNote": "ai pass"
	}`)

	expectStatus(t, rr, http.StatusCreated)
	var result versioning.ApplyResult
	decodeInto(t, rr, &result)
	if result.Applied != 2 {
		t.Fatalf("expected 2 applied, got %d", result.Applied)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Index != 2 {
		t.Fatalf("expected the unknown action skipped, got %+v", result.Skipped)
	}
	if result.Board.ID == board.ID || result.Board.VersionNote != "ai pass" {
		t.Fatalf("expected a new version, got %+v", result.Board)
	}
}

func TestApplyProposalsRequiresProposals(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.login("Avery")
	board := storetest.Board(t, env.store, userID, "a")

	rr := env.do(http.MethodPost, "/api/boards/"+board.ID+"/proposals/apply", token, map[string]any{"proposals": []any{}})

	expectCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}
