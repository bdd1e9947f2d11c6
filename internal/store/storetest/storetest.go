// Package storetest opens migrated in-memory stores for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

// New returns a Store over a fresh, migrated SQLite :memory: database that is
// closed when the test ends.
func New(t testing.TB) *store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(ctx, db, store.DialectSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store.NewStore(db, store.DialectSQLite)
}

// Board seeds a board owned by ownerID with the given node IDs laid out left to right.
func Board(t testing.TB, st *store.Store, ownerID string, nodeIDs ...string) store.Board {
	t.Helper()
	ctx := context.Background()
	board, err := st.CreateBoard(ctx, store.Board{Name: "Checkout journey", OwnerID: ownerID})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	for i, nodeID := range nodeIDs {
		if _, err := st.CreateNode(ctx, store.Node{
			BoardID: board.ID,
			NodeID:  nodeID,
			Type:    store.NodeTypeText,
			X:       float64(100 * i),
			Y:       100,
			Data:    store.NodeData{Label: "Step " + nodeID},
		}); err != nil {
			t.Fatalf("create node %s: %v", nodeID, err)
		}
	}
	return board
}
