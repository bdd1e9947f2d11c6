package versioning_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store/storetest"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/versioning"
)

func newService(t *testing.T) (*versioning.Service, *store.Store) {
	t.Helper()
	st := storetest.New(t)
	return versioning.NewService(st, nil, nil), st
}

func nodeIDs(t *testing.T, st *store.Store, boardID string) []string {
	t.Helper()
	nodes, err := st.ListNodes(context.Background(), boardID)
	require.NoError(t, err)
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.NodeID)
	}
	return ids
}

func edgePairs(t *testing.T, st *store.Store, boardID string) []string {
	t.Helper()
	edges, err := st.ListEdges(context.Background(), boardID)
	require.NoError(t, err)
	pairs := make([]string, 0, len(edges))
	for _, edge := range edges {
		pairs = append(pairs, edge.Source+"->"+edge.Target+":"+edge.Label)
	}
	return pairs
}

func proposalList(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		out = append(out, json.RawMessage(item))
	}
	return out
}

func TestCloneBackfillsUnversionedSource(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "a", "b")
	_, err := st.CreateEdge(ctx, store.Edge{BoardID: source.ID, EdgeID: "a-b", Source: "a", Target: "b"})
	require.NoError(t, err)

	clone, err := svc.CloneBoard(ctx, source.ID, "")
	require.NoError(t, err)

	assert.Equal(t, "1.1", clone.Version)
	assert.Equal(t, source.ID, clone.ParentBoardID)
	assert.Equal(t, source.ID, clone.RootBoardID)
	assert.NotEqual(t, source.ID, clone.ID)
	assert.Equal(t, []string{"a", "b"}, nodeIDs(t, st, clone.ID))
	assert.Equal(t, []string{"a->b:"}, edgePairs(t, st, clone.ID))

	updated, err := st.GetBoard(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", updated.Version)
	assert.Equal(t, source.ID, updated.RootBoardID)
}

func TestCloneLeavesVersionedSourceAlone(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	root, err := st.CreateBoard(ctx, store.Board{Name: "Root", OwnerID: "usr_1", Version: "1.0"})
	require.NoError(t, err)
	require.NoError(t, st.SetBoardLineage(ctx, root.ID, root.ID, "1.0"))
	source, err := st.CreateBoard(ctx, store.Board{
		Name:          "Checkout",
		OwnerID:       "usr_1",
		Version:       "1.3",
		ParentBoardID: root.ID,
		RootBoardID:   root.ID,
	})
	require.NoError(t, err)

	clone, err := svc.CloneBoard(ctx, source.ID, "tighten payment step")
	require.NoError(t, err)
	assert.Equal(t, "1.4", clone.Version)
	assert.Equal(t, root.ID, clone.RootBoardID)
	assert.Equal(t, source.ID, clone.ParentBoardID)
	assert.Equal(t, "tighten payment step", clone.VersionNote)

	after, err := st.GetBoard(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.3", after.Version)
}

func TestClonePreservesGraphWithDisjointRecords(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "start", "pay", "done")
	_, err := st.CreateEdge(ctx, store.Edge{BoardID: source.ID, EdgeID: "e1", Source: "start", Target: "pay", Label: "next"})
	require.NoError(t, err)
	_, err = st.CreateEdge(ctx, store.Edge{BoardID: source.ID, EdgeID: "e2", Source: "pay", Target: "done"})
	require.NoError(t, err)

	clone, err := svc.CloneBoard(ctx, source.ID, "")
	require.NoError(t, err)

	before, err := st.ListNodes(ctx, source.ID)
	require.NoError(t, err)
	after, err := st.ListNodes(ctx, clone.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].NodeID, after[i].NodeID)
		assert.Equal(t, before[i].X, after[i].X)
		assert.Equal(t, before[i].Y, after[i].Y)
		assert.Equal(t, before[i].Type, after[i].Type)
		assert.Equal(t, before[i].Data.Label, after[i].Data.Label)
		assert.NotEqual(t, before[i].ID, after[i].ID)
		assert.Equal(t, clone.ID, after[i].BoardID)
	}

	srcEdges, err := st.ListEdges(ctx, source.ID)
	require.NoError(t, err)
	dstEdges, err := st.ListEdges(ctx, clone.ID)
	require.NoError(t, err)
	require.Len(t, dstEdges, 2)
	for i := range srcEdges {
		assert.Equal(t, srcEdges[i].EdgeID, dstEdges[i].EdgeID)
		assert.Equal(t, srcEdges[i].Label, dstEdges[i].Label)
		assert.NotEqual(t, srcEdges[i].ID, dstEdges[i].ID)
	}
}

func TestCloneRemapsPersonasImprovementsAndScreenshots(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "a", "b")

	persona, err := st.CreatePersona(ctx, store.Persona{BoardID: source.ID, Name: "First-time buyer"})
	require.NoError(t, err)
	_, err = st.AssignPersonaNode(ctx, store.PersonaNode{BoardID: source.ID, PersonaID: persona.ID, NodeID: "a"})
	require.NoError(t, err)
	_, err = st.AssignPersonaNode(ctx, store.PersonaNode{BoardID: source.ID, PersonaID: "prs_gone", NodeID: "b"})
	require.NoError(t, err)

	item, err := st.CreateImprovement(ctx, store.Improvement{BoardID: source.ID, NodeID: "a", Title: "Shorter form"})
	require.NoError(t, err)
	_, err = st.SetImprovementStatus(ctx, item.ID, store.ImprovementInProgress, "usr_1", "started")
	require.NoError(t, err)
	_, err = st.CreateTodo(ctx, store.ImprovementTodo{ImprovementID: item.ID, BoardID: source.ID, Text: "Drop fax field"})
	require.NoError(t, err)

	shot, err := st.CreateScreenshot(ctx, store.Screenshot{BoardID: source.ID, StorageKey: "boards/x/login.png", Filename: "login.png"})
	require.NoError(t, err)
	shotNode, err := st.CreateNode(ctx, store.Node{
		BoardID: source.ID,
		NodeID:  "shot",
		Type:    store.NodeTypeScreenshot,
		Data:    store.NodeData{Label: "Login", ScreenshotID: shot.ID, StorageKey: shot.StorageKey},
	})
	require.NoError(t, err)

	clone, err := svc.CloneBoard(ctx, source.ID, "")
	require.NoError(t, err)

	personas, err := st.ListPersonas(ctx, clone.ID)
	require.NoError(t, err)
	require.Len(t, personas, 1)
	assert.NotEqual(t, persona.ID, personas[0].ID)

	links, err := st.ListPersonaNodes(ctx, clone.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, personas[0].ID, links[0].PersonaID)
	assert.Equal(t, "a", links[0].NodeID)

	items, err := st.ListImprovements(ctx, clone.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Number)
	assert.Equal(t, store.ImprovementInProgress, items[0].Status)
	assert.Len(t, items[0].StatusHistory, 1)

	todos, err := st.ListTodos(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, clone.ID, todos[0].BoardID)

	shots, err := st.ListScreenshots(ctx, clone.ID)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	assert.NotEqual(t, shot.ID, shots[0].ID)
	assert.Equal(t, shot.StorageKey, shots[0].StorageKey)

	copied, err := st.GetNode(ctx, clone.ID, shotNode.NodeID)
	require.NoError(t, err)
	assert.Equal(t, shots[0].ID, copied.Data.ScreenshotID)
}

func TestCloneMissingBoard(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CloneBoard(context.Background(), "brd_missing", "")
	assert.ErrorIs(t, err, versioning.ErrBoardNotFound)
}

func TestFailedCloneWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "a", "b")
	_, err := st.CreateImprovement(ctx, store.Improvement{BoardID: source.ID, Title: "Copy me"})
	require.NoError(t, err)

	_, err = st.DB().ExecContext(ctx, `DROP TABLE improvement_todos`)
	require.NoError(t, err)

	_, err = svc.CloneBoard(ctx, source.ID, "")
	require.Error(t, err)

	boards, err := st.ListBoards(ctx, "usr_1", true)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Empty(t, boards[0].Version)

	var nodes int
	require.NoError(t, st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&nodes))
	assert.Equal(t, 2, nodes)
}

func TestHistoryOrdersNumerically(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	root := storetest.Board(t, st, "usr_1", "a")

	current := root
	for i := 0; i < 10; i++ {
		next, err := svc.CloneBoard(ctx, current.ID, "")
		require.NoError(t, err)
		current = next
	}
	assert.Equal(t, "1.10", current.Version)

	history, err := svc.History(ctx, current.ID)
	require.NoError(t, err)
	require.Len(t, history, 11)
	versions := make([]string, 0, len(history))
	for _, board := range history {
		versions = append(versions, board.Version)
	}
	assert.Equal(t, []string{"1.0", "1.1", "1.2", "1.3", "1.4", "1.5", "1.6", "1.7", "1.8", "1.9", "1.10"}, versions)

	fromRoot, err := svc.History(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, fromRoot, 11)
}

func TestHistoryOfUnclonedBoard(t *testing.T) {
	svc, st := newService(t)
	board := storetest.Board(t, st, "usr_1")
	history, err := svc.History(context.Background(), board.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, board.ID, history[0].ID)
}

func TestApplyAddNodeThenConnectByLabel(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "existing")

	result, err := svc.ApplyProposals(ctx, source.ID, proposalList(
		`{"action":"addNode","label":"X"}`,
		`{"action":"addEdge","source":"x","target":"existing","label":"then"}`,
	), "ai pass")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, "1.1", result.Board.Version)
	assert.Equal(t, "ai pass", result.Board.VersionNote)

	nodes, err := st.ListNodes(ctx, result.Board.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	var added store.Node
	for _, node := range nodes {
		if node.NodeID != "existing" {
			added = node
		}
	}
	assert.Equal(t, "X", added.Data.Label)
	assert.Equal(t, float64(200), added.X)
	assert.Equal(t, float64(400), added.Y)

	assert.Equal(t, []string{added.NodeID + "->existing:then"}, edgePairs(t, st, result.Board.ID))
	assert.Equal(t, []string{"existing"}, nodeIDs(t, st, source.ID))
	assert.Empty(t, edgePairs(t, st, source.ID))
}

func TestApplyAnchoredAddNode(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "a", "b")

	result, err := svc.ApplyProposals(ctx, source.ID, proposalList(
		`{"action":"addNode","label":"Verify email","afterNode":"b","connectionLabel":"on success"}`,
		`{"action":"addNode","label":"Loose one"}`,
		`{"action":"addNode","label":"Loose two","afterNode":"nowhere"}`,
	), "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Applied)

	nodes, err := st.ListNodes(ctx, result.Board.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 5)
	byLabel := map[string]store.Node{}
	for _, node := range nodes {
		byLabel[node.Data.Label] = node
	}
	verify := byLabel["Verify email"]
	assert.Equal(t, float64(100), verify.X)
	assert.Equal(t, float64(400), verify.Y)
	// The anchored addition still counts toward the loose row offset.
	assert.Equal(t, float64(500), byLabel["Loose one"].X)
	assert.Equal(t, float64(800), byLabel["Loose two"].X)
	assert.Equal(t, float64(400), byLabel["Loose two"].Y)

	assert.Equal(t, []string{"b->" + verify.NodeID + ":on success"}, edgePairs(t, st, result.Board.ID))
}

func TestApplyRemoveNodeLeavesNoDanglingEdges(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "a", "b", "c")
	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}} {
		_, err := st.CreateEdge(ctx, store.Edge{BoardID: source.ID, Source: pair[0], Target: pair[1]})
		require.NoError(t, err)
	}

	result, err := svc.ApplyProposals(ctx, source.ID, proposalList(
		`{"action":"removeNode","nodeId":"b"}`,
		`{"action":"relabelEdge","source":"a","target":"b","label":"gone"}`,
	), "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, 1, result.Skipped[0].Index)

	assert.Equal(t, []string{"a", "c"}, nodeIDs(t, st, result.Board.ID))
	assert.Equal(t, []string{"a->c:"}, edgePairs(t, st, result.Board.ID))
	assert.Len(t, edgePairs(t, st, source.ID), 3)
}

func TestApplyRelabelAndRemoveEdge(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "a", "b", "c")
	_, err := st.CreateEdge(ctx, store.Edge{BoardID: source.ID, Source: "a", Target: "b", Label: "old"})
	require.NoError(t, err)
	_, err = st.CreateEdge(ctx, store.Edge{BoardID: source.ID, Source: "b", Target: "c"})
	require.NoError(t, err)

	result, err := svc.ApplyProposals(ctx, source.ID, proposalList(
		`{"action":"relabelEdge","source":"Step a","target":"b","label":"new"}`,
		`{"action":"removeEdge","source":"b","target":"c"}`,
		`{"action":"removeEdge","source":"c","target":"a"}`,
	), "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "removeEdge", result.Skipped[0].Action)

	assert.Equal(t, []string{"a->b:new"}, edgePairs(t, st, result.Board.ID))
}

func TestApplySkipsUnknownAndUnresolvable(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "a")

	result, err := svc.ApplyProposals(ctx, source.ID, proposalList(
		`{"action":"renameBoard","name":"Nope"}`,
		`{"action":"addEdge","source":"a","target":"missing"}`,
		`{"action":"removeNode","label":"nobody"}`,
		`{"action":"addNode","label":"Kept"}`,
	), "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Skipped, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{result.Skipped[0].Index, result.Skipped[1].Index, result.Skipped[2].Index})
	assert.Len(t, nodeIDs(t, st, result.Board.ID), 2)
}

func TestApplyOnMissingBoard(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ApplyProposals(context.Background(), "brd_missing", nil, "")
	assert.True(t, errors.Is(err, versioning.ErrBoardNotFound))
}

func TestCompareVersions(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	source := storetest.Board(t, st, "usr_1", "a", "b")
	_, err := st.CreateEdge(ctx, store.Edge{BoardID: source.ID, EdgeID: "ab", Source: "a", Target: "b", Label: "go"})
	require.NoError(t, err)
	_, err = st.CreatePersona(ctx, store.Persona{BoardID: source.ID, Name: "Admin"})
	require.NoError(t, err)

	result, err := svc.ApplyProposals(ctx, source.ID, proposalList(
		`{"action":"addNode","label":"C","afterNode":"b"}`,
		`{"action":"relabelEdge","source":"a","target":"b","label":"continue"}`,
		`{"action":"removeNode","nodeId":"a"}`,
	), "")
	require.NoError(t, err)
	_, err = st.CreatePersona(ctx, store.Persona{BoardID: result.Board.ID, Name: "Guest"})
	require.NoError(t, err)
	x := float64(999)
	_, err = st.UpdateNode(ctx, result.Board.ID, "b", store.NodePatch{X: &x})
	require.NoError(t, err)

	diff, err := svc.Compare(ctx, source.ID, result.Board.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", diff.FromVersion)
	assert.Equal(t, "1.1", diff.ToVersion)
	assert.Len(t, diff.NodesAdded, 1)
	assert.Equal(t, []string{"a"}, diff.NodesRemoved)
	assert.Equal(t, []versioning.NodeChange{{NodeID: "b", Fields: []string{"position"}}}, diff.NodesChanged)
	assert.Len(t, diff.EdgesAdded, 1)
	require.Len(t, diff.EdgesRemoved, 1)
	assert.Equal(t, "ab", diff.EdgesRemoved[0].EdgeID)
	assert.Equal(t, []string{"Guest"}, diff.PersonasAdded)
	assert.Empty(t, diff.PersonasRemoved)
	assert.False(t, diff.Empty())
}

func TestCompareRejectsOtherLineage(t *testing.T) {
	svc, st := newService(t)
	one := storetest.Board(t, st, "usr_1", "a")
	two := storetest.Board(t, st, "usr_1", "a")
	_, err := svc.Compare(context.Background(), one.ID, two.ID)
	assert.ErrorIs(t, err, versioning.ErrDifferentLineage)
}
