package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store/storetest"
)

func TestBoardLifecycle(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)

	board, err := st.CreateBoard(ctx, store.Board{
		Name:         "Onboarding",
		OwnerID:      "usr_1",
		RelatedTools: []store.ToolReference{{Name: "Figma", URL: "https://figma.example"}},
	})
	require.NoError(t, err)

	got, err := st.GetBoard(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", got.Name)
	assert.Empty(t, got.Version)
	assert.Empty(t, got.RootBoardID)
	assert.Equal(t, []store.ToolReference{{Name: "Figma", URL: "https://figma.example"}}, got.RelatedTools)

	archived := true
	_, err = st.UpdateBoard(ctx, board.ID, store.BoardPatch{Archived: &archived})
	require.NoError(t, err)

	active, err := st.ListBoards(ctx, "usr_1", false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := st.ListBoards(ctx, "usr_1", true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Archived)

	require.NoError(t, st.SetBoardLineage(ctx, board.ID, board.ID, "1.0"))
	got, err = st.GetBoard(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", got.Version)
	assert.Equal(t, board.ID, got.RootBoardID)
}

func TestGetBoardMissingReturnsErrNoRows(t *testing.T) {
	st := storetest.New(t)
	_, err := st.GetBoard(context.Background(), "brd_missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteNodeRemovesIncidentEdgesAndAssignments(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	board := storetest.Board(t, st, "usr_1", "a", "b", "c")

	_, err := st.CreateEdge(ctx, store.Edge{BoardID: board.ID, EdgeID: "a-b", Source: "a", Target: "b"})
	require.NoError(t, err)
	_, err = st.CreateEdge(ctx, store.Edge{BoardID: board.ID, EdgeID: "b-c", Source: "b", Target: "c"})
	require.NoError(t, err)
	_, err = st.CreateEdge(ctx, store.Edge{BoardID: board.ID, EdgeID: "a-c", Source: "a", Target: "c"})
	require.NoError(t, err)

	persona, err := st.CreatePersona(ctx, store.Persona{BoardID: board.ID, Name: "Shopper"})
	require.NoError(t, err)
	_, err = st.AssignPersonaNode(ctx, store.PersonaNode{BoardID: board.ID, PersonaID: persona.ID, NodeID: "b"})
	require.NoError(t, err)

	require.NoError(t, st.DeleteNode(ctx, board.ID, "b"))

	edges, err := st.ListEdges(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "a-c", edges[0].EdgeID)

	links, err := st.ListPersonaNodes(ctx, board.ID)
	require.NoError(t, err)
	assert.Empty(t, links)

	assert.ErrorIs(t, st.DeleteNode(ctx, board.ID, "b"), sql.ErrNoRows)
}

func TestAssignPersonaNodeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	board := storetest.Board(t, st, "usr_1", "a")
	persona, err := st.CreatePersona(ctx, store.Persona{BoardID: board.ID, Name: "Admin"})
	require.NoError(t, err)

	first, err := st.AssignPersonaNode(ctx, store.PersonaNode{BoardID: board.ID, PersonaID: persona.ID, NodeID: "a"})
	require.NoError(t, err)
	second, err := st.AssignPersonaNode(ctx, store.PersonaNode{BoardID: board.ID, PersonaID: persona.ID, NodeID: "a"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestImprovementNumbersAndStatusHistory(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	board := storetest.Board(t, st, "usr_1", "a")

	first, err := st.CreateImprovement(ctx, store.Improvement{BoardID: board.ID, NodeID: "a", Title: "Shorter form"})
	require.NoError(t, err)
	second, err := st.CreateImprovement(ctx, store.Improvement{BoardID: board.ID, NodeID: "a", Title: "Guest checkout"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, store.ImprovementOpen, first.Status)

	updated, err := st.SetImprovementStatus(ctx, first.ID, store.ImprovementInProgress, "Avery", "picked up")
	require.NoError(t, err)
	assert.Equal(t, store.ImprovementInProgress, updated.Status)

	updated, err = st.SetImprovementStatus(ctx, first.ID, store.ImprovementClosed, "Avery", "")
	require.NoError(t, err)

	got, err := st.GetImprovement(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, store.ImprovementOpen, got.StatusHistory[0].From)
	assert.Equal(t, store.ImprovementInProgress, got.StatusHistory[0].To)
	assert.Equal(t, store.ImprovementClosed, got.StatusHistory[1].To)
	assert.Equal(t, updated.Status, got.Status)

	_, err = st.CreateTodo(ctx, store.ImprovementTodo{ImprovementID: first.ID, BoardID: board.ID, Text: "Draft copy"})
	require.NoError(t, err)
	require.NoError(t, st.DeleteImprovement(ctx, first.ID))
	todos, err := st.ListTodos(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestDeleteBoardCascades(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	board := storetest.Board(t, st, "usr_1", "a", "b")
	_, err := st.CreateEdge(ctx, store.Edge{BoardID: board.ID, Source: "a", Target: "b"})
	require.NoError(t, err)
	_, err = st.CreateComment(ctx, store.Comment{BoardID: board.ID, NodeID: "a", AuthorID: "usr_1", AuthorName: "Avery", Body: "Slow step"})
	require.NoError(t, err)

	require.NoError(t, st.DeleteBoard(ctx, board.ID))

	nodes, err := st.ListNodes(ctx, board.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	comments, err := st.ListComments(ctx, board.ID, "")
	require.NoError(t, err)
	assert.Empty(t, comments)
	assert.ErrorIs(t, st.DeleteBoard(ctx, board.ID), sql.ErrNoRows)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)

	err := st.WithTx(ctx, func(tx *store.Store) error {
		if _, err := tx.CreateBoard(ctx, store.Board{Name: "Doomed", OwnerID: "usr_1"}); err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	require.ErrorIs(t, err, sql.ErrTxDone)

	boards, err := st.ListBoards(ctx, "", true)
	require.NoError(t, err)
	assert.Empty(t, boards)
}

func TestSearchTextMatchesBoardsNodesAndComments(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	board := storetest.Board(t, st, "usr_1", "pay")
	_, err := st.CreateComment(ctx, store.Comment{BoardID: board.ID, AuthorID: "usr_1", AuthorName: "Avery", Body: "Payment page times out"})
	require.NoError(t, err)

	hits, err := st.SearchText(ctx, "usr_1", "step pay", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "node", hits[0].Kind)

	hits, err = st.SearchText(ctx, "usr_1", "PAYMENT", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "comment", hits[0].Kind)

	hits, err = st.SearchText(ctx, "usr_2", "payment", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChatMessagesKeepConversationOrder(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	board := storetest.Board(t, st, "usr_1")

	base := time.Now().Add(-time.Minute)
	for i, content := range []string{"one", "two", "three"} {
		_, err := st.CreateChatMessage(ctx, store.ChatMessage{
			BoardID:   board.ID,
			Role:      "user",
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	messages, err := st.ListChatMessages(ctx, board.ID, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "two", messages[0].Content)
	assert.Equal(t, "three", messages[1].Content)
}
