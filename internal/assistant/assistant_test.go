package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/llm"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/ratelimit"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store/storetest"
)

type fakeCompleter struct {
	reply   string
	err     error
	systems []string
	calls   [][]llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, system string, messages []llm.Message) (string, error) {
	f.systems = append(f.systems, system)
	f.calls = append(f.calls, messages)
	return f.reply, f.err
}

var actor = Actor{ID: "usr_1", Name: "Dana"}

func seed(t *testing.T) (*store.Store, store.Board) {
	t.Helper()
	ctx := context.Background()
	st := storetest.New(t)
	board := storetest.Board(t, st, "usr_1", "cart", "pay", "done")
	_, err := st.CreateEdge(ctx, store.Edge{BoardID: board.ID, Source: "cart", Target: "pay", Label: "checkout"})
	require.NoError(t, err)
	_, err = st.CreateEdge(ctx, store.Edge{BoardID: board.ID, Source: "pay", Target: "done"})
	require.NoError(t, err)
	return st, board
}

func TestDescribeIsDeterministicAndFiltersByPersona(t *testing.T) {
	ctx := context.Background()
	st, board := seed(t)
	persona, err := st.CreatePersona(ctx, store.Persona{BoardID: board.ID, Name: "Returning buyer"})
	require.NoError(t, err)
	for _, nodeID := range []string{"cart", "pay"} {
		_, err = st.AssignPersonaNode(ctx, store.PersonaNode{BoardID: board.ID, PersonaID: persona.ID, NodeID: nodeID})
		require.NoError(t, err)
	}
	_, err = st.CreateComment(ctx, store.Comment{BoardID: board.ID, NodeID: "pay", AuthorName: "Dana", Body: "Too many\nfields"})
	require.NoError(t, err)

	bc, err := LoadContext(ctx, st, board.ID)
	require.NoError(t, err)

	full := Describe(bc, "")
	assert.Equal(t, full, Describe(bc, ""))
	assert.Contains(t, full, `- [done] (text) "Step done"`)
	assert.Contains(t, full, `- cart -> pay "checkout"`)
	assert.Contains(t, full, "personas: Returning buyer")
	assert.Contains(t, full, "- on [pay] by Dana: Too many fields")

	focused := Describe(bc, persona.ID)
	assert.Contains(t, focused, "Focus persona: Returning buyer")
	assert.NotContains(t, focused, "[done]")
	assert.NotContains(t, focused, "pay -> done")
	assert.Contains(t, focused, "cart -> pay")
}

func TestAskStoresConversationAndProposals(t *testing.T) {
	ctx := context.Background()
	st, board := seed(t)
	fake := &fakeCompleter{reply: "Add a confirmation step after payment.\n\n```json\n" +
		`{"proposals":[{"action":"addNode","label":"Confirmation","afterNode":"pay"},{"action":"teleport"}]}` +
		"\n```"}
	svc := NewService(st, fake, nil, nil, Options{})
	fixed := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	reply, err := svc.Ask(ctx, board.ID, actor, "What is missing after payment?", "")
	require.NoError(t, err)
	assert.Equal(t, "Add a confirmation step after payment.", reply.Text)
	require.Len(t, reply.Skipped, 1)
	assert.Equal(t, "teleport", reply.Skipped[0].Action)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(reply.Proposals, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "addNode", items[0]["action"])

	require.Len(t, fake.systems, 1)
	assert.True(t, strings.HasPrefix(fake.systems[0], askSystemPrompt))
	assert.Contains(t, fake.systems[0], "[pay]")

	messages, err := st.ListChatMessages(ctx, board.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.True(t, messages[1].CreatedAt.After(messages[0].CreatedAt))
	assert.JSONEq(t, string(reply.Proposals), string(messages[1].Proposals))
}

func TestAskSendsHistory(t *testing.T) {
	ctx := context.Background()
	st, board := seed(t)
	fake := &fakeCompleter{reply: "Sure."}
	svc := NewService(st, fake, nil, nil, Options{})
	clock := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	_, err := svc.Ask(ctx, board.ID, actor, "first", "")
	require.NoError(t, err)
	_, err = svc.Ask(ctx, board.ID, actor, "second", "")
	require.NoError(t, err)

	require.Len(t, fake.calls, 2)
	second := fake.calls[1]
	require.Len(t, second, 3)
	assert.Equal(t, llm.Message{Role: "user", Content: "first"}, second[0])
	assert.Equal(t, llm.Message{Role: "assistant", Content: "Sure."}, second[1])
	assert.Equal(t, llm.Message{Role: "user", Content: "second"}, second[2])
}

func TestAskFailureBecomesText(t *testing.T) {
	ctx := context.Background()
	st, board := seed(t)
	var outcomes []string
	svc := NewService(st, &fakeCompleter{err: errors.New("upstream 502")}, nil, nil, Options{
		Observe: func(kind, outcome string) { outcomes = append(outcomes, kind+":"+outcome) },
	})

	reply, err := svc.Ask(ctx, board.ID, actor, "hello?", "")
	require.NoError(t, err)
	assert.Equal(t, unavailableText, reply.Text)
	assert.Empty(t, reply.Proposals)
	assert.Equal(t, []string{"ask:error"}, outcomes)
}

func TestAskMalformedBlockYieldsNoProposals(t *testing.T) {
	st, board := seed(t)
	reply := "Here you go\n```json\n{\"proposals\": [ {\"action\": \"addNode\", }\n```"
	svc := NewService(st, &fakeCompleter{reply: reply}, nil, nil, Options{})

	got, err := svc.Ask(context.Background(), board.ID, actor, "ideas?", "")
	require.NoError(t, err)
	assert.Equal(t, reply, got.Text)
	assert.Empty(t, got.Proposals)
}

func TestAskUnknownBoard(t *testing.T) {
	st := storetest.New(t)
	svc := NewService(st, &fakeCompleter{reply: "x"}, nil, nil, Options{})
	_, err := svc.Ask(context.Background(), "brd_missing", actor, "hi", "")
	require.Error(t, err)
}

func TestRateLimitedActor(t *testing.T) {
	st, board := seed(t)
	svc := NewService(st, &fakeCompleter{reply: "ok"}, ratelimit.NewLocalLimiter(1, time.Hour), nil, Options{})

	_, err := svc.Summarize(context.Background(), board.ID, actor)
	require.NoError(t, err)
	_, err = svc.Summarize(context.Background(), board.ID, actor)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestAnalyzeStoresReportWithKnownNodes(t *testing.T) {
	ctx := context.Background()
	st, board := seed(t)
	fake := &fakeCompleter{reply: "Two issues.\n```json\n" + `{
		"title": "Checkout review",
		"summary": "Payment is a dead end on failure.",
		"findings": [
			{"type": "dead_end", "severity": "high", "description": "No retry after a declined card", "affectedNodeIds": ["pay", "ghost"]},
			{"type": "gap", "severity": "low", "description": ""}
		]
	}` + "\n```"}
	svc := NewService(st, fake, nil, nil, Options{})

	result, err := svc.Analyze(ctx, board.ID, actor, "")
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Equal(t, "Checkout review", result.Report.Title)
	require.Len(t, result.Report.Findings, 1)
	assert.Equal(t, []string{"pay"}, result.Report.Findings[0].AffectedNodeIDs)

	reports, err := st.ListReports(ctx, board.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestAnalyzeWithoutBlockStoresNothing(t *testing.T) {
	ctx := context.Background()
	st, board := seed(t)
	svc := NewService(st, &fakeCompleter{reply: "I could not find issues."}, nil, nil, Options{})

	result, err := svc.Analyze(ctx, board.ID, actor, "")
	require.NoError(t, err)
	assert.Nil(t, result.Report)
	assert.Equal(t, "I could not find issues.", result.Text)

	reports, err := st.ListReports(ctx, board.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestAnnotateCreatesCommentsForKnownNodes(t *testing.T) {
	ctx := context.Background()
	st, board := seed(t)
	fake := &fakeCompleter{reply: "```json\n" +
		`[{"nodeId":"pay","comment":"Offer wallets"},{"nodeId":"nowhere","comment":"x"},{"nodeId":"cart","comment":"  "}]` +
		"\n```"}
	svc := NewService(st, fake, nil, nil, Options{})

	result, err := svc.Annotate(ctx, board.ID, actor)
	require.NoError(t, err)
	require.Len(t, result.Comments, 1)
	assert.Equal(t, AuthorName, result.Comments[0].AuthorName)

	comments, err := st.ListComments(ctx, board.ID, "pay")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Offer wallets", comments[0].Body)
}

func TestSummarizeStoresOnBoard(t *testing.T) {
	ctx := context.Background()
	st, board := seed(t)
	svc := NewService(st, &fakeCompleter{reply: "  A three step checkout.  "}, nil, nil, Options{})

	result, err := svc.Summarize(ctx, board.ID, actor)
	require.NoError(t, err)
	assert.True(t, result.Stored)

	got, err := st.GetBoard(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, "A three step checkout.", got.AISummary)
	assert.NotNil(t, got.AISummaryAt)
}

func TestSummarizeWithoutModel(t *testing.T) {
	st, board := seed(t)
	svc := NewService(st, nil, nil, nil, Options{})
	result, err := svc.Summarize(context.Background(), board.ID, actor)
	require.NoError(t, err)
	assert.False(t, result.Stored)
	assert.Equal(t, notConfiguredText, result.Text)
}
