// Package assistant answers questions about a board and produces analyses,
// review comments and summaries with a language model. Model failures become
// readable text rather than request errors.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/llm"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/proposals"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/ratelimit"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

// ErrRateLimited is returned when the actor has used up their assistant quota.
var ErrRateLimited = errors.New("assistant rate limit exceeded")

const (
	AuthorID   = "assistant"
	AuthorName = "AI Assistant"

	defaultHistoryLimit = 20
	unavailableText     = "The assistant could not answer right now. Please try again in a moment."
	notConfiguredText   = "The assistant is not configured on this server."
)

type Actor struct {
	ID   string
	Name string
}

type Options struct {
	// HistoryLimit caps how many earlier chat messages are sent with a question.
	HistoryLimit int
	// Observe, when set, is told the kind and outcome of every request.
	Observe func(kind, outcome string)
}

type Service struct {
	store   *store.Store
	llm     llm.Completer
	limiter ratelimit.Limiter
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
}

func NewService(st *store.Store, completer llm.Completer, limiter ratelimit.Limiter, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	return &Service{store: st, llm: completer, limiter: limiter, logger: logger, opts: opts, now: time.Now}
}

func (s *Service) observe(kind, outcome string) {
	if s.opts.Observe != nil {
		s.opts.Observe(kind, outcome)
	}
}

func (s *Service) allow(ctx context.Context, kind string, actor Actor) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, actor.ID)
	if err != nil {
		s.logger.Warn("rate limiter failed", zap.String("actor", actor.ID), zap.Error(err))
	}
	if !ok {
		s.observe(kind, "rate_limited")
		return ErrRateLimited
	}
	return nil
}

// complete calls the model and reports the text to show when it fails.
func (s *Service) complete(ctx context.Context, kind, system string, messages []llm.Message) (string, bool) {
	if s.llm == nil {
		s.observe(kind, "unconfigured")
		return notConfiguredText, false
	}
	text, err := s.llm.Complete(ctx, system, messages)
	if errors.Is(err, llm.ErrNotConfigured) {
		s.observe(kind, "unconfigured")
		return notConfiguredText, false
	}
	if err != nil {
		s.logger.Warn("completion failed", zap.String("kind", kind), zap.Error(err))
		s.observe(kind, "error")
		return unavailableText, false
	}
	s.observe(kind, "ok")
	return text, true
}

type Reply struct {
	Message   store.ChatMessage   `json:"message"`
	Text      string              `json:"text"`
	Proposals json.RawMessage     `json:"proposals,omitempty"`
	Skipped   []proposals.Skipped `json:"skipped,omitempty"`
}

// Ask records the question, asks the model with the board as context and
// records the answer. Proposals in the answer are validated once; invalid
// entries are reported in Skipped and dropped.
func (s *Service) Ask(ctx context.Context, boardID string, actor Actor, prompt, personaID string) (Reply, error) {
	if err := s.allow(ctx, "ask", actor); err != nil {
		return Reply{}, err
	}
	bc, err := LoadContext(ctx, s.store, boardID)
	if err != nil {
		return Reply{}, err
	}
	history, err := s.store.ListChatMessages(ctx, boardID, s.opts.HistoryLimit)
	if err != nil {
		return Reply{}, err
	}

	question, err := s.store.CreateChatMessage(ctx, store.ChatMessage{
		BoardID:   boardID,
		Role:      "user",
		Content:   prompt,
		CreatedBy: actor.ID,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		return Reply{}, err
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})
	system := askSystemPrompt + "\n\n" + Describe(bc, personaID)

	text, ok := s.complete(ctx, "ask", system, messages)
	reply := Reply{Text: text}
	if ok {
		if raw, found := proposals.Extract(text); found {
			list, skipped := proposals.Decode(raw)
			if len(list) > 0 {
				encoded, err := proposals.Encode(list)
				if err != nil {
					return Reply{}, err
				}
				reply.Proposals = encoded
			}
			if len(skipped) > 0 {
				reply.Skipped = skipped
			}
			if prose := proposals.StripFenced(text); prose != "" {
				reply.Text = prose
			}
		}
	}

	answeredAt := s.now().UTC().Truncate(time.Millisecond)
	if !answeredAt.After(question.CreatedAt) {
		answeredAt = question.CreatedAt.Add(time.Millisecond)
	}
	reply.Message, err = s.store.CreateChatMessage(ctx, store.ChatMessage{
		BoardID:   boardID,
		Role:      "assistant",
		Content:   reply.Text,
		Proposals: reply.Proposals,
		CreatedBy: AuthorID,
		CreatedAt: answeredAt,
	})
	if err != nil {
		return Reply{}, err
	}
	return reply, nil
}

type Analysis struct {
	Report *store.Report `json:"report,omitempty"`
	Text   string        `json:"text"`
}

type analysisPayload struct {
	Title    string          `json:"title"`
	Summary  string          `json:"summary"`
	Findings []store.Finding `json:"findings"`
}

// Analyze asks for a gap analysis and stores it as a report. When the model
// fails or its reply carries no findings block, no report is stored and the
// reply text is returned instead.
func (s *Service) Analyze(ctx context.Context, boardID string, actor Actor, personaID string) (Analysis, error) {
	if err := s.allow(ctx, "analyze", actor); err != nil {
		return Analysis{}, err
	}
	bc, err := LoadContext(ctx, s.store, boardID)
	if err != nil {
		return Analysis{}, err
	}

	text, ok := s.complete(ctx, "analyze", analyzeSystemPrompt, []llm.Message{
		{Role: "user", Content: Describe(bc, personaID)},
	})
	if !ok {
		return Analysis{Text: text}, nil
	}
	block, found := proposals.FencedJSON(text)
	if !found {
		return Analysis{Text: text}, nil
	}
	var payload analysisPayload
	if err := json.Unmarshal(block, &payload); err != nil {
		s.logger.Warn("analysis reply was not valid json", zap.String("board_id", boardID), zap.Error(err))
		return Analysis{Text: text}, nil
	}

	findings := make([]store.Finding, 0, len(payload.Findings))
	for _, finding := range payload.Findings {
		if strings.TrimSpace(finding.Description) == "" {
			continue
		}
		known := make([]string, 0, len(finding.AffectedNodeIDs))
		for _, nodeID := range finding.AffectedNodeIDs {
			if bc.hasNode(nodeID) {
				known = append(known, nodeID)
			}
		}
		finding.AffectedNodeIDs = known
		findings = append(findings, finding)
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = "Journey analysis: " + bc.Board.Name
	}
	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		summary = proposals.StripFenced(text)
	}
	report, err := s.store.CreateReport(ctx, store.Report{
		BoardID:   boardID,
		Title:     title,
		Summary:   summary,
		PersonaID: personaID,
		Findings:  findings,
		CreatedBy: actor.ID,
	})
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Report: &report, Text: summary}, nil
}

type Annotations struct {
	Comments []store.Comment `json:"comments"`
	Text     string          `json:"text,omitempty"`
}

// Annotate asks for review comments and attaches them to the nodes they name.
// Comments for unknown nodes are dropped.
func (s *Service) Annotate(ctx context.Context, boardID string, actor Actor) (Annotations, error) {
	if err := s.allow(ctx, "annotate", actor); err != nil {
		return Annotations{}, err
	}
	bc, err := LoadContext(ctx, s.store, boardID)
	if err != nil {
		return Annotations{}, err
	}

	out := Annotations{Comments: make([]store.Comment, 0)}
	text, ok := s.complete(ctx, "annotate", annotateSystemPrompt, []llm.Message{
		{Role: "user", Content: Describe(bc, "")},
	})
	if !ok {
		out.Text = text
		return out, nil
	}
	block, found := proposals.FencedJSON(text)
	var notes []struct {
		NodeID  string `json:"nodeId"`
		Comment string `json:"comment"`
	}
	if !found || json.Unmarshal(block, &notes) != nil {
		out.Text = text
		return out, nil
	}

	for _, note := range notes {
		body := strings.TrimSpace(note.Comment)
		if body == "" || !bc.hasNode(note.NodeID) {
			continue
		}
		comment, err := s.store.CreateComment(ctx, store.Comment{
			BoardID:    boardID,
			NodeID:     note.NodeID,
			AuthorID:   AuthorID,
			AuthorName: AuthorName,
			Body:       body,
		})
		if err != nil {
			return Annotations{}, err
		}
		out.Comments = append(out.Comments, comment)
	}
	return out, nil
}

type Summary struct {
	Text   string `json:"text"`
	Stored bool   `json:"stored"`
}

// Summarize stores a short model-written summary on the board.
func (s *Service) Summarize(ctx context.Context, boardID string, actor Actor) (Summary, error) {
	if err := s.allow(ctx, "summarize", actor); err != nil {
		return Summary{}, err
	}
	bc, err := LoadContext(ctx, s.store, boardID)
	if err != nil {
		return Summary{}, err
	}
	text, ok := s.complete(ctx, "summarize", summarizeSystemPrompt, []llm.Message{
		{Role: "user", Content: Describe(bc, "")},
	})
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		return Summary{Text: text}, nil
	}
	if err := s.store.SetBoardSummary(ctx, boardID, text, s.now().UTC()); err != nil {
		return Summary{}, err
	}
	return Summary{Text: text, Stored: true}, nil
}
