package app

import (
	"context"
	"errors"
	"strings"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/assistant"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/export"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/rbac"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/search"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

const (
	defaultChatLimit   = 100
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type AskInput struct {
	Prompt    string `json:"prompt" validate:"required,max=8000"`
	PersonaID string `json:"personaId"`
}

type AnalysisInput struct {
	PersonaID string `json:"personaId"`
}

// rateLimited counts assistant denials before passing the error on.
func (s *Service) rateLimited(err error) error {
	if errors.Is(err, assistant.ErrRateLimited) {
		s.metrics.RateLimited.WithLabelValues("llm").Inc()
	}
	return err
}

func (s *Service) checkPersona(ctx context.Context, boardID, personaID string) error {
	if personaID == "" {
		return nil
	}
	if _, err := s.persona(ctx, boardID, personaID); err != nil {
		return validationError("personaId does not name a persona on this board", nil)
	}
	return nil
}

func (s *Service) ListChat(ctx context.Context, sess Session, boardID string, limit int) ([]store.ChatMessage, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultChatLimit
	}
	return s.store.ListChatMessages(ctx, boardID, limit)
}

// Ask sends a question about the board to the assistant. Proposals in the
// answer are returned for review; nothing is applied here.
func (s *Service) Ask(ctx context.Context, sess Session, boardID string, input AskInput) (assistant.Reply, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionAnalyze); err != nil {
		return assistant.Reply{}, err
	}
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return assistant.Reply{}, validationError("prompt must not be blank", nil)
	}
	if err := s.checkPersona(ctx, boardID, input.PersonaID); err != nil {
		return assistant.Reply{}, err
	}
	reply, err := s.assistant.Ask(ctx, boardID, sess.actor(), prompt, input.PersonaID)
	return reply, s.rateLimited(err)
}

func (s *Service) ClearChat(ctx context.Context, sess Session, boardID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionAnalyze); err != nil {
		return err
	}
	return s.store.ClearChat(ctx, boardID)
}

func (s *Service) Analyze(ctx context.Context, sess Session, boardID string, input AnalysisInput) (assistant.Analysis, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionAnalyze); err != nil {
		return assistant.Analysis{}, err
	}
	if err := s.checkPersona(ctx, boardID, input.PersonaID); err != nil {
		return assistant.Analysis{}, err
	}
	result, err := s.assistant.Analyze(ctx, boardID, sess.actor(), input.PersonaID)
	return result, s.rateLimited(err)
}

// Annotate lets the assistant comment on nodes. New comments are indexed
// like any other.
func (s *Service) Annotate(ctx context.Context, sess Session, boardID string) (assistant.Annotations, error) {
	board, err := s.board(ctx, sess, boardID, rbac.ActionAnalyze)
	if err != nil {
		return assistant.Annotations{}, err
	}
	result, err := s.assistant.Annotate(ctx, boardID, sess.actor())
	if err != nil {
		return assistant.Annotations{}, s.rateLimited(err)
	}
	for _, comment := range result.Comments {
		s.search.IndexComment(board, comment)
	}
	return result, nil
}

func (s *Service) Summarize(ctx context.Context, sess Session, boardID string) (assistant.Summary, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionAnalyze); err != nil {
		return assistant.Summary{}, err
	}
	result, err := s.assistant.Summarize(ctx, boardID, sess.actor())
	return result, s.rateLimited(err)
}

func (s *Service) ListReports(ctx context.Context, sess Session, boardID string) ([]store.Report, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListReports(ctx, boardID)
}

func (s *Service) report(ctx context.Context, boardID, reportID string) (store.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return store.Report{}, err
	}
	if report.BoardID != boardID {
		return store.Report{}, errNotFound
	}
	return report, nil
}

func (s *Service) GetReport(ctx context.Context, sess Session, boardID, reportID string) (store.Report, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return store.Report{}, err
	}
	return s.report(ctx, boardID, reportID)
}

func (s *Service) DeleteReport(ctx context.Context, sess Session, boardID, reportID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	if _, err := s.report(ctx, boardID, reportID); err != nil {
		return err
	}
	return s.store.DeleteReport(ctx, reportID)
}

// ExportReport renders a report as HTML or PDF. Format defaults to PDF.
func (s *Service) ExportReport(ctx context.Context, sess Session, boardID, reportID, format string) (*export.Result, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	f := export.Format(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = export.FormatPDF
	}
	return s.exporter.Export(ctx, export.Request{BoardID: boardID, ReportID: reportID, Format: f})
}

// Search looks through the actor's own boards, nodes and comments.
func (s *Service) Search(ctx context.Context, sess Session, text, filterType string, limit int) (search.Response, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	switch search.ResultType(filterType) {
	case "", search.ResultBoard, search.ResultNode, search.ResultComment:
	default:
		return search.Response{}, validationError("type must be board, node or comment", nil)
	}
	return s.search.Search(ctx, search.Query{
		Text:       strings.TrimSpace(text),
		FilterType: search.ResultType(filterType),
		OwnerID:    sess.UserID,
		Limit:      limit,
	}), nil
}
