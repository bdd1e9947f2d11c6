package export

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

// DataStore is the read access export needs.
type DataStore interface {
	GetBoard(ctx context.Context, id string) (store.Board, error)
	GetReport(ctx context.Context, id string) (store.Report, error)
	ListNodes(ctx context.Context, boardID string) ([]store.Node, error)
}

// Service exports stored analysis reports.
type Service struct {
	store      DataStore
	chromePath string
	logger     *zap.Logger
	pdf        func(ctx context.Context, html, chromePath string) ([]byte, error)
}

// NewService creates an export service. An empty chromePath searches PATH.
func NewService(st DataStore, chromePath string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, chromePath: chromePath, logger: logger, pdf: PDF}
}

// Export renders a report in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Format != FormatPDF && req.Format != FormatHTML {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	report, err := s.store.GetReport(ctx, req.ReportID)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if report.BoardID != req.BoardID {
		return nil, ErrReportNotOnBoard
	}
	board, err := s.store.GetBoard(ctx, report.BoardID)
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	nodes, err := s.store.ListNodes(ctx, report.BoardID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	html, err := RenderHTML(report, board, nodes...)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	name := sanitizeFilename(report.Title)

	if req.Format == FormatHTML {
		return &Result{Data: []byte(html), Filename: name + ".html", MimeType: "text/html; charset=utf-8"}, nil
	}
	data, err := s.pdf(ctx, html, s.chromePath)
	if err != nil {
		s.logger.Warn("pdf export failed", zap.String("report_id", report.ID), zap.Error(err))
		return nil, err
	}
	return &Result{Data: data, Filename: name + ".pdf", MimeType: "application/pdf"}, nil
}
