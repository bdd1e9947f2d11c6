package search

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

// engine is the part of Meili the service drives.
type engine interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexBoards(boards []BoardRecord) error
	IndexNodes(nodes []NodeRecord) error
	IndexComments(comments []CommentRecord) error
	DeleteBoard(id string) error
	DeleteNode(boardID, nodeID string) error
	DeleteComment(id string) error
}

// Service is the facade that tries Meilisearch first and falls back to SQL.
type Service struct {
	meili    engine
	fallback Fallback
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Fallback, logger *zap.Logger) *Service {
	var e engine
	if meili != nil {
		e = meili
	}
	return newService(e, fallback, logger)
}

func newService(e engine, fallback Fallback, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: e, fallback: fallback, logger: logger}
}

func (s *Service) available() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to SQL search.
func (s *Service) Search(ctx context.Context, q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Response{Results: []Result{}, Query: q.Text}
	}
	if s.available() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to sql", zap.Error(err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	hits, err := s.fallback.SearchText(ctx, q.OwnerID, q.Text, q.Limit)
	if err != nil {
		s.logger.Warn("sql search failed", zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text}
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		r := fromHit(hit)
		if q.FilterType != "" && r.Type != q.FilterType {
			continue
		}
		results = append(results, r)
	}
	return Response{Results: results, Total: len(results), Query: q.Text}
}

// fromHit converts a SQL row. Node rows carry the raw node data as snippet.
func fromHit(hit store.SearchHit) Result {
	r := Result{Type: ResultType(hit.Kind), ID: hit.ID, BoardID: hit.BoardID, Title: hit.Title, Snippet: hit.Snippet}
	if r.Type == ResultNode {
		var data store.NodeData
		if err := json.Unmarshal([]byte(hit.Snippet), &data); err == nil {
			r.Title = firstNonBlank(data.Label, hit.Title)
			r.Snippet = data.Text
		}
	}
	return r
}

// IndexBoard indexes a board with its nodes (fire-and-forget).
func (s *Service) IndexBoard(board store.Board, nodes []store.Node) {
	records := make([]NodeRecord, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, NewNodeRecord(board, n))
	}
	s.background("index board", board.ID, func(e engine) error {
		if err := e.IndexBoards([]BoardRecord{NewBoardRecord(board)}); err != nil {
			return err
		}
		return e.IndexNodes(records)
	})
}

// IndexNode indexes a single node (fire-and-forget).
func (s *Service) IndexNode(board store.Board, node store.Node) {
	s.background("index node", board.ID, func(e engine) error {
		return e.IndexNodes([]NodeRecord{NewNodeRecord(board, node)})
	})
}

// IndexComment indexes a canvas comment (fire-and-forget).
func (s *Service) IndexComment(board store.Board, comment store.Comment) {
	s.background("index comment", board.ID, func(e engine) error {
		return e.IndexComments([]CommentRecord{NewCommentRecord(board, comment)})
	})
}

// DeleteBoard removes a board and the given nodes and comments (fire-and-forget).
func (s *Service) DeleteBoard(boardID string, nodeIDs, commentIDs []string) {
	s.background("delete board", boardID, func(e engine) error {
		for _, nodeID := range nodeIDs {
			if err := e.DeleteNode(boardID, nodeID); err != nil {
				return err
			}
		}
		for _, id := range commentIDs {
			if err := e.DeleteComment(id); err != nil {
				return err
			}
		}
		return e.DeleteBoard(boardID)
	})
}

func (s *Service) DeleteNode(boardID, nodeID string) {
	s.background("delete node", boardID, func(e engine) error {
		return e.DeleteNode(boardID, nodeID)
	})
}

func (s *Service) DeleteComment(boardID, commentID string) {
	s.background("delete comment", boardID, func(e engine) error {
		return e.DeleteComment(commentID)
	})
}

// Wait blocks until background index operations finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) background(op, boardID string, fn func(e engine) error) {
	if !s.available() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(s.meili); err != nil {
			s.logger.Warn("search "+op+" failed", zap.String("board_id", boardID), zap.Error(err))
		}
	}()
}

// Loader lists what ReindexAll pushes into Meilisearch.
type Loader interface {
	ListBoards(ctx context.Context, ownerID string, includeArchived bool) ([]store.Board, error)
	ListNodes(ctx context.Context, boardID string) ([]store.Node, error)
	ListComments(ctx context.Context, boardID, nodeID string) ([]store.Comment, error)
}

// ReindexAll pushes every board, node and comment into Meilisearch. Called at
// startup when Meilisearch is healthy.
func (s *Service) ReindexAll(ctx context.Context, loader Loader) error {
	if !s.available() {
		return nil
	}
	boards, err := loader.ListBoards(ctx, "", true)
	if err != nil {
		return err
	}
	var (
		boardRecords   = make([]BoardRecord, 0, len(boards))
		nodeRecords    []NodeRecord
		commentRecords []CommentRecord
	)
	for _, b := range boards {
		boardRecords = append(boardRecords, NewBoardRecord(b))
		nodes, err := loader.ListNodes(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			nodeRecords = append(nodeRecords, NewNodeRecord(b, n))
		}
		comments, err := loader.ListComments(ctx, b.ID, "")
		if err != nil {
			return err
		}
		for _, c := range comments {
			commentRecords = append(commentRecords, NewCommentRecord(b, c))
		}
	}
	if err := s.meili.IndexBoards(boardRecords); err != nil {
		return err
	}
	if err := s.meili.IndexNodes(nodeRecords); err != nil {
		return err
	}
	if err := s.meili.IndexComments(commentRecords); err != nil {
		return err
	}
	s.logger.Info("search reindexed",
		zap.Int("boards", len(boardRecords)),
		zap.Int("nodes", len(nodeRecords)),
		zap.Int("comments", len(commentRecords)),
	)
	return nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
