package app

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/rbac"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/versioning"
)

type CreateBoardInput struct {
	Name         string                `json:"name" validate:"required,max=200"`
	Description  string                `json:"description" validate:"max=5000"`
	RelatedTools []store.ToolReference `json:"relatedTools" validate:"dive"`
}

type UpdateBoardInput struct {
	Name         *string               `json:"name" validate:"omitempty,min=1,max=200"`
	Description  *string               `json:"description" validate:"omitempty,max=5000"`
	Archived     *bool                 `json:"archived"`
	VersionNote  *string               `json:"versionNote" validate:"omitempty,max=2000"`
	RelatedTools []store.ToolReference `json:"relatedTools" validate:"omitempty,dive"`
}

type CloneBoardInput struct {
	VersionNote string `json:"versionNote" validate:"max=2000"`
}

type ApplyProposalsInput struct {
	Proposals   []json.RawMessage `json:"proposals" validate:"required,min=1,max=100"`
	VersionNote string            `json:"versionNote" validate:"max=2000"`
}

// ListBoards returns the actor's boards. Admins see every board.
func (s *Service) ListBoards(ctx context.Context, sess Session, includeArchived bool) ([]store.Board, error) {
	ownerID := sess.UserID
	if rbac.Normalize(sess.Role) == rbac.RoleAdmin {
		ownerID = ""
	}
	return s.store.ListBoards(ctx, ownerID, includeArchived)
}

func (s *Service) CreateBoard(ctx context.Context, sess Session, input CreateBoardInput) (store.Board, error) {
	if !s.Can(sess.Role, rbac.ActionWrite) {
		return store.Board{}, errForbidden
	}
	board, err := s.store.CreateBoard(ctx, store.Board{
		Name:         strings.TrimSpace(input.Name),
		Description:  input.Description,
		OwnerID:      sess.UserID,
		RelatedTools: input.RelatedTools,
	})
	if err != nil {
		return store.Board{}, err
	}
	s.search.IndexBoard(board, nil)
	return board, nil
}

type BoardDetail struct {
	Board        store.Board         `json:"board"`
	Nodes        []store.Node        `json:"nodes"`
	Edges        []store.Edge        `json:"edges"`
	Personas     []store.Persona     `json:"personas"`
	PersonaNodes []store.PersonaNode `json:"personaNodes"`
}

// GetBoard returns a board with its graph and personas, enough to draw it.
func (s *Service) GetBoard(ctx context.Context, sess Session, boardID string) (BoardDetail, error) {
	board, err := s.board(ctx, sess, boardID, rbac.ActionRead)
	if err != nil {
		return BoardDetail{}, err
	}
	detail := BoardDetail{Board: board}
	if detail.Nodes, err = s.store.ListNodes(ctx, boardID); err != nil {
		return BoardDetail{}, err
	}
	if detail.Edges, err = s.store.ListEdges(ctx, boardID); err != nil {
		return BoardDetail{}, err
	}
	if detail.Personas, err = s.store.ListPersonas(ctx, boardID); err != nil {
		return BoardDetail{}, err
	}
	if detail.PersonaNodes, err = s.store.ListPersonaNodes(ctx, boardID); err != nil {
		return BoardDetail{}, err
	}
	return detail, nil
}

func (s *Service) UpdateBoard(ctx context.Context, sess Session, boardID string, input UpdateBoardInput) (store.Board, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.Board{}, err
	}
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return store.Board{}, validationError("name must not be blank", nil)
		}
		input.Name = &trimmed
	}
	board, err := s.store.UpdateBoard(ctx, boardID, store.BoardPatch{
		Name:         input.Name,
		Description:  input.Description,
		Archived:     input.Archived,
		VersionNote:  input.VersionNote,
		RelatedTools: input.RelatedTools,
	})
	if err != nil {
		return store.Board{}, err
	}
	s.search.IndexBoard(board, nil)
	return board, nil
}

// DeleteBoard removes the board and everything scoped to it, then drops its
// search documents and any stored files no other record uses.
func (s *Service) DeleteBoard(ctx context.Context, sess Session, boardID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	nodes, err := s.store.ListNodes(ctx, boardID)
	if err != nil {
		return err
	}
	comments, err := s.store.ListComments(ctx, boardID, "")
	if err != nil {
		return err
	}
	shots, err := s.store.ListScreenshots(ctx, boardID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteBoard(ctx, boardID); err != nil {
		return err
	}

	nodeIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		nodeIDs = append(nodeIDs, n.NodeID)
	}
	commentIDs := make([]string, 0, len(comments))
	for _, c := range comments {
		commentIDs = append(commentIDs, c.ID)
	}
	s.search.DeleteBoard(boardID, nodeIDs, commentIDs)
	for _, shot := range shots {
		s.releaseObject(ctx, shot.StorageKey)
	}
	return nil
}

func (s *Service) CloneBoard(ctx context.Context, sess Session, boardID string, input CloneBoardInput) (store.Board, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.Board{}, err
	}
	cloned, err := s.versions.CloneBoard(ctx, boardID, strings.TrimSpace(input.VersionNote))
	if err != nil {
		return store.Board{}, err
	}
	s.metrics.BoardVersions.WithLabelValues("clone").Inc()
	s.indexBoardGraph(ctx, cloned)
	return cloned, nil
}

// ApplyProposals materializes a proposal batch as a new version of boardID.
func (s *Service) ApplyProposals(ctx context.Context, sess Session, boardID string, input ApplyProposalsInput) (versioning.ApplyResult, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return versioning.ApplyResult{}, err
	}
	result, err := s.versions.ApplyProposals(ctx, boardID, input.Proposals, strings.TrimSpace(input.VersionNote))
	if err != nil {
		return versioning.ApplyResult{}, err
	}
	s.metrics.BoardVersions.WithLabelValues("proposals").Inc()
	s.metrics.ProposalsApplied.Add(float64(result.Applied))
	s.metrics.ProposalsSkipped.Add(float64(len(result.Skipped)))
	s.indexBoardGraph(ctx, result.Board)
	return result, nil
}

func (s *Service) BoardVersions(ctx context.Context, sess Session, boardID string) ([]store.Board, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.versions.History(ctx, boardID)
}

func (s *Service) CompareBoards(ctx context.Context, sess Session, fromID, toID string) (versioning.Diff, error) {
	if strings.TrimSpace(toID) == "" {
		return versioning.Diff{}, validationError("to is required", nil)
	}
	if _, err := s.board(ctx, sess, fromID, rbac.ActionRead); err != nil {
		return versioning.Diff{}, err
	}
	if _, err := s.board(ctx, sess, toID, rbac.ActionRead); err != nil {
		return versioning.Diff{}, err
	}
	return s.versions.Compare(ctx, fromID, toID)
}

func (s *Service) indexBoardGraph(ctx context.Context, board store.Board) {
	nodes, err := s.store.ListNodes(ctx, board.ID)
	if err != nil {
		s.logger.Warn("load nodes for indexing failed", zap.String("board_id", board.ID), zap.Error(err))
	}
	s.search.IndexBoard(board, nodes)
}
