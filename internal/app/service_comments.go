package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/rbac"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

type CreateCommentInput struct {
	NodeID   string `json:"nodeId"`
	ParentID string `json:"parentId"`
	Body     string `json:"body" validate:"required,max=10000"`
}

type UpdateCommentInput struct {
	Body string `json:"body" validate:"required,max=10000"`
}

type ResolveCommentInput struct {
	Resolved *bool `json:"resolved"`
}

func (s *Service) ListComments(ctx context.Context, sess Session, boardID, nodeID string) ([]store.Comment, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, boardID, nodeID)
}

// CreateComment attaches a comment to the board, or to one of its nodes when
// NodeID is set. Replies inherit the parent's node.
func (s *Service) CreateComment(ctx context.Context, sess Session, boardID string, input CreateCommentInput) (store.Comment, error) {
	board, err := s.board(ctx, sess, boardID, rbac.ActionComment)
	if err != nil {
		return store.Comment{}, err
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return store.Comment{}, validationError("body must not be blank", nil)
	}
	nodeID := strings.TrimSpace(input.NodeID)
	if input.ParentID != "" {
		parent, err := s.comment(ctx, boardID, input.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || errors.Is(err, errNotFound) {
				return store.Comment{}, validationError("parentId does not name a comment on this board", nil)
			}
			return store.Comment{}, err
		}
		nodeID = parent.NodeID
	}
	if nodeID != "" {
		if _, err := s.store.GetNode(ctx, boardID, nodeID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Comment{}, validationError("nodeId does not name a node on this board", nil)
			}
			return store.Comment{}, err
		}
	}
	comment, err := s.store.CreateComment(ctx, store.Comment{
		BoardID:    boardID,
		NodeID:     nodeID,
		ParentID:   input.ParentID,
		AuthorID:   sess.UserID,
		AuthorName: sess.UserName,
		Body:       body,
	})
	if err != nil {
		return store.Comment{}, err
	}
	s.search.IndexComment(board, comment)
	return comment, nil
}

func (s *Service) comment(ctx context.Context, boardID, commentID string) (store.Comment, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return store.Comment{}, err
	}
	if comment.BoardID != boardID {
		return store.Comment{}, errNotFound
	}
	return comment, nil
}

// canModerate reports whether sess may edit or delete something authored by
// authorID on board.
func canModerate(sess Session, board store.Board, authorID string) bool {
	if authorID != "" && authorID == sess.UserID {
		return true
	}
	return rbac.CanOnBoard(rbac.Normalize(sess.Role), rbac.ActionWrite, sess.UserID, board.OwnerID)
}

// UpdateComment edits the body. Only the author may do this.
func (s *Service) UpdateComment(ctx context.Context, sess Session, boardID, commentID string, input UpdateCommentInput) (store.Comment, error) {
	board, err := s.board(ctx, sess, boardID, rbac.ActionComment)
	if err != nil {
		return store.Comment{}, err
	}
	existing, err := s.comment(ctx, boardID, commentID)
	if err != nil {
		return store.Comment{}, err
	}
	if existing.AuthorID != sess.UserID {
		return store.Comment{}, errForbidden
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return store.Comment{}, validationError("body must not be blank", nil)
	}
	updated, err := s.store.UpdateCommentBody(ctx, commentID, body)
	if err != nil {
		return store.Comment{}, err
	}
	s.search.IndexComment(board, updated)
	return updated, nil
}

func (s *Service) ResolveComment(ctx context.Context, sess Session, boardID, commentID string, input ResolveCommentInput) (store.Comment, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionComment); err != nil {
		return store.Comment{}, err
	}
	if _, err := s.comment(ctx, boardID, commentID); err != nil {
		return store.Comment{}, err
	}
	resolved := true
	if input.Resolved != nil {
		resolved = *input.Resolved
	}
	return s.store.SetCommentResolved(ctx, commentID, resolved)
}

// DeleteComment removes a comment and its replies. Authors may delete their
// own comments; board editors may delete any.
func (s *Service) DeleteComment(ctx context.Context, sess Session, boardID, commentID string) error {
	board, err := s.board(ctx, sess, boardID, rbac.ActionComment)
	if err != nil {
		return err
	}
	existing, err := s.comment(ctx, boardID, commentID)
	if err != nil {
		return err
	}
	if !canModerate(sess, board, existing.AuthorID) {
		return errForbidden
	}
	replies, err := s.replyIDs(ctx, boardID, existing)
	if err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.search.DeleteComment(boardID, commentID)
	for _, id := range replies {
		s.search.DeleteComment(boardID, id)
	}
	return nil
}

func (s *Service) replyIDs(ctx context.Context, boardID string, parent store.Comment) ([]string, error) {
	siblings, err := s.store.ListComments(ctx, boardID, parent.NodeID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range siblings {
		if c.ParentID == parent.ID {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
