package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/notify"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/rbac"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

type CreateImprovementInput struct {
	NodeID           string   `json:"nodeId"`
	Title            string   `json:"title" validate:"required,max=300"`
	Description      string   `json:"description" validate:"max=10000"`
	Problem          string   `json:"problem" validate:"max=10000"`
	Solution         string   `json:"solution" validate:"max=10000"`
	ExpectedImpact   string   `json:"expectedImpact" validate:"max=10000"`
	Priority         string   `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Assignee         string   `json:"assignee" validate:"max=200"`
	ConnectedNodeIDs []string `json:"connectedNodeIds"`
}

type UpdateImprovementInput struct {
	NodeID           *string  `json:"nodeId"`
	Title            *string  `json:"title" validate:"omitempty,min=1,max=300"`
	Description      *string  `json:"description" validate:"omitempty,max=10000"`
	Problem          *string  `json:"problem" validate:"omitempty,max=10000"`
	Solution         *string  `json:"solution" validate:"omitempty,max=10000"`
	ExpectedImpact   *string  `json:"expectedImpact" validate:"omitempty,max=10000"`
	Priority         *string  `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Assignee         *string  `json:"assignee" validate:"omitempty,max=200"`
	ConnectedNodeIDs []string `json:"connectedNodeIds"`
}

type ImprovementStatusInput struct {
	Status string `json:"status" validate:"required,oneof=open in_progress closed"`
	Note   string `json:"note" validate:"max=2000"`
}

type TodoInput struct {
	Text      string `json:"text" validate:"required,max=2000"`
	SortOrder int    `json:"sortOrder"`
	Phase     string `json:"phase" validate:"max=100"`
}

type UpdateTodoInput struct {
	Text      *string `json:"text" validate:"omitempty,min=1,max=2000"`
	Done      *bool   `json:"done"`
	SortOrder *int    `json:"sortOrder"`
	Phase     *string `json:"phase" validate:"omitempty,max=100"`
}

type ImprovementCommentInput struct {
	ParentID string `json:"parentId"`
	Body     string `json:"body" validate:"required,max=10000"`
}

// ImprovementDetail is an improvement with its checklist and discussion.
type ImprovementDetail struct {
	store.Improvement
	Todos    []store.ImprovementTodo    `json:"todos"`
	Comments []store.ImprovementComment `json:"comments"`
}

func (s *Service) ListImprovements(ctx context.Context, sess Session, boardID string) ([]store.Improvement, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListImprovements(ctx, boardID)
}

// checkNodes reports the first reference that is not a node on boardID.
func (s *Service) checkNodes(ctx context.Context, boardID string, nodeIDs ...string) error {
	for _, nodeID := range nodeIDs {
		if nodeID == "" {
			continue
		}
		if _, err := s.store.GetNode(ctx, boardID, nodeID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return validationError("unknown node "+nodeID, map[string]string{"nodeId": nodeID})
			}
			return err
		}
	}
	return nil
}

func (s *Service) CreateImprovement(ctx context.Context, sess Session, boardID string, input CreateImprovementInput) (store.Improvement, error) {
	board, err := s.board(ctx, sess, boardID, rbac.ActionWrite)
	if err != nil {
		return store.Improvement{}, err
	}
	refs := append([]string{input.NodeID}, input.ConnectedNodeIDs...)
	if err := s.checkNodes(ctx, boardID, refs...); err != nil {
		return store.Improvement{}, err
	}
	item, err := s.store.CreateImprovement(ctx, store.Improvement{
		BoardID:          boardID,
		NodeID:           input.NodeID,
		Title:            strings.TrimSpace(input.Title),
		Description:      input.Description,
		Problem:          input.Problem,
		Solution:         input.Solution,
		ExpectedImpact:   input.ExpectedImpact,
		Priority:         input.Priority,
		Assignee:         input.Assignee,
		ConnectedNodeIDs: input.ConnectedNodeIDs,
		CreatedBy:        sess.UserName,
	})
	if err != nil {
		return store.Improvement{}, err
	}
	s.notifier.Notify(ctx, notify.Event{
		Kind:          notify.EventImprovementCreated,
		BoardID:       boardID,
		BoardName:     board.Name,
		ImprovementID: item.ID,
		Number:        item.Number,
		Title:         item.Title,
		Actor:         sess.UserName,
	})
	return item, nil
}

// improvement loads improvementID and checks it belongs to boardID.
func (s *Service) improvement(ctx context.Context, boardID, improvementID string) (store.Improvement, error) {
	item, err := s.store.GetImprovement(ctx, improvementID)
	if err != nil {
		return store.Improvement{}, err
	}
	if item.BoardID != boardID {
		return store.Improvement{}, errNotFound
	}
	return item, nil
}

func (s *Service) GetImprovement(ctx context.Context, sess Session, boardID, improvementID string) (ImprovementDetail, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return ImprovementDetail{}, err
	}
	item, err := s.improvement(ctx, boardID, improvementID)
	if err != nil {
		return ImprovementDetail{}, err
	}
	detail := ImprovementDetail{Improvement: item}
	if detail.Todos, err = s.store.ListTodos(ctx, improvementID); err != nil {
		return ImprovementDetail{}, err
	}
	if detail.Comments, err = s.store.ListImprovementComments(ctx, improvementID); err != nil {
		return ImprovementDetail{}, err
	}
	return detail, nil
}

func (s *Service) UpdateImprovement(ctx context.Context, sess Session, boardID, improvementID string, input UpdateImprovementInput) (store.Improvement, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.Improvement{}, err
	}
	if _, err := s.improvement(ctx, boardID, improvementID); err != nil {
		return store.Improvement{}, err
	}
	refs := append([]string(nil), input.ConnectedNodeIDs...)
	if input.NodeID != nil {
		refs = append(refs, *input.NodeID)
	}
	if err := s.checkNodes(ctx, boardID, refs...); err != nil {
		return store.Improvement{}, err
	}
	return s.store.UpdateImprovement(ctx, improvementID, store.ImprovementPatch{
		NodeID:           input.NodeID,
		Title:            input.Title,
		Description:      input.Description,
		Problem:          input.Problem,
		Solution:         input.Solution,
		ExpectedImpact:   input.ExpectedImpact,
		Priority:         input.Priority,
		Assignee:         input.Assignee,
		ConnectedNodeIDs: input.ConnectedNodeIDs,
	})
}

// SetImprovementStatus moves an improvement through its workflow, records
// the change in its history and announces it.
func (s *Service) SetImprovementStatus(ctx context.Context, sess Session, boardID, improvementID string, input ImprovementStatusInput) (store.Improvement, error) {
	board, err := s.board(ctx, sess, boardID, rbac.ActionWrite)
	if err != nil {
		return store.Improvement{}, err
	}
	before, err := s.improvement(ctx, boardID, improvementID)
	if err != nil {
		return store.Improvement{}, err
	}
	item, err := s.store.SetImprovementStatus(ctx, improvementID, input.Status, sess.UserName, strings.TrimSpace(input.Note))
	if err != nil {
		return store.Improvement{}, err
	}
	s.notifier.Notify(ctx, notify.Event{
		Kind:          notify.EventImprovementStatus,
		BoardID:       boardID,
		BoardName:     board.Name,
		ImprovementID: item.ID,
		Number:        item.Number,
		Title:         item.Title,
		From:          before.Status,
		To:            item.Status,
		Actor:         sess.UserName,
		Note:          strings.TrimSpace(input.Note),
	})
	return item, nil
}

func (s *Service) DeleteImprovement(ctx context.Context, sess Session, boardID, improvementID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	if _, err := s.improvement(ctx, boardID, improvementID); err != nil {
		return err
	}
	return s.store.DeleteImprovement(ctx, improvementID)
}

func (s *Service) ListTodos(ctx context.Context, sess Session, boardID, improvementID string) ([]store.ImprovementTodo, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.improvement(ctx, boardID, improvementID); err != nil {
		return nil, err
	}
	return s.store.ListTodos(ctx, improvementID)
}

func (s *Service) CreateTodo(ctx context.Context, sess Session, boardID, improvementID string, input TodoInput) (store.ImprovementTodo, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.ImprovementTodo{}, err
	}
	if _, err := s.improvement(ctx, boardID, improvementID); err != nil {
		return store.ImprovementTodo{}, err
	}
	return s.store.CreateTodo(ctx, store.ImprovementTodo{
		ImprovementID: improvementID,
		BoardID:       boardID,
		Text:          strings.TrimSpace(input.Text),
		SortOrder:     input.SortOrder,
		Phase:         input.Phase,
	})
}

func (s *Service) todo(ctx context.Context, improvementID, todoID string) (store.ImprovementTodo, error) {
	todo, err := s.store.GetTodo(ctx, todoID)
	if err != nil {
		return store.ImprovementTodo{}, err
	}
	if todo.ImprovementID != improvementID {
		return store.ImprovementTodo{}, errNotFound
	}
	return todo, nil
}

func (s *Service) UpdateTodo(ctx context.Context, sess Session, boardID, improvementID, todoID string, input UpdateTodoInput) (store.ImprovementTodo, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.ImprovementTodo{}, err
	}
	if _, err := s.improvement(ctx, boardID, improvementID); err != nil {
		return store.ImprovementTodo{}, err
	}
	if _, err := s.todo(ctx, improvementID, todoID); err != nil {
		return store.ImprovementTodo{}, err
	}
	return s.store.UpdateTodo(ctx, todoID, store.TodoPatch{
		Text:      input.Text,
		Done:      input.Done,
		SortOrder: input.SortOrder,
		Phase:     input.Phase,
	})
}

func (s *Service) DeleteTodo(ctx context.Context, sess Session, boardID, improvementID, todoID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	if _, err := s.improvement(ctx, boardID, improvementID); err != nil {
		return err
	}
	if _, err := s.todo(ctx, improvementID, todoID); err != nil {
		return err
	}
	return s.store.DeleteTodo(ctx, todoID)
}

func (s *Service) ListImprovementComments(ctx context.Context, sess Session, boardID, improvementID string) ([]store.ImprovementComment, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.improvement(ctx, boardID, improvementID); err != nil {
		return nil, err
	}
	return s.store.ListImprovementComments(ctx, improvementID)
}

func (s *Service) CreateImprovementComment(ctx context.Context, sess Session, boardID, improvementID string, input ImprovementCommentInput) (store.ImprovementComment, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionComment); err != nil {
		return store.ImprovementComment{}, err
	}
	if _, err := s.improvement(ctx, boardID, improvementID); err != nil {
		return store.ImprovementComment{}, err
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return store.ImprovementComment{}, validationError("body must not be blank", nil)
	}
	if input.ParentID != "" {
		parent, err := s.store.GetImprovementComment(ctx, input.ParentID)
		if err != nil || parent.ImprovementID != improvementID {
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return store.ImprovementComment{}, err
			}
			return store.ImprovementComment{}, validationError("parentId does not name a comment on this improvement", nil)
		}
	}
	return s.store.CreateImprovementComment(ctx, store.ImprovementComment{
		ImprovementID: improvementID,
		BoardID:       boardID,
		ParentID:      input.ParentID,
		AuthorID:      sess.UserID,
		AuthorName:    sess.UserName,
		Body:          body,
	})
}

func (s *Service) DeleteImprovementComment(ctx context.Context, sess Session, boardID, improvementID, commentID string) error {
	board, err := s.board(ctx, sess, boardID, rbac.ActionComment)
	if err != nil {
		return err
	}
	comment, err := s.store.GetImprovementComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.ImprovementID != improvementID || comment.BoardID != boardID {
		return errNotFound
	}
	if !canModerate(sess, board, comment.AuthorID) {
		return errForbidden
	}
	return s.store.DeleteImprovementComment(ctx, commentID)
}
