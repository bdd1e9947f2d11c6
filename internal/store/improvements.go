package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
)

const improvementColumns = `id, board_id, node_id, number, title, description, problem, solution, expected_impact,
	priority, status, assignee, connected_node_ids, status_history, created_by, created_at, updated_at`

func scanImprovement(row rowScanner) (Improvement, error) {
	var (
		item                 Improvement
		connected, history   string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&item.ID, &item.BoardID, &item.NodeID, &item.Number, &item.Title, &item.Description, &item.Problem,
		&item.Solution, &item.ExpectedImpact, &item.Priority, &item.Status, &item.Assignee,
		&connected, &history, &item.CreatedBy, &createdAt, &updatedAt,
	); err != nil {
		return Improvement{}, err
	}
	item.ConnectedNodeIDs = make([]string, 0)
	if connected != "" {
		if err := json.Unmarshal([]byte(connected), &item.ConnectedNodeIDs); err != nil {
			return Improvement{}, fmt.Errorf("decode connected nodes: %w", err)
		}
	}
	item.StatusHistory = make([]StatusChange, 0)
	if history != "" {
		if err := json.Unmarshal([]byte(history), &item.StatusHistory); err != nil {
			return Improvement{}, fmt.Errorf("decode status history: %w", err)
		}
	}
	item.CreatedAt = fromMillis(createdAt)
	item.UpdatedAt = fromMillis(updatedAt)
	return item, nil
}

// NextImprovementNumber returns the next per-board sequence number, starting at 1.
func (s *Store) NextImprovementNumber(ctx context.Context, boardID string) (int, error) {
	var current sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MAX(number) FROM improvements WHERE board_id=?`, boardID).Scan(&current); err != nil {
		return 0, fmt.Errorf("read improvement number: %w", err)
	}
	return int(current.Int64) + 1, nil
}

// CreateImprovement inserts an improvement. When Number is zero the next
// board sequence number is assigned inside the same transaction.
func (s *Store) CreateImprovement(ctx context.Context, item Improvement) (Improvement, error) {
	err := s.WithTx(ctx, func(tx *Store) error {
		if item.ID == "" {
			item.ID = util.NewID("imp")
		}
		if item.Number == 0 {
			next, err := tx.NextImprovementNumber(ctx, item.BoardID)
			if err != nil {
				return err
			}
			item.Number = next
		}
		if item.Status == "" {
			item.Status = ImprovementOpen
		}
		if item.Priority == "" {
			item.Priority = "medium"
		}
		if item.ConnectedNodeIDs == nil {
			item.ConnectedNodeIDs = make([]string, 0)
		}
		if item.StatusHistory == nil {
			item.StatusHistory = make([]StatusChange, 0)
		}
		now := nowUTC()
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.CreatedAt
		}
		connected, err := marshalJSON(item.ConnectedNodeIDs)
		if err != nil {
			return fmt.Errorf("encode connected nodes: %w", err)
		}
		history, err := marshalJSON(item.StatusHistory)
		if err != nil {
			return fmt.Errorf("encode status history: %w", err)
		}
		_, err = tx.exec(ctx, `
			INSERT INTO improvements (`+improvementColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, item.ID, item.BoardID, item.NodeID, item.Number, item.Title, item.Description, item.Problem, item.Solution,
			item.ExpectedImpact, item.Priority, item.Status, item.Assignee, connected, history, item.CreatedBy,
			toMillis(item.CreatedAt), toMillis(item.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert improvement: %w", err)
		}
		return nil
	})
	if err != nil {
		return Improvement{}, err
	}
	return item, nil
}

func (s *Store) GetImprovement(ctx context.Context, id string) (Improvement, error) {
	return scanImprovement(s.queryRow(ctx, `SELECT `+improvementColumns+` FROM improvements WHERE id=?`, id))
}

func (s *Store) ListImprovements(ctx context.Context, boardID string) ([]Improvement, error) {
	rows, err := s.query(ctx, `SELECT `+improvementColumns+` FROM improvements WHERE board_id=? ORDER BY number`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list improvements: %w", err)
	}
	defer rows.Close()

	items := make([]Improvement, 0)
	for rows.Next() {
		item, err := scanImprovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan improvement: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type ImprovementPatch struct {
	NodeID           *string
	Title            *string
	Description      *string
	Problem          *string
	Solution         *string
	ExpectedImpact   *string
	Priority         *string
	Assignee         *string
	ConnectedNodeIDs []string
}

func (s *Store) UpdateImprovement(ctx context.Context, id string, patch ImprovementPatch) (Improvement, error) {
	item, err := s.GetImprovement(ctx, id)
	if err != nil {
		return Improvement{}, err
	}
	if patch.NodeID != nil {
		item.NodeID = *patch.NodeID
	}
	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Problem != nil {
		item.Problem = *patch.Problem
	}
	if patch.Solution != nil {
		item.Solution = *patch.Solution
	}
	if patch.ExpectedImpact != nil {
		item.ExpectedImpact = *patch.ExpectedImpact
	}
	if patch.Priority != nil {
		item.Priority = *patch.Priority
	}
	if patch.Assignee != nil {
		item.Assignee = *patch.Assignee
	}
	if patch.ConnectedNodeIDs != nil {
		item.ConnectedNodeIDs = patch.ConnectedNodeIDs
	}
	connected, err := marshalJSON(item.ConnectedNodeIDs)
	if err != nil {
		return Improvement{}, fmt.Errorf("encode connected nodes: %w", err)
	}
	item.UpdatedAt = nowUTC()
	err = s.execOne(ctx, `
		UPDATE improvements SET node_id=?, title=?, description=?, problem=?, solution=?, expected_impact=?,
			priority=?, assignee=?, connected_node_ids=?, updated_at=?
		WHERE id=?
	`, item.NodeID, item.Title, item.Description, item.Problem, item.Solution, item.ExpectedImpact,
		item.Priority, item.Assignee, connected, toMillis(item.UpdatedAt), id)
	if err != nil {
		return Improvement{}, fmt.Errorf("update improvement: %w", err)
	}
	return item, nil
}

// SetImprovementStatus moves an improvement to status and appends the change
// to its history. Setting the current status again still records an entry.
func (s *Store) SetImprovementStatus(ctx context.Context, id, status, changedBy, note string) (Improvement, error) {
	var item Improvement
	err := s.WithTx(ctx, func(tx *Store) error {
		current, err := tx.GetImprovement(ctx, id)
		if err != nil {
			return err
		}
		now := nowUTC()
		current.StatusHistory = append(current.StatusHistory, StatusChange{
			From:      current.Status,
			To:        status,
			ChangedBy: changedBy,
			Note:      note,
			ChangedAt: now,
		})
		current.Status = status
		current.UpdatedAt = now
		history, err := marshalJSON(current.StatusHistory)
		if err != nil {
			return fmt.Errorf("encode status history: %w", err)
		}
		if err := tx.execOne(ctx, `UPDATE improvements SET status=?, status_history=?, updated_at=? WHERE id=?`,
			current.Status, history, toMillis(now), id); err != nil {
			return fmt.Errorf("update improvement status: %w", err)
		}
		item = current
		return nil
	})
	if err != nil {
		return Improvement{}, err
	}
	return item, nil
}

// DeleteImprovement removes an improvement with its todos and comments.
func (s *Store) DeleteImprovement(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.execOne(ctx, `DELETE FROM improvements WHERE id=?`, id); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM improvement_todos WHERE improvement_id=?`, id); err != nil {
			return fmt.Errorf("delete improvement todos: %w", err)
		}
		if _, err := tx.exec(ctx, `DELETE FROM improvement_comments WHERE improvement_id=?`, id); err != nil {
			return fmt.Errorf("delete improvement comments: %w", err)
		}
		return nil
	})
}

const todoColumns = `id, improvement_id, board_id, text, done, sort_order, phase, created_at`

func scanTodo(row rowScanner) (ImprovementTodo, error) {
	var (
		todo      ImprovementTodo
		createdAt int64
	)
	if err := row.Scan(&todo.ID, &todo.ImprovementID, &todo.BoardID, &todo.Text, &todo.Done, &todo.SortOrder, &todo.Phase, &createdAt); err != nil {
		return ImprovementTodo{}, err
	}
	todo.CreatedAt = fromMillis(createdAt)
	return todo, nil
}

func (s *Store) CreateTodo(ctx context.Context, todo ImprovementTodo) (ImprovementTodo, error) {
	if todo.ID == "" {
		todo.ID = util.NewID("tdo")
	}
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = nowUTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO improvement_todos (`+todoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, todo.ID, todo.ImprovementID, todo.BoardID, todo.Text, todo.Done, todo.SortOrder, todo.Phase, toMillis(todo.CreatedAt))
	if err != nil {
		return ImprovementTodo{}, fmt.Errorf("insert todo: %w", err)
	}
	return todo, nil
}

func (s *Store) GetTodo(ctx context.Context, id string) (ImprovementTodo, error) {
	return scanTodo(s.queryRow(ctx, `SELECT `+todoColumns+` FROM improvement_todos WHERE id=?`, id))
}

func (s *Store) ListTodos(ctx context.Context, improvementID string) ([]ImprovementTodo, error) {
	return s.listTodos(ctx, `SELECT `+todoColumns+` FROM improvement_todos WHERE improvement_id=? ORDER BY sort_order, created_at`, improvementID)
}

func (s *Store) ListBoardTodos(ctx context.Context, boardID string) ([]ImprovementTodo, error) {
	return s.listTodos(ctx, `SELECT `+todoColumns+` FROM improvement_todos WHERE board_id=? ORDER BY sort_order, created_at`, boardID)
}

func (s *Store) listTodos(ctx context.Context, query string, args ...any) ([]ImprovementTodo, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	items := make([]ImprovementTodo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		items = append(items, todo)
	}
	return items, rows.Err()
}

type TodoPatch struct {
	Text      *string
	Done      *bool
	SortOrder *int
	Phase     *string
}

func (s *Store) UpdateTodo(ctx context.Context, id string, patch TodoPatch) (ImprovementTodo, error) {
	todo, err := s.GetTodo(ctx, id)
	if err != nil {
		return ImprovementTodo{}, err
	}
	if patch.Text != nil {
		todo.Text = *patch.Text
	}
	if patch.Done != nil {
		todo.Done = *patch.Done
	}
	if patch.SortOrder != nil {
		todo.SortOrder = *patch.SortOrder
	}
	if patch.Phase != nil {
		todo.Phase = *patch.Phase
	}
	err = s.execOne(ctx, `UPDATE improvement_todos SET text=?, done=?, sort_order=?, phase=? WHERE id=?`,
		todo.Text, todo.Done, todo.SortOrder, todo.Phase, id)
	if err != nil {
		return ImprovementTodo{}, fmt.Errorf("update todo: %w", err)
	}
	return todo, nil
}

func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM improvement_todos WHERE id=?`, id)
}

const improvementCommentColumns = `id, improvement_id, board_id, parent_id, author_id, author_name, body, created_at`

func scanImprovementComment(row rowScanner) (ImprovementComment, error) {
	var (
		comment   ImprovementComment
		parentID  sql.NullString
		createdAt int64
	)
	if err := row.Scan(&comment.ID, &comment.ImprovementID, &comment.BoardID, &parentID, &comment.AuthorID, &comment.AuthorName, &comment.Body, &createdAt); err != nil {
		return ImprovementComment{}, err
	}
	comment.ParentID = parentID.String
	comment.CreatedAt = fromMillis(createdAt)
	return comment, nil
}

func (s *Store) CreateImprovementComment(ctx context.Context, comment ImprovementComment) (ImprovementComment, error) {
	if comment.ID == "" {
		comment.ID = util.NewID("icm")
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = nowUTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO improvement_comments (`+improvementCommentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, comment.ID, comment.ImprovementID, comment.BoardID, nullString(comment.ParentID), comment.AuthorID, comment.AuthorName,
		comment.Body, toMillis(comment.CreatedAt))
	if err != nil {
		return ImprovementComment{}, fmt.Errorf("insert improvement comment: %w", err)
	}
	return comment, nil
}

func (s *Store) GetImprovementComment(ctx context.Context, id string) (ImprovementComment, error) {
	return scanImprovementComment(s.queryRow(ctx, `SELECT `+improvementCommentColumns+` FROM improvement_comments WHERE id=?`, id))
}

func (s *Store) ListImprovementComments(ctx context.Context, improvementID string) ([]ImprovementComment, error) {
	rows, err := s.query(ctx, `SELECT `+improvementCommentColumns+` FROM improvement_comments WHERE improvement_id=? ORDER BY created_at, id`, improvementID)
	if err != nil {
		return nil, fmt.Errorf("list improvement comments: %w", err)
	}
	defer rows.Close()

	items := make([]ImprovementComment, 0)
	for rows.Next() {
		comment, err := scanImprovementComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan improvement comment: %w", err)
		}
		items = append(items, comment)
	}
	return items, rows.Err()
}

// DeleteImprovementComment removes a comment and its direct replies.
func (s *Store) DeleteImprovementComment(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.execOne(ctx, `DELETE FROM improvement_comments WHERE id=?`, id); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM improvement_comments WHERE parent_id=?`, id); err != nil {
			return fmt.Errorf("delete improvement replies: %w", err)
		}
		return nil
	})
}
