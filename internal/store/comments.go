package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
)

const commentColumns = `id, board_id, node_id, parent_id, author_id, author_name, body, resolved, created_at, updated_at`

func scanComment(row rowScanner) (Comment, error) {
	var (
		comment              Comment
		nodeID, parentID     sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&comment.ID, &comment.BoardID, &nodeID, &parentID, &comment.AuthorID, &comment.AuthorName, &comment.Body, &comment.Resolved, &createdAt, &updatedAt); err != nil {
		return Comment{}, err
	}
	comment.NodeID = nodeID.String
	comment.ParentID = parentID.String
	comment.CreatedAt = fromMillis(createdAt)
	comment.UpdatedAt = fromMillis(updatedAt)
	return comment, nil
}

func (s *Store) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	if comment.ID == "" {
		comment.ID = util.NewID("cmt")
	}
	now := nowUTC()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now
	}
	comment.UpdatedAt = comment.CreatedAt
	_, err := s.exec(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, comment.ID, comment.BoardID, nullString(comment.NodeID), nullString(comment.ParentID), comment.AuthorID, comment.AuthorName,
		comment.Body, comment.Resolved, toMillis(comment.CreatedAt), toMillis(comment.UpdatedAt))
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (Comment, error) {
	return scanComment(s.queryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=?`, id))
}

// ListComments returns a board's comments oldest first. A non-empty nodeID
// restricts the list to that node.
func (s *Store) ListComments(ctx context.Context, boardID, nodeID string) ([]Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE board_id=?`
	args := []any{boardID}
	if nodeID != "" {
		query += ` AND node_id=?`
		args = append(args, nodeID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, comment)
	}
	return items, rows.Err()
}

func (s *Store) UpdateCommentBody(ctx context.Context, id, body string) (Comment, error) {
	comment, err := s.GetComment(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	comment.Body = body
	comment.UpdatedAt = nowUTC()
	if err := s.execOne(ctx, `UPDATE comments SET body=?, updated_at=? WHERE id=?`, comment.Body, toMillis(comment.UpdatedAt), id); err != nil {
		return Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return comment, nil
}

func (s *Store) SetCommentResolved(ctx context.Context, id string, resolved bool) (Comment, error) {
	comment, err := s.GetComment(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	comment.Resolved = resolved
	comment.UpdatedAt = nowUTC()
	if err := s.execOne(ctx, `UPDATE comments SET resolved=?, updated_at=? WHERE id=?`, resolved, toMillis(comment.UpdatedAt), id); err != nil {
		return Comment{}, fmt.Errorf("resolve comment: %w", err)
	}
	return comment, nil
}

// DeleteComment removes a comment and its direct replies.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.execOne(ctx, `DELETE FROM comments WHERE id=?`, id); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM comments WHERE parent_id=?`, id); err != nil {
			return fmt.Errorf("delete replies: %w", err)
		}
		return nil
	})
}
