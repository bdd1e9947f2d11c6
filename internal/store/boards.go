package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
)

const boardColumns = `id, name, description, owner_id, version, parent_board_id, root_board_id, version_note,
	archived, ai_summary, ai_summary_at, related_tools, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBoard(row rowScanner) (Board, error) {
	var (
		board                                    Board
		version, parentID, rootID, note, summary sql.NullString
		summaryAt                                sql.NullInt64
		tools                                    string
		createdAt, updatedAt                     int64
	)
	if err := row.Scan(
		&board.ID, &board.Name, &board.Description, &board.OwnerID,
		&version, &parentID, &rootID, &note,
		&board.Archived, &summary, &summaryAt, &tools, &createdAt, &updatedAt,
	); err != nil {
		return Board{}, err
	}
	board.Version = version.String
	board.ParentBoardID = parentID.String
	board.RootBoardID = rootID.String
	board.VersionNote = note.String
	board.AISummary = summary.String
	if summaryAt.Valid {
		at := fromMillis(summaryAt.Int64)
		board.AISummaryAt = &at
	}
	board.RelatedTools = make([]ToolReference, 0)
	if tools != "" {
		if err := json.Unmarshal([]byte(tools), &board.RelatedTools); err != nil {
			return Board{}, fmt.Errorf("decode related tools: %w", err)
		}
	}
	board.CreatedAt = fromMillis(createdAt)
	board.UpdatedAt = fromMillis(updatedAt)
	return board, nil
}

// CreateBoard inserts the board as given. Lineage fields are stored when set,
// which is how the clone path creates a new version.
func (s *Store) CreateBoard(ctx context.Context, board Board) (Board, error) {
	if board.ID == "" {
		board.ID = util.NewID("brd")
	}
	now := nowUTC()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
	}
	board.UpdatedAt = board.CreatedAt
	if board.RelatedTools == nil {
		board.RelatedTools = make([]ToolReference, 0)
	}
	tools, err := marshalJSON(board.RelatedTools)
	if err != nil {
		return Board{}, fmt.Errorf("encode related tools: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO boards (`+boardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		board.ID, board.Name, board.Description, board.OwnerID,
		nullString(board.Version), nullString(board.ParentBoardID), nullString(board.RootBoardID), nullString(board.VersionNote),
		board.Archived, nullString(board.AISummary), nullMillis(board.AISummaryAt), tools,
		toMillis(board.CreatedAt), toMillis(board.UpdatedAt),
	)
	if err != nil {
		return Board{}, fmt.Errorf("insert board: %w", err)
	}
	return board, nil
}

func (s *Store) GetBoard(ctx context.Context, id string) (Board, error) {
	return scanBoard(s.queryRow(ctx, `SELECT `+boardColumns+` FROM boards WHERE id=?`, id))
}

// ListBoards returns boards newest first. An empty ownerID lists every owner.
func (s *Store) ListBoards(ctx context.Context, ownerID string, includeArchived bool) ([]Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE 1=1`
	args := make([]any, 0, 2)
	if ownerID != "" {
		query += ` AND owner_id=?`
		args = append(args, ownerID)
	}
	if !includeArchived {
		query += ` AND archived=?`
		args = append(args, false)
	}
	query += ` ORDER BY updated_at DESC, id`
	return s.listBoards(ctx, query, args...)
}

// ListLineage returns the root board and every board that names it as root.
func (s *Store) ListLineage(ctx context.Context, rootID string) ([]Board, error) {
	return s.listBoards(ctx, `SELECT `+boardColumns+` FROM boards WHERE id=? OR root_board_id=? ORDER BY created_at, id`, rootID, rootID)
}

func (s *Store) listBoards(ctx context.Context, query string, args ...any) ([]Board, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		board, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, board)
	}
	return items, rows.Err()
}

type BoardPatch struct {
	Name         *string
	Description  *string
	Archived     *bool
	VersionNote  *string
	RelatedTools []ToolReference
}

func (s *Store) UpdateBoard(ctx context.Context, id string, patch BoardPatch) (Board, error) {
	board, err := s.GetBoard(ctx, id)
	if err != nil {
		return Board{}, err
	}
	if patch.Name != nil {
		board.Name = *patch.Name
	}
	if patch.Description != nil {
		board.Description = *patch.Description
	}
	if patch.Archived != nil {
		board.Archived = *patch.Archived
	}
	if patch.VersionNote != nil {
		board.VersionNote = *patch.VersionNote
	}
	if patch.RelatedTools != nil {
		board.RelatedTools = patch.RelatedTools
	}
	tools, err := marshalJSON(board.RelatedTools)
	if err != nil {
		return Board{}, fmt.Errorf("encode related tools: %w", err)
	}
	board.UpdatedAt = nowUTC()
	err = s.execOne(ctx, `
		UPDATE boards SET name=?, description=?, archived=?, version_note=?, related_tools=?, updated_at=?
		WHERE id=?
	`, board.Name, board.Description, board.Archived, nullString(board.VersionNote), tools, toMillis(board.UpdatedAt), id)
	if err != nil {
		return Board{}, fmt.Errorf("update board: %w", err)
	}
	return board, nil
}

func (s *Store) TouchBoard(ctx context.Context, id string) error {
	if err := s.execOne(ctx, `UPDATE boards SET updated_at=? WHERE id=?`, toMillis(nowUTC()), id); err != nil {
		return fmt.Errorf("touch board: %w", err)
	}
	return nil
}

// SetBoardLineage back-fills the lineage fields of a board that predates versioning.
func (s *Store) SetBoardLineage(ctx context.Context, id, rootID, version string) error {
	if err := s.execOne(ctx, `UPDATE boards SET root_board_id=?, version=? WHERE id=?`, rootID, version, id); err != nil {
		return fmt.Errorf("set board lineage: %w", err)
	}
	return nil
}

func (s *Store) SetBoardSummary(ctx context.Context, id, summary string, at time.Time) error {
	if err := s.execOne(ctx, `UPDATE boards SET ai_summary=?, ai_summary_at=? WHERE id=?`, summary, toMillis(at), id); err != nil {
		return fmt.Errorf("set board summary: %w", err)
	}
	return nil
}

var boardScopedTables = []string{
	"nodes",
	"edges",
	"persona_nodes",
	"personas",
	"comments",
	"screenshots",
	"board_screenshots",
	"improvement_comments",
	"improvement_todos",
	"improvements",
	"reports",
	"chat_messages",
}

// DeleteBoard removes the board and every record scoped to it.
func (s *Store) DeleteBoard(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.GetBoard(ctx, id); err != nil {
			return err
		}
		for _, table := range boardScopedTables {
			if _, err := tx.exec(ctx, `DELETE FROM `+table+` WHERE board_id=?`, id); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		if _, err := tx.exec(ctx, `DELETE FROM boards WHERE id=?`, id); err != nil {
			return fmt.Errorf("delete board: %w", err)
		}
		return nil
	})
}
