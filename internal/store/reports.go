package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
)

const reportColumns = `id, board_id, title, summary, persona_id, findings, created_by, created_at`

func scanReport(row rowScanner) (Report, error) {
	var (
		report    Report
		personaID sql.NullString
		findings  string
		createdAt int64
	)
	if err := row.Scan(&report.ID, &report.BoardID, &report.Title, &report.Summary, &personaID, &findings, &report.CreatedBy, &createdAt); err != nil {
		return Report{}, err
	}
	report.PersonaID = personaID.String
	report.Findings = make([]Finding, 0)
	if findings != "" {
		if err := json.Unmarshal([]byte(findings), &report.Findings); err != nil {
			return Report{}, fmt.Errorf("decode findings: %w", err)
		}
	}
	report.CreatedAt = fromMillis(createdAt)
	return report, nil
}

func (s *Store) CreateReport(ctx context.Context, report Report) (Report, error) {
	if report.ID == "" {
		report.ID = util.NewID("rpt")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = nowUTC()
	}
	if report.Findings == nil {
		report.Findings = make([]Finding, 0)
	}
	findings, err := marshalJSON(report.Findings)
	if err != nil {
		return Report{}, fmt.Errorf("encode findings: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.BoardID, report.Title, report.Summary, nullString(report.PersonaID), findings, report.CreatedBy, toMillis(report.CreatedAt))
	if err != nil {
		return Report{}, fmt.Errorf("insert report: %w", err)
	}
	return report, nil
}

func (s *Store) GetReport(ctx context.Context, id string) (Report, error) {
	return scanReport(s.queryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id))
}

func (s *Store) ListReports(ctx context.Context, boardID string) ([]Report, error) {
	rows, err := s.query(ctx, `SELECT `+reportColumns+` FROM reports WHERE board_id=? ORDER BY created_at DESC, id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	items := make([]Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		items = append(items, report)
	}
	return items, rows.Err()
}

func (s *Store) DeleteReport(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM reports WHERE id=?`, id)
}

const chatColumns = `id, board_id, role, content, proposals, created_by, created_at`

func scanChatMessage(row rowScanner) (ChatMessage, error) {
	var (
		message   ChatMessage
		proposals sql.NullString
		createdAt int64
	)
	if err := row.Scan(&message.ID, &message.BoardID, &message.Role, &message.Content, &proposals, &message.CreatedBy, &createdAt); err != nil {
		return ChatMessage{}, err
	}
	if proposals.Valid && proposals.String != "" {
		message.Proposals = json.RawMessage(proposals.String)
	}
	message.CreatedAt = fromMillis(createdAt)
	return message, nil
}

func (s *Store) CreateChatMessage(ctx context.Context, message ChatMessage) (ChatMessage, error) {
	if message.ID == "" {
		message.ID = util.NewID("msg")
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = nowUTC()
	}
	var proposals any
	if len(message.Proposals) > 0 {
		proposals = string(message.Proposals)
	}
	_, err := s.exec(ctx, `
		INSERT INTO chat_messages (`+chatColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, message.ID, message.BoardID, message.Role, message.Content, proposals, message.CreatedBy, toMillis(message.CreatedAt))
	if err != nil {
		return ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	return message, nil
}

// ListChatMessages returns the conversation oldest first, limited to the most
// recent limit messages when limit > 0.
func (s *Store) ListChatMessages(ctx context.Context, boardID string, limit int) ([]ChatMessage, error) {
	query := `SELECT ` + chatColumns + ` FROM chat_messages WHERE board_id=? ORDER BY created_at DESC, id DESC`
	args := []any{boardID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	items := make([]ChatMessage, 0)
	for rows.Next() {
		message, err := scanChatMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		items = append(items, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *Store) ClearChat(ctx context.Context, boardID string) error {
	if _, err := s.exec(ctx, `DELETE FROM chat_messages WHERE board_id=?`, boardID); err != nil {
		return fmt.Errorf("clear chat: %w", err)
	}
	return nil
}
