package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
)

const userColumns = `id, display_name, email, password_hash, role, created_at`

func scanUser(row rowScanner) (User, error) {
	var (
		user      User
		email     sql.NullString
		createdAt int64
	)
	if err := row.Scan(&user.ID, &user.DisplayName, &email, &user.PasswordHash, &user.Role, &createdAt); err != nil {
		return User{}, err
	}
	user.Email = email.String
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

// EnsureUserByName returns the user with the given display name, creating an
// editor account on first login.
func (s *Store) EnsureUserByName(ctx context.Context, name string) (User, error) {
	user, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE display_name=?`, name))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return s.CreateUser(ctx, User{DisplayName: name, Role: "editor"})
}

func (s *Store) CreateUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = util.NewID("usr")
	}
	if user.Role == "" {
		user.Role = "editor"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = nowUTC()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	_, err := s.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.DisplayName, nullString(user.Email), user.PasswordHash, user.Role, toMillis(user.CreatedAt))
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) GetUserByName(ctx context.Context, name string) (User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE display_name=?`, name))
}

func (s *Store) SetUserRole(ctx context.Context, id, role string) error {
	return s.execOne(ctx, `UPDATE users SET role=? WHERE id=?`, role, id)
}

func (s *Store) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.execOne(ctx, `UPDATE users SET password_hash=? WHERE id=?`, passwordHash, id)
}

// SearchText is the SQL fallback search over board names, node labels and
// comment bodies. Matching is a case-insensitive substring test.
func (s *Store) SearchText(ctx context.Context, ownerID, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.query(ctx, `
		SELECT kind, id, board_id, title, snippet FROM (
			SELECT 'board' AS kind, b.id AS id, b.id AS board_id, b.name AS title, b.description AS snippet, b.updated_at AS ts
			FROM boards b
			WHERE b.owner_id=? AND (LOWER(b.name) LIKE ? OR LOWER(b.description) LIKE ?)
			UNION ALL
			SELECT 'node', n.node_id, n.board_id, b.name, n.data, n.updated_at
			FROM nodes n JOIN boards b ON b.id = n.board_id
			WHERE b.owner_id=? AND LOWER(n.data) LIKE ?
			UNION ALL
			SELECT 'comment', c.id, c.board_id, b.name, c.body, c.updated_at
			FROM comments c JOIN boards b ON b.id = c.board_id
			WHERE b.owner_id=? AND LOWER(c.body) LIKE ?
		) hits
		ORDER BY ts DESC
		LIMIT ?
	`, ownerID, pattern, pattern, ownerID, pattern, ownerID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}
	defer rows.Close()

	items := make([]SearchHit, 0)
	for rows.Next() {
		var hit SearchHit
		if err := rows.Scan(&hit.Kind, &hit.ID, &hit.BoardID, &hit.Title, &hit.Snippet); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		items = append(items, hit)
	}
	return items, rows.Err()
}
