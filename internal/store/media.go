package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
)

const screenshotColumns = `id, board_id, storage_key, filename, content_type, size_bytes, platform, created_at`

func scanScreenshot(row rowScanner) (Screenshot, error) {
	var (
		shot      Screenshot
		createdAt int64
	)
	if err := row.Scan(&shot.ID, &shot.BoardID, &shot.StorageKey, &shot.Filename, &shot.ContentType, &shot.SizeBytes, &shot.Platform, &createdAt); err != nil {
		return Screenshot{}, err
	}
	shot.CreatedAt = fromMillis(createdAt)
	return shot, nil
}

func (s *Store) CreateScreenshot(ctx context.Context, shot Screenshot) (Screenshot, error) {
	if shot.ID == "" {
		shot.ID = util.NewID("scr")
	}
	if shot.CreatedAt.IsZero() {
		shot.CreatedAt = nowUTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO screenshots (`+screenshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, shot.ID, shot.BoardID, shot.StorageKey, shot.Filename, shot.ContentType, shot.SizeBytes, shot.Platform, toMillis(shot.CreatedAt))
	if err != nil {
		return Screenshot{}, fmt.Errorf("insert screenshot: %w", err)
	}
	return shot, nil
}

func (s *Store) GetScreenshot(ctx context.Context, id string) (Screenshot, error) {
	return scanScreenshot(s.queryRow(ctx, `SELECT `+screenshotColumns+` FROM screenshots WHERE id=?`, id))
}

func (s *Store) ListScreenshots(ctx context.Context, boardID string) ([]Screenshot, error) {
	rows, err := s.query(ctx, `SELECT `+screenshotColumns+` FROM screenshots WHERE board_id=? ORDER BY created_at, id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	defer rows.Close()

	items := make([]Screenshot, 0)
	for rows.Next() {
		shot, err := scanScreenshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan screenshot: %w", err)
		}
		items = append(items, shot)
	}
	return items, rows.Err()
}

func (s *Store) DeleteScreenshot(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM screenshots WHERE id=?`, id)
}

// StorageKeyInUse reports whether any screenshot record still points at key.
// Cloned boards share keys with their source.
func (s *Store) StorageKeyInUse(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.queryRow(ctx, `
		SELECT (SELECT COUNT(1) FROM screenshots WHERE storage_key=?) + (SELECT COUNT(1) FROM global_screenshots WHERE storage_key=?)
	`, key, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count storage key: %w", err)
	}
	return count > 0, nil
}

const globalScreenshotColumns = `id, owner_id, storage_key, filename, content_type, size_bytes, platform, folder, tags, created_at`

func scanGlobalScreenshot(row rowScanner) (GlobalScreenshot, error) {
	var (
		shot      GlobalScreenshot
		tags      string
		createdAt int64
	)
	if err := row.Scan(&shot.ID, &shot.OwnerID, &shot.StorageKey, &shot.Filename, &shot.ContentType, &shot.SizeBytes, &shot.Platform, &shot.Folder, &tags, &createdAt); err != nil {
		return GlobalScreenshot{}, err
	}
	shot.Tags = make([]string, 0)
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &shot.Tags); err != nil {
			return GlobalScreenshot{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	shot.CreatedAt = fromMillis(createdAt)
	return shot, nil
}

func (s *Store) CreateGlobalScreenshot(ctx context.Context, shot GlobalScreenshot) (GlobalScreenshot, error) {
	if shot.ID == "" {
		shot.ID = util.NewID("gsc")
	}
	if shot.CreatedAt.IsZero() {
		shot.CreatedAt = nowUTC()
	}
	if shot.Tags == nil {
		shot.Tags = make([]string, 0)
	}
	tags, err := marshalJSON(shot.Tags)
	if err != nil {
		return GlobalScreenshot{}, fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO global_screenshots (`+globalScreenshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, shot.ID, shot.OwnerID, shot.StorageKey, shot.Filename, shot.ContentType, shot.SizeBytes, shot.Platform, shot.Folder, tags, toMillis(shot.CreatedAt))
	if err != nil {
		return GlobalScreenshot{}, fmt.Errorf("insert global screenshot: %w", err)
	}
	return shot, nil
}

func (s *Store) GetGlobalScreenshot(ctx context.Context, id string) (GlobalScreenshot, error) {
	return scanGlobalScreenshot(s.queryRow(ctx, `SELECT `+globalScreenshotColumns+` FROM global_screenshots WHERE id=?`, id))
}

// ListGlobalScreenshots filters the library by folder and tag when given.
// Tag matching happens after the query since tags are stored as JSON text.
func (s *Store) ListGlobalScreenshots(ctx context.Context, ownerID, folder, tag string) ([]GlobalScreenshot, error) {
	query := `SELECT ` + globalScreenshotColumns + ` FROM global_screenshots WHERE owner_id=?`
	args := []any{ownerID}
	if folder != "" {
		query += ` AND folder=?`
		args = append(args, folder)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list global screenshots: %w", err)
	}
	defer rows.Close()

	items := make([]GlobalScreenshot, 0)
	for rows.Next() {
		shot, err := scanGlobalScreenshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan global screenshot: %w", err)
		}
		if tag != "" && !slices.Contains(shot.Tags, tag) {
			continue
		}
		items = append(items, shot)
	}
	return items, rows.Err()
}

type GlobalScreenshotPatch struct {
	Filename *string
	Platform *string
	Folder   *string
	Tags     []string
}

func (s *Store) UpdateGlobalScreenshot(ctx context.Context, id string, patch GlobalScreenshotPatch) (GlobalScreenshot, error) {
	shot, err := s.GetGlobalScreenshot(ctx, id)
	if err != nil {
		return GlobalScreenshot{}, err
	}
	if patch.Filename != nil {
		shot.Filename = *patch.Filename
	}
	if patch.Platform != nil {
		shot.Platform = *patch.Platform
	}
	if patch.Folder != nil {
		shot.Folder = *patch.Folder
	}
	if patch.Tags != nil {
		shot.Tags = patch.Tags
	}
	tags, err := marshalJSON(shot.Tags)
	if err != nil {
		return GlobalScreenshot{}, fmt.Errorf("encode tags: %w", err)
	}
	err = s.execOne(ctx, `UPDATE global_screenshots SET filename=?, platform=?, folder=?, tags=? WHERE id=?`,
		shot.Filename, shot.Platform, shot.Folder, tags, id)
	if err != nil {
		return GlobalScreenshot{}, fmt.Errorf("update global screenshot: %w", err)
	}
	return shot, nil
}

// DeleteGlobalScreenshot removes a library entry and every board link to it.
func (s *Store) DeleteGlobalScreenshot(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.execOne(ctx, `DELETE FROM global_screenshots WHERE id=?`, id); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM board_screenshots WHERE global_screenshot_id=?`, id); err != nil {
			return fmt.Errorf("delete board links: %w", err)
		}
		return nil
	})
}

// LinkBoardScreenshot adds a library screenshot to a board. Linking twice
// returns the existing link.
func (s *Store) LinkBoardScreenshot(ctx context.Context, boardID, globalID string) (BoardScreenshot, error) {
	var (
		link      BoardScreenshot
		createdAt int64
	)
	err := s.queryRow(ctx, `
		SELECT id, board_id, global_screenshot_id, created_at FROM board_screenshots
		WHERE board_id=? AND global_screenshot_id=?
	`, boardID, globalID).Scan(&link.ID, &link.BoardID, &link.GlobalScreenshotID, &createdAt)
	if err == nil {
		link.CreatedAt = fromMillis(createdAt)
		return link, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return BoardScreenshot{}, fmt.Errorf("lookup board screenshot: %w", err)
	}

	link = BoardScreenshot{ID: util.NewID("bsc"), BoardID: boardID, GlobalScreenshotID: globalID, CreatedAt: nowUTC()}
	_, err = s.exec(ctx, `
		INSERT INTO board_screenshots (id, board_id, global_screenshot_id, created_at)
		VALUES (?, ?, ?, ?)
	`, link.ID, link.BoardID, link.GlobalScreenshotID, toMillis(link.CreatedAt))
	if err != nil {
		return BoardScreenshot{}, fmt.Errorf("insert board screenshot: %w", err)
	}
	return link, nil
}

func (s *Store) UnlinkBoardScreenshot(ctx context.Context, boardID, globalID string) error {
	return s.execOne(ctx, `DELETE FROM board_screenshots WHERE board_id=? AND global_screenshot_id=?`, boardID, globalID)
}

// ListBoardLibrary returns the library screenshots linked into a board.
func (s *Store) ListBoardLibrary(ctx context.Context, boardID string) ([]GlobalScreenshot, error) {
	rows, err := s.query(ctx, `
		SELECT g.id, g.owner_id, g.storage_key, g.filename, g.content_type, g.size_bytes, g.platform, g.folder, g.tags, g.created_at
		FROM board_screenshots bs
		JOIN global_screenshots g ON g.id = bs.global_screenshot_id
		WHERE bs.board_id=?
		ORDER BY bs.created_at, g.id
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board library: %w", err)
	}
	defer rows.Close()

	items := make([]GlobalScreenshot, 0)
	for rows.Next() {
		shot, err := scanGlobalScreenshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board library: %w", err)
		}
		items = append(items, shot)
	}
	return items, rows.Err()
}
