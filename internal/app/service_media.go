package app

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/blob"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/rbac"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

var errStorageUnavailable = domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not configured", nil)

type UploadInput struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,startswith=image/"`
}

type CreateScreenshotInput struct {
	StorageKey  string `json:"storageKey" validate:"required"`
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	SizeBytes   int64  `json:"sizeBytes" validate:"gte=0"`
	Platform    string `json:"platform" validate:"max=64"`
}

type CreateLibraryInput struct {
	CreateScreenshotInput
	Folder string   `json:"folder" validate:"max=200"`
	Tags   []string `json:"tags" validate:"max=50,dive,min=1,max=64"`
}

type UpdateLibraryInput struct {
	Filename *string  `json:"filename" validate:"omitempty,min=1,max=255"`
	Platform *string  `json:"platform" validate:"omitempty,max=64"`
	Folder   *string  `json:"folder" validate:"omitempty,max=200"`
	Tags     []string `json:"tags" validate:"omitempty,max=50,dive,min=1,max=64"`
}

type LinkLibraryInput struct {
	GlobalScreenshotID string `json:"globalScreenshotId" validate:"required"`
}

// ScreenshotView carries a freshly signed download URL. URLs expire, so they
// are never stored.
type ScreenshotView struct {
	store.Screenshot
	URL string `json:"url,omitempty"`
}

type GlobalScreenshotView struct {
	store.GlobalScreenshot
	URL string `json:"url,omitempty"`
}

// Upload reserves a storage key and returns a presigned URL the client PUTs
// the file to.
func (s *Service) Upload(ctx context.Context, sess Session, input UploadInput) (blob.Upload, error) {
	if !s.Can(sess.Role, rbac.ActionWrite) {
		return blob.Upload{}, errForbidden
	}
	if s.blob == nil {
		return blob.Upload{}, errStorageUnavailable
	}
	return s.blob.UploadURL(ctx, input.Filename, input.ContentType)
}

// FileURL signs a download URL for an issued key.
func (s *Service) FileURL(ctx context.Context, key string) (string, error) {
	if s.blob == nil {
		return "", errStorageUnavailable
	}
	if err := blob.ValidateKey(strings.TrimSpace(key)); err != nil {
		return "", err
	}
	return s.blob.URL(ctx, strings.TrimSpace(key))
}

func (s *Service) signedURL(ctx context.Context, key string) string {
	if s.blob == nil || key == "" {
		return ""
	}
	u, err := s.blob.URL(ctx, key)
	if err != nil {
		s.logger.Warn("sign download url failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return u
}

func (s *Service) ListScreenshots(ctx context.Context, sess Session, boardID string) ([]ScreenshotView, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	shots, err := s.store.ListScreenshots(ctx, boardID)
	if err != nil {
		return nil, err
	}
	views := make([]ScreenshotView, 0, len(shots))
	for _, shot := range shots {
		views = append(views, ScreenshotView{Screenshot: shot, URL: s.signedURL(ctx, shot.StorageKey)})
	}
	return views, nil
}

// CreateScreenshot records a file the client has uploaded to the board.
func (s *Service) CreateScreenshot(ctx context.Context, sess Session, boardID string, input CreateScreenshotInput) (ScreenshotView, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return ScreenshotView{}, err
	}
	if err := blob.ValidateKey(input.StorageKey); err != nil {
		return ScreenshotView{}, err
	}
	shot, err := s.store.CreateScreenshot(ctx, store.Screenshot{
		BoardID:     boardID,
		StorageKey:  input.StorageKey,
		Filename:    input.Filename,
		ContentType: input.ContentType,
		SizeBytes:   input.SizeBytes,
		Platform:    input.Platform,
	})
	if err != nil {
		return ScreenshotView{}, err
	}
	return ScreenshotView{Screenshot: shot, URL: s.signedURL(ctx, shot.StorageKey)}, nil
}

// DeleteScreenshot removes the record, and the stored file once no clone or
// library entry shares its key.
func (s *Service) DeleteScreenshot(ctx context.Context, sess Session, boardID, screenshotID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	shot, err := s.store.GetScreenshot(ctx, screenshotID)
	if err != nil {
		return err
	}
	if shot.BoardID != boardID {
		return errNotFound
	}
	if err := s.store.DeleteScreenshot(ctx, screenshotID); err != nil {
		return err
	}
	s.releaseObject(ctx, shot.StorageKey)
	return nil
}

func (s *Service) globalViews(ctx context.Context, shots []store.GlobalScreenshot) []GlobalScreenshotView {
	views := make([]GlobalScreenshotView, 0, len(shots))
	for _, shot := range shots {
		views = append(views, GlobalScreenshotView{GlobalScreenshot: shot, URL: s.signedURL(ctx, shot.StorageKey)})
	}
	return views
}

func (s *Service) ListLibrary(ctx context.Context, sess Session, folder, tag string) ([]GlobalScreenshotView, error) {
	shots, err := s.store.ListGlobalScreenshots(ctx, sess.UserID, strings.TrimSpace(folder), strings.TrimSpace(tag))
	if err != nil {
		return nil, err
	}
	return s.globalViews(ctx, shots), nil
}

func (s *Service) CreateLibraryScreenshot(ctx context.Context, sess Session, input CreateLibraryInput) (GlobalScreenshotView, error) {
	if !s.Can(sess.Role, rbac.ActionWrite) {
		return GlobalScreenshotView{}, errForbidden
	}
	if err := blob.ValidateKey(input.StorageKey); err != nil {
		return GlobalScreenshotView{}, err
	}
	shot, err := s.store.CreateGlobalScreenshot(ctx, store.GlobalScreenshot{
		OwnerID:     sess.UserID,
		StorageKey:  input.StorageKey,
		Filename:    input.Filename,
		ContentType: input.ContentType,
		SizeBytes:   input.SizeBytes,
		Platform:    input.Platform,
		Folder:      strings.TrimSpace(input.Folder),
		Tags:        input.Tags,
	})
	if err != nil {
		return GlobalScreenshotView{}, err
	}
	return GlobalScreenshotView{GlobalScreenshot: shot, URL: s.signedURL(ctx, shot.StorageKey)}, nil
}

// libraryItem loads a library screenshot the actor owns. Admins may reach any.
func (s *Service) libraryItem(ctx context.Context, sess Session, globalID string) (store.GlobalScreenshot, error) {
	shot, err := s.store.GetGlobalScreenshot(ctx, globalID)
	if err != nil {
		return store.GlobalScreenshot{}, err
	}
	if shot.OwnerID != sess.UserID && rbac.Normalize(sess.Role) != rbac.RoleAdmin {
		return store.GlobalScreenshot{}, errNotFound
	}
	return shot, nil
}

func (s *Service) UpdateLibraryScreenshot(ctx context.Context, sess Session, globalID string, input UpdateLibraryInput) (GlobalScreenshotView, error) {
	if !s.Can(sess.Role, rbac.ActionWrite) {
		return GlobalScreenshotView{}, errForbidden
	}
	if _, err := s.libraryItem(ctx, sess, globalID); err != nil {
		return GlobalScreenshotView{}, err
	}
	shot, err := s.store.UpdateGlobalScreenshot(ctx, globalID, store.GlobalScreenshotPatch{
		Filename: input.Filename,
		Platform: input.Platform,
		Folder:   input.Folder,
		Tags:     input.Tags,
	})
	if err != nil {
		return GlobalScreenshotView{}, err
	}
	return GlobalScreenshotView{GlobalScreenshot: shot, URL: s.signedURL(ctx, shot.StorageKey)}, nil
}

// DeleteLibraryScreenshot removes the entry and its board links, and the
// stored file when nothing else uses it.
func (s *Service) DeleteLibraryScreenshot(ctx context.Context, sess Session, globalID string) error {
	if !s.Can(sess.Role, rbac.ActionWrite) {
		return errForbidden
	}
	shot, err := s.libraryItem(ctx, sess, globalID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGlobalScreenshot(ctx, globalID); err != nil {
		return err
	}
	s.releaseObject(ctx, shot.StorageKey)
	return nil
}

func (s *Service) ListBoardLibrary(ctx context.Context, sess Session, boardID string) ([]GlobalScreenshotView, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	shots, err := s.store.ListBoardLibrary(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return s.globalViews(ctx, shots), nil
}

func (s *Service) LinkLibraryScreenshot(ctx context.Context, sess Session, boardID string, input LinkLibraryInput) (store.BoardScreenshot, error) {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return store.BoardScreenshot{}, err
	}
	if _, err := s.libraryItem(ctx, sess, input.GlobalScreenshotID); err != nil {
		return store.BoardScreenshot{}, err
	}
	return s.store.LinkBoardScreenshot(ctx, boardID, input.GlobalScreenshotID)
}

func (s *Service) UnlinkLibraryScreenshot(ctx context.Context, sess Session, boardID, globalID string) error {
	if _, err := s.board(ctx, sess, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	return s.store.UnlinkBoardScreenshot(ctx, boardID, globalID)
}
