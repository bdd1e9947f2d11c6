package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/assistant"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/auth"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/authpw"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/blob"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/config"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/export"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/lock"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/metrics"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/notify"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/rbac"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/search"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/session"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/util"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/versioning"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

func (s Session) actor() assistant.Actor {
	return assistant.Actor{ID: s.UserID, Name: s.UserName}
}

// Deps are the collaborators of a Service. Nil fields fall back to local,
// in-process implementations; a nil Blob disables uploads.
type Deps struct {
	Store     *store.Store
	Sessions  session.Store
	Versions  *versioning.Service
	Assistant *assistant.Service
	Blob      blob.Store
	Search    *search.Service
	Notifier  notify.Notifier
	Exporter  *export.Service
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

type Service struct {
	cfg       config.Config
	store     *store.Store
	sessions  session.Store
	versions  *versioning.Service
	assistant *assistant.Service
	blob      blob.Store
	search    *search.Service
	notifier  notify.Notifier
	exporter  *export.Service
	passwords *authpw.Service
	metrics   *metrics.Collector
	logger    *zap.Logger
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, notify.Event) {}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		versions:  deps.Versions,
		assistant: deps.Assistant,
		blob:      deps.Blob,
		search:    deps.Search,
		notifier:  deps.Notifier,
		exporter:  deps.Exporter,
		passwords: authpw.NewService(deps.Store),
		metrics:   deps.Metrics,
		logger:    logger,
	}
	if svc.metrics == nil {
		svc.metrics = metrics.NewCollector("journey")
	}
	if svc.sessions == nil {
		svc.sessions = session.NewMemoryStore()
	}
	if svc.versions == nil {
		svc.versions = versioning.NewService(deps.Store, lock.NewLocalLocker(), logger)
	}
	if svc.assistant == nil {
		svc.assistant = assistant.NewService(deps.Store, nil, nil, logger, assistant.Options{})
	}
	if svc.search == nil {
		svc.search = search.NewService(nil, deps.Store, logger)
	}
	if svc.notifier == nil {
		svc.notifier = noopNotifier{}
	}
	if svc.exporter == nil {
		svc.exporter = export.NewService(deps.Store, cfg.ChromePath, logger)
	}
	return svc
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Login signs in by display name, creating the user on first use. Accounts
// that have a password must use SignIn.
func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}
	if user.PasswordHash != "" {
		return Session{}, domainError(http.StatusUnauthorized, "PASSWORD_REQUIRED", "This account signs in with email and password", nil)
	}

	return s.issueSession(ctx, user)
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	user, err := s.passwords.SignIn(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) ChangePassword(ctx context.Context, sess Session, current, next string) error {
	return s.passwords.ChangePassword(ctx, sess.UserID, current, next)
}

// Refresh rotates a refresh token. The old token stops working even if
// issuing the new session fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	cached, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, cached.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Logout revokes whatever it is given. Failures are logged, not returned.
func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) {
	if sess.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt); err != nil {
			s.logger.Warn("revoke access token failed", zap.Error(err))
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.Warn("revoke refresh session failed", zap.Error(err))
		}
	}
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// board loads boardID for sess. Boards the actor may not see are reported
// as missing; visible boards the actor may not act on are forbidden.
func (s *Service) board(ctx context.Context, sess Session, boardID string, action rbac.Action) (store.Board, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	role := rbac.Normalize(sess.Role)
	if !rbac.CanOnBoard(role, rbac.ActionRead, sess.UserID, board.OwnerID) {
		return store.Board{}, errNotFound
	}
	if !rbac.CanOnBoard(role, action, sess.UserID, board.OwnerID) {
		return store.Board{}, errForbidden
	}
	return board, nil
}

// releaseObject removes the stored file behind key once no record points at
// it any more. Failures are logged only.
func (s *Service) releaseObject(ctx context.Context, key string) {
	if s.blob == nil || key == "" {
		return
	}
	inUse, err := s.store.StorageKeyInUse(ctx, key)
	if err != nil {
		s.logger.Warn("check storage key failed", zap.String("key", key), zap.Error(err))
		return
	}
	if inUse {
		return
	}
	if err := s.blob.Delete(ctx, key); err != nil {
		s.logger.Warn("delete object failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) touch(ctx context.Context, boardID string) {
	if err := s.store.TouchBoard(ctx, boardID); err != nil {
		s.logger.Warn("touch board failed", zap.String("board_id", boardID), zap.Error(err))
	}
}
