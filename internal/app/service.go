package app

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"covenant/api/internal/auth"
	"covenant/api/internal/authpw"
	"covenant/api/internal/config"
	"covenant/api/internal/document"
	"covenant/api/internal/rbac"
	"covenant/api/internal/search"
	"covenant/api/internal/store"
	"covenant/api/internal/util"
)

// Session is the authenticated caller, reconstructed from the bearer token
// on every request.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	Department   string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the persistence surface the service needs. PostgresStore
// implements it; tests substitute a fake.
type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error

	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	Members(ctx context.Context, group, department string) ([]string, error)

	GetDocument(ctx context.Context, documentID string) (store.DocumentRecord, error)
	ListDocuments(ctx context.Context, docType string) ([]store.DocumentRecord, error)
	InsertDocument(ctx context.Context, rec store.DocumentRecord) error
	UpdateDocument(ctx context.Context, documentID string, body []byte, updatedBy string, expectedRevision int64) error
	DeleteDocument(ctx context.Context, documentID string) error

	InsertModerationRequest(ctx context.Context, req store.ModerationRequest) error
	GetModerationRequest(ctx context.Context, requestID string) (store.ModerationRequest, error)
	ListRequestsByModerator(ctx context.Context, moderator string, limit, offset int) ([]store.ModerationRequest, error)
	ListRequestsByRequester(ctx context.Context, requester string, limit, offset int) ([]store.ModerationRequest, error)
	ListRequestsByDocument(ctx context.Context, documentID string) ([]store.ModerationRequest, error)
	ListOpenRequests(ctx context.Context) ([]store.ModerationRequest, error)
	ClaimRequest(ctx context.Context, requestID, reviewer string) error
	UnclaimRequest(ctx context.Context, requestID, reviewer string) error
	AcceptRequest(ctx context.Context, requestID, reviewer, comment string) error
	RefuseRequest(ctx context.Context, requestID, reviewer, comment string) error
	RemoveRequestAssignee(ctx context.Context, requestID, moderator string) error
	DeleteRequestsForDocument(ctx context.Context, documentID string) ([]string, error)
}

// SessionStore holds refresh tokens. Redis when configured, Postgres
// otherwise; both speak the same three verbs.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// searchService indexes open requests and answers request searches.
type searchService interface {
	Search(q search.Query) search.Response
	IndexRequest(rec search.RequestRecord)
	DeleteRequest(requestID string)
}

// notifier sends moderation mail. All sends are fire-and-forget.
type notifier interface {
	IsConfigured() bool
	NotifyRequestCreated(moderatorEmails []string, requestID, documentID, requester string)
	NotifyRequestDecided(requesterEmail, requestID, documentID, state, comment string)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions SessionStore
	registry *document.Registry
	search   searchService
	mail     notifier
	authpw   *authpw.Service
	log      *zap.Logger
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions SessionStore, registry *document.Registry, searchSvc *search.Service, mail notifier, log *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		registry: registry,
		search:   searchSvc,
		mail:     mail,
		authpw:   authpw.NewService(dataStore),
		log:      log,
	}
}

// Bootstrap rebuilds the search index from the open requests in Postgres.
// Meilisearch holds no durable state, so a fresh or wiped index catches up
// here.
func (s *Service) Bootstrap(ctx context.Context) error {
	open, err := s.store.ListOpenRequests(ctx)
	if err != nil {
		return err
	}
	for _, req := range open {
		s.search.IndexRequest(requestSearchRecord(req))
	}
	s.log.Info("bootstrap complete", zap.Int("openRequests", len(open)))
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// SignUp registers a new account and opens a session for it.
func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.authpw.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// SignIn checks credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	user, err := s.authpw.SignIn(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	ref, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, ref.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, user.Role, user.Department, jti, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		Department:   user.Department,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return Session{
		Token:      token,
		UserID:     user.ID,
		UserName:   user.DisplayName,
		Role:       user.Role,
		Department: user.Department,
		JTI:        claims.ID,
		ExpiresAt:  expiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// requestSearchRecord flattens a stored request into the indexed form. The
// delta payload is included so free text can match proposed field values.
func requestSearchRecord(req store.ModerationRequest) search.RequestRecord {
	payload := make([]byte, 0, len(req.Additions)+len(req.Deletions)+1)
	payload = append(payload, req.Additions...)
	payload = append(payload, ' ')
	payload = append(payload, req.Deletions...)
	return search.RequestRecord{
		ID:         req.ID,
		DocumentID: req.DocumentID,
		DocType:    req.DocumentType,
		Requester:  req.Requester,
		Department: req.Department,
		State:      req.State,
		Moderators: req.Moderators,
		Payload:    string(payload),
	}
}

// moderatorEmails resolves user ids to addresses for notification mail.
// Lookups that fail are skipped; notification is best effort.
func (s *Service) moderatorEmails(ctx context.Context, userIDs []string) []string {
	emails := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		user, err := s.store.GetUserByID(ctx, id)
		if err != nil || user.Email == "" {
			continue
		}
		emails = append(emails, user.Email)
	}
	return emails
}

func rawOrEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
