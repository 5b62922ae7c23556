package auth

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"missionctl/config"
	"missionctl/core/store"
	"missionctl/core/utils"
)

type contextKey string

// SessionContextKey carries the *store.SessionRecord of the authenticated
// request.
const SessionContextKey contextKey = "session"

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionManager struct {
	store  store.SessionsStore
	cfg    *config.AppConfig
	logger *utils.Logger
}

func NewSessionManager(store store.SessionsStore, cfg *config.AppConfig, logger *utils.Logger) *SessionManager {
	return &SessionManager{store: store, cfg: cfg, logger: logger}
}

func (m *SessionManager) Create(ctx context.Context, user *store.User, ip, userAgent string) (*store.SessionRecord, error) {
	id := uuid.Must(uuid.NewV4()).String()
	var csrf string
	var err error
	if m.cfg.CSRFKey != "" {
		csrf, err = GenerateCSRF(m.cfg.CSRFKey, id)
	} else {
		csrf, err = utils.RandString(32)
	}
	if err != nil {
		return nil, err
	}
	now := utils.NowUTC()
	rec := &store.SessionRecord{
		ID:         id,
		UserID:     user.ID,
		Username:   user.Username,
		CSRFToken:  csrf,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.cfg.EffectiveSessionTTL()),
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *SessionManager) Get(ctx context.Context, id string) (*store.SessionRecord, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	if utils.NowUTC().After(rec.ExpiresAt) {
		_ = m.store.Delete(ctx, id)
		return nil, nil
	}
	return rec, nil
}

func (m *SessionManager) Refresh(ctx context.Context, id string) error {
	now := utils.NowUTC()
	return m.store.Touch(ctx, id, now, now.Add(m.cfg.EffectiveSessionTTL()))
}

func (m *SessionManager) Rotate(ctx context.Context, id string) (*store.SessionRecord, error) {
	old, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, errors.New("session not found")
	}
	_ = m.store.Delete(ctx, id)
	return m.Create(ctx, &store.User{ID: old.UserID, Username: old.Username}, old.IP, old.UserAgent)
}

func (m *SessionManager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}
