package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/companin/widget/pkg/logger"
)

// DefaultExpirySkew is how long before its server expiry a stored session
// stops being reused.
const DefaultExpirySkew = 5 * time.Minute

// SessionRecord is the cached session persisted per (client, assistant).
type SessionRecord struct {
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionKey returns the key a session record is stored under.
func SessionKey(clientID, assistantID string) string {
	return fmt.Sprintf("companin-session-%s-%s", clientID, assistantID)
}

// VisitorKey returns the key a visitor id is stored under.
func VisitorKey(clientID string) string {
	return fmt.Sprintf("companin-visitor-%s", clientID)
}

// Records reads and writes widget records on top of a Store. Writes are
// best-effort: failures are logged and never returned.
type Records struct {
	store  Store
	logger *logger.Logger
	skew   time.Duration

	// Now is the clock used for validity checks.
	Now func() time.Time
}

// NewRecords creates a Records helper. A non-positive skew uses DefaultExpirySkew.
func NewRecords(s Store, log *logger.Logger, skew time.Duration) *Records {
	if skew <= 0 {
		skew = DefaultExpirySkew
	}
	return &Records{
		store:  s,
		logger: log,
		skew:   skew,
		Now:    time.Now,
	}
}

// Valid reports whether rec may still be reused at now.
func (r *Records) Valid(rec SessionRecord, now time.Time) bool {
	if rec.SessionID == "" || rec.ExpiresAt.IsZero() {
		return false
	}
	return rec.ExpiresAt.Add(-r.skew).After(now)
}

// LoadSession returns the stored session for (clientID, assistantID) when it
// is still valid. Stale or unreadable records are deleted.
func (r *Records) LoadSession(ctx context.Context, clientID, assistantID string) (*SessionRecord, bool) {
	key := SessionKey(clientID, assistantID)

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Warn("failed to read stored session", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var rec SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		r.logger.Warn("discarding unreadable stored session", zap.String("key", key), zap.Error(err))
		r.delete(ctx, key)
		return nil, false
	}

	if !r.Valid(rec, r.Now()) {
		r.delete(ctx, key)
		return nil, false
	}
	return &rec, true
}

// SaveSession stores a session record.
func (r *Records) SaveSession(ctx context.Context, clientID, assistantID, sessionID string, expiresAt time.Time) {
	key := SessionKey(clientID, assistantID)
	rec := SessionRecord{
		SessionID: sessionID,
		ExpiresAt: expiresAt,
		CreatedAt: r.Now(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error("failed to encode session record", zap.Error(err))
		return
	}
	if err := r.store.Set(ctx, key, string(data)); err != nil {
		r.logger.Error("failed to store session", zap.String("key", key), zap.Error(err))
	}
}

// ClearSession removes the stored session record.
func (r *Records) ClearSession(ctx context.Context, clientID, assistantID string) {
	r.delete(ctx, SessionKey(clientID, assistantID))
}

// VisitorID returns the visitor id for clientID, creating and storing one
// on first use.
func (r *Records) VisitorID(ctx context.Context, clientID string) string {
	key := VisitorKey(clientID)

	if v, err := r.store.Get(ctx, key); err == nil && v != "" {
		return v
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		r.logger.Warn("failed to read visitor id", zap.String("key", key), zap.Error(err))
	}

	id := NewVisitorID(r.Now())
	if err := r.store.Set(ctx, key, id); err != nil {
		r.logger.Error("failed to store visitor id", zap.String("key", key), zap.Error(err))
	}
	return id
}

// NewVisitorID generates a pseudo-identifier of the form
// widget-<unix millis>-<9 random chars>.
func NewVisitorID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("widget-%d-%s", now.UnixMilli(), random)
}

func (r *Records) delete(ctx context.Context, key string) {
	if err := r.store.Delete(ctx, key); err != nil {
		r.logger.Error("failed to delete stored record", zap.String("key", key), zap.Error(err))
	}
}
