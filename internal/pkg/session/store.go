// Package session stores per-browser state: pending sign-in tickets and the
// session state written by the promoter. The browser session id is always
// passed explicitly; nothing here reads request-global state.
package session

import (
	"context"

	"github.com/yigit/campusreg/internal/app/models"
)

// Store is implemented by RedisStore and MemoryStore.
type Store interface {
	// PutPending saves a pending ticket under the browser session sid.
	PutPending(ctx context.Context, sid string, p *models.PendingSession) error
	// GetPending returns apperrors.ErrPendingNotFound when the ticket is
	// missing, expired, or belongs to another browser session.
	GetPending(ctx context.Context, sid, tempUserID string) (*models.PendingSession, error)
	DeletePending(ctx context.Context, sid, tempUserID string) error

	// Load returns an empty state when nothing is stored for sid.
	Load(ctx context.Context, sid string) (*models.SessionState, error)
	Save(ctx context.Context, sid string, state *models.SessionState) error
	// Delete drops the session state and every pending ticket of sid.
	Delete(ctx context.Context, sid string) error

	Ping(ctx context.Context) error
}

func pendingKey(prefix, sid, tempUserID string) string {
	return prefix + "pending:" + sid + ":" + tempUserID
}

// pendingIndexKey lists the ticket ids issued to sid so Delete can find them.
func pendingIndexKey(prefix, sid string) string {
	return prefix + "pendingidx:" + sid
}

func stateKey(prefix, sid string) string {
	return prefix + "session:" + sid
}
