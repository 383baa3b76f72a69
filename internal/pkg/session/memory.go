package session

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
	"github.com/zekroTJA/timedmap"
)

// MemoryStore keeps sessions in process memory with per-entry expiry. It is
// used when no Redis address is configured and in tests.
type MemoryStore struct {
	mu         sync.Mutex // guards pending index updates
	tm         *timedmap.TimedMap
	pendingTTL time.Duration
	sessionTTL time.Duration
}

// NewMemoryStore creates an in-process store
func NewMemoryStore(pendingTTL, sessionTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		tm:         timedmap.New(time.Minute),
		pendingTTL: pendingTTL,
		sessionTTL: sessionTTL,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) PutPending(_ context.Context, sid string, p *models.PendingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tm.Set(pendingKey("", sid, p.TempUserID), *p, s.pendingTTL)
	ids, _ := s.tm.GetValue(pendingIndexKey("", sid)).([]string)
	if !lo.Contains(ids, p.TempUserID) {
		ids = append(append([]string(nil), ids...), p.TempUserID)
	}
	s.tm.Set(pendingIndexKey("", sid), ids, s.pendingTTL)
	return nil
}

func (s *MemoryStore) GetPending(_ context.Context, sid, tempUserID string) (*models.PendingSession, error) {
	p, ok := s.tm.GetValue(pendingKey("", sid, tempUserID)).(models.PendingSession)
	if !ok {
		return nil, apperrors.ErrPendingNotFound
	}
	return &p, nil
}

func (s *MemoryStore) DeletePending(_ context.Context, sid, tempUserID string) error {
	s.tm.Remove(pendingKey("", sid, tempUserID))
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sid string) (*models.SessionState, error) {
	st, ok := s.tm.GetValue(stateKey("", sid)).(models.SessionState)
	if !ok {
		return &models.SessionState{}, nil
	}
	if st.Auth != nil {
		auth := *st.Auth
		st.Auth = &auth
	}
	return &st, nil
}

func (s *MemoryStore) Save(_ context.Context, sid string, state *models.SessionState) error {
	st := *state
	if state.Auth != nil {
		auth := *state.Auth
		st.Auth = &auth
	}
	s.tm.Set(stateKey("", sid), st, s.sessionTTL)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, _ := s.tm.GetValue(pendingIndexKey("", sid)).([]string)
	for _, id := range ids {
		s.tm.Remove(pendingKey("", sid, id))
	}
	s.tm.Remove(pendingIndexKey("", sid))
	s.tm.Remove(stateKey("", sid))
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close stops the expiry cleaner
func (s *MemoryStore) Close() {
	s.tm.StopCleaner()
}
