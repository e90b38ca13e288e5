package verification

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"warden/pkg/domain"
)

// TokenLength is the number of hex characters in a session token.
const TokenLength = 32

// Session is a live PENDING verification. Only PENDING is stored; every
// other state is the absence of a session.
type Session struct {
	UserID          domain.UserID
	Token           string
	CreatedAt       time.Time
	Timeout         time.Duration
	OriginGroupID   domain.GroupID
	OriginChannelID domain.ChannelID
	AttemptCount    int
	Username        string
}

func (s *Session) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.Timeout)
}

// Expired reports whether now is at or past the deadline.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// sessionTable maps users to their pending session. Callers hold the per-user
// lock for read-modify-write sequences; mu only protects the map itself.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[domain.UserID]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[domain.UserID]*Session)}
}

func (t *sessionTable) get(userID domain.UserID) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[userID]
	return s, ok
}

func (t *sessionTable) put(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.UserID] = s
}

func (t *sessionTable) remove(userID domain.UserID) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[userID]
	if ok {
		delete(t.sessions, userID)
	}
	return s, ok
}

func (t *sessionTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// due returns users whose session has expired at now, oldest first.
func (t *sessionTable) due(now time.Time) []domain.UserID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var due []*Session
	for _, s := range t.sessions {
		if s.Expired(now) {
			due = append(due, s)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	ids := make([]domain.UserID, len(due))
	for i, s := range due {
		ids[i] = s.UserID
	}
	return ids
}

// TokenSource produces session tokens.
type TokenSource func(userID domain.UserID, now time.Time) (string, error)

// NewToken hashes the user id, the time and 16 random bytes and keeps the
// first 32 hex characters.
func NewToken(userID domain.UserID, now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read token nonce: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d:", userID, now.UnixNano())
	h.Write(nonce)
	return hex.EncodeToString(h.Sum(nil))[:TokenLength], nil
}
