package discord

import (
	"context"
	"sync"
	"time"

	"warden/pkg/domain"
)

type promptRef struct {
	userID    domain.UserID
	token     string
	expiresAt time.Time
}

// promptIndex remembers which message carries which user's prompt so a
// reaction can be matched to its session token.
type promptIndex struct {
	mu      sync.Mutex
	entries map[string]promptRef
	now     func() time.Time
}

func newPromptIndex() *promptIndex {
	return &promptIndex{entries: make(map[string]promptRef), now: time.Now}
}

func (p *promptIndex) add(messageID string, ref promptRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[messageID] = ref
}

// take returns the token for a reaction from the prompted user and forgets
// the message. Reactions from anyone else leave the entry in place.
func (p *promptIndex) take(messageID string, userID domain.UserID) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ref, ok := p.entries[messageID]
	if !ok || ref.userID != userID {
		return "", false
	}
	delete(p.entries, messageID)
	return ref.token, true
}

func (p *promptIndex) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Sweep drops prompts whose session can no longer be confirmed.
func (p *promptIndex) Sweep(context.Context) int {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for id, ref := range p.entries {
		if !now.Before(ref.expiresAt) {
			delete(p.entries, id)
			removed++
		}
	}
	return removed
}
