package runtime

import (
	"sort"
	"sync"
)

// Presence answers "who is online". A user is online iff their connection
// set in the registry is non-empty; only the coordinator mutates this state,
// exactly on first-connection and last-disconnection transitions, which is
// what keeps the two views equal.
type Presence struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

func NewPresence() *Presence {
	return &Presence{online: make(map[string]struct{})}
}

// MarkOnline records the transition and reports whether state changed.
func (p *Presence) MarkOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.online[userID]; ok {
		return false
	}
	p.online[userID] = struct{}{}
	return true
}

// MarkOffline records the transition and reports whether state changed.
func (p *Presence) MarkOffline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.online[userID]; !ok {
		return false
	}
	delete(p.online, userID)
	return true
}

func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[userID]
	return ok
}

// Snapshot returns the online user ids, sorted for deterministic hydration
// payloads.
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
