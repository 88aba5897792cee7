package session

import (
	"context"
	"sort"
	"sync"
)

const (
	DefaultWinningScore = 1000
	DefaultLocation     = "TableTop"
)

type Defaults struct {
	WinningScore int
	Location     string
}

// Registry holds the active session of every channel. A channel has at most
// one session that is starting or in progress.
type Registry struct {
	store    Store
	defaults Defaults

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry(store Store, defaults Defaults) *Registry {
	if defaults.WinningScore <= 0 {
		defaults.WinningScore = DefaultWinningScore
	}
	if defaults.Location == "" {
		defaults.Location = DefaultLocation
	}
	return &Registry{
		store:    store,
		defaults: defaults,
		sessions: make(map[int64]*Session),
	}
}

// Session returns the channel's active session, or a fresh idle one that is
// registered once a game starts on it.
func (r *Registry) Session(channel int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[channel]; ok {
		return s
	}
	return &Session{channel: channel, registry: r, store: r.store}
}

// Lookup returns the channel's active session only.
func (r *Registry) Lookup(channel int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[channel]
	return s, ok
}

// Active lists the registered sessions ordered by channel.
func (r *Registry) Active() []*Session {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].channel < list[j].channel })
	return list
}

// DeleteGame removes a game from storage and idles whichever channel was
// playing it. It reports whether an active session was dropped.
func (r *Registry) DeleteGame(ctx context.Context, gameID uint) (bool, error) {
	if err := r.store.DeleteGame(ctx, gameID); err != nil {
		return false, err
	}
	for _, s := range r.Active() {
		if s.DeleteActiveGameIfMatches(gameID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) claim(channel int64, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[channel]; ok && current != s {
		return ErrAlreadyInProgress
	}
	r.sessions[channel] = s
	return nil
}

func (r *Registry) release(channel int64, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[channel] == s {
		delete(r.sessions, channel)
	}
}
