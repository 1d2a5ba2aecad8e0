package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

type entry struct {
	lock       chan struct{}
	generation atomic.Uint64

	// guarded by lock
	session *domain.Session

	// guarded by Store.mu
	refs         int
	active       bool
	state        domain.State
	errors       int
	lastActivity time.Time
}

// Store keeps sessions in process memory. Each user has a lock that is
// held for the whole duration of an event handler.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	timeout  time.Duration
	capacity int
	now      func() time.Time

	created atomic.Int64
	expired atomic.Int64
}

type Options struct {
	IdleTimeout time.Duration
	// MaxSessions caps live sessions; zero means unlimited.
	MaxSessions int
	Now         func() time.Time
}

func NewStore(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries:  make(map[string]*entry),
		timeout:  opts.IdleTimeout,
		capacity: opts.MaxSessions,
		now:      now,
	}
}

func (s *Store) Acquire(ctx context.Context, userID string) (domain.SessionLease, func(), error) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{lock: make(chan struct{}, 1)}
		s.entries[userID] = e
	}
	e.refs++
	s.mu.Unlock()

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		s.unref(e)
		return domain.SessionLease{}, nil, fmt.Errorf("acquire session lock: %w", ctx.Err())
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-e.lock
			s.unref(e)
		})
	}

	lease := domain.SessionLease{Session: e.session, Generation: e.generation.Load()}
	if e.session != nil && e.session.Expired(s.now(), s.timeout) {
		slog.Info("session_expired",
			"user_id", userID,
			"session_id", e.session.ID,
			"state", e.session.State,
			"idle", s.now().Sub(e.session.LastActivityAt).String(),
		)
		s.dropLocked(e)
		s.expired.Add(1)
		lease.Session = nil
		lease.Expired = true
	}
	return lease, release, nil
}

func (s *Store) Save(userID string, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return fmt.Errorf("save session for %s: entry not acquired", userID)
	}
	if !e.active && s.capacity > 0 && s.liveCountLocked(s.now()) >= s.capacity {
		return domain.WrapError(domain.ErrCapacity, "save session", fmt.Errorf("%d live sessions", s.capacity))
	}
	if !e.active || e.session != sess {
		s.created.Add(1)
	}
	e.session = sess
	e.active = true
	e.state = sess.State
	e.errors = sess.Errors
	e.lastActivity = sess.LastActivityAt
	return nil
}

func (s *Store) Clear(userID string) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if ok {
		s.dropLocked(e)
	}
}

func (s *Store) Interrupt(userID string) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if ok {
		e.generation.Add(1)
	}
}

func (s *Store) Generation(userID string) uint64 {
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return e.generation.Load()
}

// Stats counts live sessions only. Timed out ones still waiting for the
// sweeper are left out.
func (s *Store) Stats() domain.SessionStats {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.SessionStats{
		Capacity: s.capacity,
		ByState:  map[string]int{},
		Created:  s.created.Load(),
		Expired:  s.expired.Load(),
	}
	for _, e := range s.entries {
		if !s.liveLocked(e, now) {
			continue
		}
		stats.Active++
		stats.Errors += e.errors
		stats.ByState[string(e.state)]++
	}
	return stats
}

// Sweep removes idle entries and timed out sessions nobody is holding.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, e := range s.entries {
		if e.refs > 0 {
			continue
		}
		if s.liveLocked(e, now) {
			continue
		}
		if e.active {
			s.expired.Add(1)
		}
		delete(s.entries, userID)
		removed++
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				slog.Debug("session_sweep", "removed", removed)
			}
		}
	}
}

// dropLocked must be called while holding the entry lock.
func (s *Store) dropLocked(e *entry) {
	e.session = nil
	s.mu.Lock()
	e.active = false
	e.state = ""
	e.errors = 0
	s.mu.Unlock()
}

func (s *Store) unref(e *entry) {
	s.mu.Lock()
	e.refs--
	s.mu.Unlock()
}

func (s *Store) liveLocked(e *entry, now time.Time) bool {
	return e.active && (s.timeout <= 0 || now.Sub(e.lastActivity) <= s.timeout)
}

func (s *Store) liveCountLocked(now time.Time) int {
	n := 0
	for _, e := range s.entries {
		if s.liveLocked(e, now) {
			n++
		}
	}
	return n
}
