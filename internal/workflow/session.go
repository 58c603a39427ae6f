package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"stockdash/internal/domain"
	apperror "stockdash/internal/errors"
	"stockdash/internal/pkg/logger"
)

// ProductStore is what a session needs from the repository.
type ProductStore interface {
	List(ctx context.Context) ([]domain.Product, error)
	UpdateFields(ctx context.Context, code string, updates map[domain.Field]interface{}) error
}

// View is the read model of a session returned to the UI.
type View struct {
	ID       string                 `json:"id"`
	State    State                  `json:"state"`
	Allowed  []EventType            `json:"allowed_events"`
	Options  []string               `json:"options,omitempty"`
	Current  *domain.Product        `json:"current,omitempty"`
	Selected []domain.Field         `json:"selected_fields,omitempty"`
	Pending  map[string]interface{} `json:"pending_values,omitempty"`
	Notice   *domain.Notice         `json:"notice,omitempty"`
}

// Session is one update walk-through. Events on a session are serialized.
type Session struct {
	id    string
	store ProductStore
	log   logger.Logger

	mu       sync.Mutex
	snap     Snapshot
	lastSeen atomic.Int64 // unix nanos
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// View returns the current read model.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		ID:       s.id,
		State:    s.snap.State,
		Allowed:  Allowed(s.snap.State),
		Current:  s.snap.Current,
		Selected: s.snap.Selected,
		Notice:   s.snap.Notice,
	}
	if s.snap.State == StateSelectProduct {
		v.Options = s.snap.Options()
	}
	if len(s.snap.Pending) > 0 {
		v.Pending = make(map[string]interface{}, len(s.snap.Pending))
		for f, val := range s.snap.Pending {
			v.Pending[string(f)] = val
		}
	}
	return v
}

// Handle applies ev. Rejected events leave the session unchanged. Submit
// performs the store write while holding the session lock.
func (s *Session) Handle(ctx context.Context, ev Event) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, eff, err := Transition(s.snap, ev)
	if err != nil {
		return s.viewLocked(), err
	}

	if eff != nil {
		werr := s.store.UpdateFields(ctx, eff.Code, eff.Updates)
		next = Resolve(next, werr)
		if werr != nil {
			s.log.Error("update session submit failed", werr)
		} else {
			s.log.Info("update session submitted", map[string]interface{}{
				"session": s.id,
				"code":    eff.Code,
				"fields":  len(eff.Updates),
			})
		}
	}

	s.snap = next
	return s.viewLocked(), nil
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func sessionNotFound(id string) error {
	return &apperror.NotFoundError{Code: id, Msg: fmt.Sprintf("update session '%s' does not exist", id)}
}

// Registry owns the live sessions and evicts those idle longer than ttl.
type Registry struct {
	store ProductStore
	log   logger.Logger
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. A zero ttl disables eviction.
func NewRegistry(store ProductStore, log logger.Logger, ttl time.Duration) *Registry {
	return &Registry{
		store:    store,
		log:      log,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session on the current (cached) listing.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	products, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:    uuid.NewString(),
		store: r.store,
		log:   r.log,
		snap:  Start(products),
	}
	s.touch(r.now())
	r.log.Debug("update session created", map[string]interface{}{"session": s.id, "state": string(s.snap.State)})

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, sessionNotFound(id)
	}
	s.touch(r.now())
	return s, nil
}

// Delete discards a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return sessionNotFound(id)
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts idle sessions and returns their ids.
func (r *Registry) Sweep() []string {
	if r.ttl <= 0 {
		return nil
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Run sweeps periodically until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	if r.ttl <= 0 || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := r.Sweep(); len(ids) > 0 {
				r.log.Debug("update sessions evicted", map[string]interface{}{"count": len(ids)})
			}
		}
	}
}
