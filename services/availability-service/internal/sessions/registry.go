// Package sessions keeps the in-memory booking sessions served over HTTP.
package sessions

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/selection"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrFull means the registry already holds its maximum number of sessions.
	ErrFull = errors.New("session limit reached")
)

// Rendered is the last availability a session rendered.
type Rendered struct {
	Slots      []availability.Slot
	Meta       selection.RenderMeta
	RenderedAt time.Time
}

type Session struct {
	ID        string
	Scheduler *selection.Scheduler

	mu       sync.Mutex
	lastSeen time.Time
	rendered *Rendered
}

// LastRendered returns a copy of the most recent render, if any.
func (s *Session) LastRendered() (Rendered, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rendered == nil {
		return Rendered{}, false
	}
	out := *s.rendered
	out.Slots = append([]availability.Slot(nil), s.rendered.Slots...)
	return out, true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Factory builds a scheduler that reports renders to render.
type Factory func(render selection.Renderer) (*selection.Scheduler, error)

// RenderHook is called after a session stores a render.
type RenderHook func(sessionID string, rendered Rendered)

type Registry struct {
	factory  Factory
	onRender RenderHook
	onSize   func(int)
	now      func() time.Time
	max      int

	mu       sync.RWMutex
	sessions map[string]*Session
}

type Option func(*Registry)

func WithRenderHook(h RenderHook) Option {
	return func(r *Registry) { r.onRender = h }
}

// WithSizeObserver reports the session count after every change.
func WithSizeObserver(f func(int)) Option {
	return func(r *Registry) { r.onSize = f }
}

// WithMaxSessions caps the number of live sessions; n <= 0 means no cap.
func WithMaxSessions(n int) Option {
	return func(r *Registry) { r.max = n }
}

func NewRegistry(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:  factory,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Create() (*Session, error) {
	if r.full() {
		return nil, ErrFull
	}
	sess := &Session{ID: uuid.NewString(), lastSeen: r.now()}
	sched, err := r.factory(func(slots []availability.Slot, meta selection.RenderMeta) {
		rendered := Rendered{Slots: slots, Meta: meta, RenderedAt: r.now()}
		sess.mu.Lock()
		sess.rendered = &rendered
		sess.mu.Unlock()
		if r.onRender != nil {
			r.onRender(sess.ID, rendered)
		}
	})
	if err != nil {
		return nil, err
	}
	sess.Scheduler = sched

	r.mu.Lock()
	if r.max > 0 && len(r.sessions) >= r.max {
		r.mu.Unlock()
		return nil, ErrFull
	}
	r.sessions[sess.ID] = sess
	n := len(r.sessions)
	r.mu.Unlock()
	r.reportSize(n)
	return sess, nil
}

// Get returns the session and marks it as recently used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	sess.touch(r.now())
	return sess, nil
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	r.reportSize(n)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle removes sessions unused for longer than maxIdle.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	evicted := 0
	for id, sess := range r.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()
	if evicted > 0 {
		r.reportSize(n)
	}
	return evicted
}

func (r *Registry) full() bool {
	if r.max <= 0 {
		return false
	}
	return r.Len() >= r.max
}

func (r *Registry) reportSize(n int) {
	if r.onSize != nil {
		r.onSize(n)
	}
}
