// Package session holds per-session conversation history and document
// associations. Sessions are isolated from each other: mutations on one
// session never block another, while mutations within a session are
// serialized by a per-session lock.
package session

import (
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neel92654/PDF-QA-Bot/internal/domain"
)

// idPattern accepts the ids the gateway generates (UUIDs) plus any opaque
// token a client may mint for itself, within sane bounds.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// NewID returns a fresh unguessable session identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether a client-supplied session id is well-formed.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Store maps session ids to their state. Lookups of unknown ids lazily
// create an empty session, never fail, so clients may generate an id
// before their first upload completes.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	idleTTL time.Duration
	now     func() time.Time
	logger  *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

type session struct {
	mu        sync.Mutex
	exchanges []*exchange
	docIDs    []string
	docSet    map[string]struct{}
	lastSeen  time.Time
}

// exchange pairs a user turn with the assistant turn it produced, so two
// in-flight asks on one session cannot interleave their history entries.
// A failed downstream call leaves the exchange without an assistant turn.
type exchange struct {
	user      domain.ChatTurn
	assistant *domain.ChatTurn
}

// ExchangeRef lets the caller attach the assistant's reply to the user turn
// it belongs to after the downstream call returns.
type ExchangeRef struct {
	sess *session
	ex   *exchange
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIdleTTL sets the sliding idle expiry for sessions.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Store) { s.idleTTL = ttl }
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a session store. When sweepInterval is positive a
// janitor goroutine evicts idle sessions until Close is called.
func NewStore(sweepInterval time.Duration, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		idleTTL:  time.Hour,
		now:      time.Now,
		logger:   slog.Default(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if sweepInterval > 0 {
		go s.janitor(sweepInterval)
	}
	return s
}

// Close stops the expiry janitor.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Sweep evicts sessions idle for longer than the store's TTL and returns
// how many were removed. Expiry is sliding: any read or write refreshes a
// session's last-seen time.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastSeen)
		sess.mu.Unlock()
		if idle >= s.idleTTL {
			delete(s.sessions, id)
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Info("evicted idle sessions", slog.Int("count", evicted))
	}
	return evicted
}

// getOrCreate returns the session for id, creating an empty one when the id
// is unknown. Creation is guarded by the same lock as lookup so two
// concurrent first requests converge on one session.
func (s *Store) getOrCreate(id string) *session {
	s.mu.RLock()
	sess, exists := s.sessions[id]
	s.mu.RUnlock()

	if exists {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, exists := s.sessions[id]; exists {
		return sess
	}

	sess = &session{
		docSet:   make(map[string]struct{}),
		lastSeen: s.now(),
	}
	s.sessions[id] = sess
	return sess
}

// BeginExchange records the user's turn immediately and returns a reference
// for attaching the assistant's reply. The user turn stays in history even
// if the downstream call later fails.
func (s *Store) BeginExchange(id string, user domain.ChatTurn) *ExchangeRef {
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	ex := &exchange{user: user}
	sess.exchanges = append(sess.exchanges, ex)
	sess.lastSeen = s.now()

	return &ExchangeRef{sess: sess, ex: ex, now: s.now}
}

// Complete attaches the assistant turn to its exchange. The turn lands
// directly after its own user turn regardless of the order in which
// concurrent downstream calls return.
func (r *ExchangeRef) Complete(assistant domain.ChatTurn) {
	r.sess.mu.Lock()
	defer r.sess.mu.Unlock()

	if assistant.CreatedAt.IsZero() {
		assistant.CreatedAt = r.now()
	}
	turn := assistant
	r.ex.assistant = &turn
	r.sess.lastSeen = r.now()
}

// History returns a flattened copy of the session's conversation, each user
// turn followed by its assistant turn when one arrived.
func (s *Store) History(id string) []domain.ChatTurn {
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.lastSeen = s.now()
	turns := make([]domain.ChatTurn, 0, len(sess.exchanges)*2)
	for _, ex := range sess.exchanges {
		turns = append(turns, ex.user)
		if ex.assistant != nil {
			turns = append(turns, *ex.assistant)
		}
	}
	return turns
}

// AddDocuments associates document ids with the session, ignoring
// duplicates and preserving first-seen order.
func (s *Store) AddDocuments(id string, docIDs ...string) {
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, docID := range docIDs {
		if docID == "" {
			continue
		}
		if _, seen := sess.docSet[docID]; seen {
			continue
		}
		sess.docSet[docID] = struct{}{}
		sess.docIDs = append(sess.docIDs, docID)
	}
	sess.lastSeen = s.now()
}

// Documents returns a copy of the document ids associated with the session.
func (s *Store) Documents(id string) []string {
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.lastSeen = s.now()
	docs := make([]string, len(sess.docIDs))
	copy(docs, sess.docIDs)
	return docs
}

// Clear empties the session's conversation history. Document associations
// survive: clearing history is a conversational reset, not a document
// deletion.
func (s *Store) Clear(id string) {
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.exchanges = nil
	sess.lastSeen = s.now()
}

// Len reports how many sessions are live.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
