package importer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Service keeps the open import sessions of all users and allows at most
// one commit in flight per user.
type Service struct {
	mu         sync.Mutex
	store      Store
	sessions   map[string]*Session
	committing map[string]string // user ID -> session ID
	log        zerolog.Logger
}

// NewService creates a Service committing into store.
func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		sessions:   make(map[string]*Session),
		committing: make(map[string]string),
		log:        log,
	}
}

// Store returns the store sessions commit into.
func (s *Service) Store() Store { return s.store }

// Start opens a new session in the Upload state.
func (s *Service) Start(opts SessionOptions) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.committing[opts.UserID]; busy {
		return nil, ErrImportInProgress
	}
	sess := NewSession(s.store, opts)
	s.sessions[sess.ID()] = sess
	s.log.Debug().Str("session_id", sess.ID()).Str("user_id", opts.UserID).Msg("import session started")
	return sess, nil
}

// Get returns the session with the given ID, provided it belongs to userID.
func (s *Service) Get(userID, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Discard forgets a session. A session that is committing cannot be discarded.
func (s *Service) Discard(userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID() != userID {
		return ErrSessionNotFound
	}
	if s.committing[userID] == sessionID {
		return ErrBusy
	}
	delete(s.sessions, sessionID)
	return nil
}

// Commit commits a session, refusing while another commit for the same
// user is running. The session is forgotten once it reaches a terminal
// state; its outcome is kept by the store's batch history.
func (s *Service) Commit(ctx context.Context, userID, sessionID string) (*Summary, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID() != userID {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if _, busy := s.committing[userID]; busy {
		s.mu.Unlock()
		return nil, ErrImportInProgress
	}
	s.committing[userID] = sessionID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.committing, userID)
		if sess.State().Terminal() {
			delete(s.sessions, sessionID)
		}
		s.mu.Unlock()
	}()
	return sess.Commit(ctx)
}
