// Package sessions holds the in-memory registry of agent sessions.
package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"orca-agent-backend/logging"
	"orca-agent-backend/types"
)

// ErrSessionNotFound is returned for unknown session ids
var ErrSessionNotFound = errors.New("session not found")

// Store is a process-wide, unbounded session registry. Sessions are kept
// for the lifetime of the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string

	now func() time.Time
	log *logrus.Entry
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
		log:      logging.NewLogger("sessions"),
	}
}

// Create registers a new pending session with a fresh id
func (s *Store) Create(agent types.AgentKind, task string, workflow types.Workflow, cfg types.SessionConfig) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	sess := &Session{
		ID:        id,
		Agent:     agent,
		Task:      task,
		Workflow:  workflow,
		Config:    cfg,
		CreatedAt: s.now(),
		ctx:       ctx,
		cancel:    cancel,
		now:       s.now,
		log: s.log.WithFields(logrus.Fields{
			"session_id": id,
			"agent":      agent,
		}),
		status: types.StatusPending,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.order = append(s.order, id)
	s.mu.Unlock()

	sess.log.WithField("workflow", workflow).Info("Session created")
	return sess
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// List returns every session in creation order
func (s *Store) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id])
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ActiveCount counts sessions that are not yet terminal
func (s *Store) ActiveCount() int {
	active := 0
	for _, sess := range s.List() {
		if !sess.Status().IsTerminal() {
			active++
		}
	}
	return active
}

// Stop moves a live session to stopped and terminates its process.
// Stopping a finished session is accepted and leaves it unchanged.
func (s *Store) Stop(id string) (*Session, error) {
	sess, ok := s.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.stop()
	return sess, nil
}

// Remove deletes a session whose work was never scheduled
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.cancel()
	delete(s.sessions, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
