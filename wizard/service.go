package wizard

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"disputeai/evidence"
)

// ErrBusy signals that another request for the same session is in flight.
var ErrBusy = errors.New("wizard: session is busy")

// Service loads a session, runs one controller step and saves the result.
// At most one step runs per session at a time.
type Service struct {
	controller *Controller
	store      Store
	logger     *zap.Logger
	newID      func() string

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock guards one session. refs counts the callers holding or
// attempting the lock; the entry is dropped when it reaches zero.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService builds a service over controller and store. A nil logger
// disables logging.
func NewService(controller *Controller, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		controller: controller,
		store:      store,
		logger:     logger,
		newID:      uuid.NewString,
		locks:      make(map[string]*sessionLock),
	}
}

// WithIDGenerator overrides how new session ids are minted.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.newID = gen
	return s
}

// Start creates and stores a new session.
func (s *Service) Start(ctx context.Context) (*Session, error) {
	sess := s.controller.Start(s.newID())
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Debug("wizard session started", zap.String("session_id", sess.ID))
	return sess, nil
}

// Get loads a session without locking it.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// SendMessage runs one conversational turn on the stored session.
func (s *Service) SendMessage(ctx context.Context, id, identity, text string) (*Session, Outcome, error) {
	var out Outcome
	sess, err := s.run(ctx, id, func(sess *Session) error {
		var err error
		out, err = s.controller.SendMessage(ctx, sess, identity, text)
		return err
	})
	return sess, out, err
}

// AddEvidence uploads files into the stored session.
func (s *Service) AddEvidence(ctx context.Context, id string, files []evidence.File, meta evidence.Meta) (*Session, []evidence.Outcome, error) {
	var outcomes []evidence.Outcome
	sess, err := s.run(ctx, id, func(sess *Session) error {
		var err error
		outcomes, err = s.controller.AddEvidence(ctx, sess, files, meta)
		return err
	})
	return sess, outcomes, err
}

// ConfirmEvidence ends the upload phase of the stored session.
func (s *Service) ConfirmEvidence(ctx context.Context, id, identity string) (*Session, Outcome, error) {
	var out Outcome
	sess, err := s.run(ctx, id, func(sess *Session) error {
		var err error
		out, err = s.controller.ConfirmEvidence(ctx, sess, identity)
		return err
	})
	return sess, out, err
}

func (s *Service) run(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	release, ok := s.acquire(id)
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) acquire(id string) (func(), bool) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	if !l.mu.TryLock() {
		s.unref(id, l)
		return nil, false
	}
	return func() {
		l.mu.Unlock()
		s.unref(id, l)
	}, true
}

func (s *Service) unref(id string, l *sessionLock) {
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
	s.mu.Unlock()
}

func (s *Service) lockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
