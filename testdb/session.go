package testdb

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"

	"github.com/kbukum/dbsnap/database"
	"github.com/kbukum/dbsnap/engine"
	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/logger"
)

// ErrReleased is returned by Gorm once the session has been released.
var ErrReleased = stderrors.New("testdb: session released")

// Session is one test's view of a freshly restored database. It is not
// shared between tests.
type Session struct {
	lease *engine.Lease
	db    *sql.DB
	conn  *sql.Conn
	log   *logger.Logger

	mu       sync.Mutex
	gorm     *database.DB
	released bool

	releaseOnce sync.Once
	releaseErr  error
}

// DB returns the session's connection pool.
func (s *Session) DB() *sql.DB { return s.db }

// Conn returns the session's dedicated connection.
func (s *Session) Conn() *sql.Conn { return s.conn }

// Instance returns the restored instance.
func (s *Session) Instance() *engine.Instance { return s.lease.Instance() }

// Gorm returns a GORM handle over the session pool. It is created on first
// use and does not own the pool.
func (s *Session) Gorm() (*database.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrReleased
	}
	if s.gorm == nil {
		g, err := database.Wrap(s.db, s.Instance().Backend, s.log)
		if err != nil {
			return nil, err
		}
		s.gorm = g
	}
	return s.gorm, nil
}

// Release closes the connection and pool, then releases the lease. Later
// calls return the first result.
func (s *Session) Release(ctx context.Context) error {
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		s.released = true
		g := s.gorm
		s.mu.Unlock()

		var errs []error
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		if g != nil {
			_ = g.Close()
		}
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.lease.Release(ctx); err != nil {
			errs = append(errs, err)
		}
		s.releaseErr = errors.Join(errs...)
		s.log.Debug("session released", logger.Fields(logger.FieldInstanceID, s.Instance().ID))
	})
	return s.releaseErr
}
