// Package database wraps GORM for consumers of test databases and for the
// items service.
//
// A DB either owns its connection pool (Open, Component) or borrows one
// that belongs to someone else (Wrap). A borrowed pool is left open by
// Close; testdb sessions use Wrap so the session stays in charge of its
// connections.
//
//	sess := mgr.T(t)
//	db, err := database.Wrap(sess.DB(), sess.Instance().Backend, log)
//
// Database errors are translated into errors.AppError values with
// FromDatabase.
package database
