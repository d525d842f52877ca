package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kbukum/dbsnap/resilience"
)

// objectInUse is SQLSTATE 55006, raised when a database used as template or
// dropped still has sessions.
const objectInUse = "55006"

func ident(name string) string { return pgx.Identifier{name}.Sanitize() }

// buildDSN returns a URL connection string for database db.
func buildDSN(user, password, host string, port int, db string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// withDatabase returns dsn pointing at db instead of its own database.
func withDatabase(dsn, db string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	u.Path = "/" + db
	u.RawPath = ""
	return u.String(), nil
}

func ping(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.WithoutCancel(ctx)) //nolint:errcheck
	return conn.Ping(ctx)
}

// admin runs maintenance statements on a server-level connection.
type admin struct {
	conn *pgx.Conn
}

func connectAdmin(ctx context.Context, dsn string) (*admin, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect maintenance database: %w", err)
	}
	return &admin{conn: conn}, nil
}

func (a *admin) close(ctx context.Context) {
	_ = a.conn.Close(context.WithoutCancel(ctx))
}

// terminate ends every other session connected to db.
func (a *admin) terminate(ctx context.Context, db string) error {
	_, err := a.conn.Exec(ctx,
		`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`,
		db,
	)
	if err != nil {
		return fmt.Errorf("terminate sessions on %s: %w", db, err)
	}
	return nil
}

// exclusive runs stmt after terminating sessions on db, retrying while
// terminated sessions are still shutting down.
func (a *admin) exclusive(ctx context.Context, db, stmt string) error {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 10
	cfg.InitialBackoff = 50 * time.Millisecond
	cfg.RetryIf = isObjectInUse
	return resilience.RetryFunc(ctx, cfg, func(ctx context.Context) error {
		if err := a.terminate(ctx, db); err != nil {
			return err
		}
		_, err := a.conn.Exec(ctx, stmt)
		return err
	})
}

func (a *admin) createDatabase(ctx context.Context, db, owner string) error {
	_, err := a.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s OWNER %s", ident(db), ident(owner)))
	return err
}

// cloneDatabase creates dst as a copy of src.
func (a *admin) cloneDatabase(ctx context.Context, src, dst, owner string) error {
	return a.exclusive(ctx, src,
		fmt.Sprintf("CREATE DATABASE %s WITH TEMPLATE %s OWNER %s", ident(dst), ident(src), ident(owner)))
}

func (a *admin) dropDatabase(ctx context.Context, db string) error {
	return a.exclusive(ctx, db, fmt.Sprintf("DROP DATABASE IF EXISTS %s", ident(db)))
}

func isObjectInUse(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == objectInUse
}
