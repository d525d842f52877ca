// Package testdb hands each test its own connection to a database restored
// from the baseline snapshot.
//
// A Controller is initialized once per test binary, usually from TestMain:
//
//	var dbs *testdb.Manager
//
//	func TestMain(m *testing.M) {
//	    cfg, err := testdb.LoadConfig()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    ctrl, err := testdb.Open(cfg, schema.Definition{Schema: appSchema}, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    dbs = testdb.New(ctrl)
//	    os.Exit(testdb.Main(m, ctrl))
//	}
//
//	func TestSomething(t *testing.T) {
//	    sess := dbs.T(t)
//	    _, err := sess.Conn().ExecContext(ctx, `INSERT INTO items (name) VALUES ('x')`)
//	    ...
//	}
//
// Each Session starts from the baseline. With the PostgreSQL backend,
// sessions are handed out one at a time; with SQLite every session has its
// own database file.
package testdb
