package items

import (
	"fmt"
	"os"
	"testing"

	"github.com/kbukum/dbsnap/config"
	"github.com/kbukum/dbsnap/schema"
	"github.com/kbukum/dbsnap/testdb"
)

var dbs *testdb.Manager

// TestMain runs the package against SQLite unless ENGINE selects another
// engine.
func TestMain(m *testing.M) {
	cfg, err := testdb.LoadConfig(config.WithDefaults(map[string]any{
		"engine": testdb.EngineSQLite,
	}))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctrl, err := testdb.Open(cfg, schema.Definition{Schema: Schema}, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	dbs = testdb.New(ctrl)
	os.Exit(testdb.Main(m, ctrl))
}
