package testdb

import (
	"os"
	"testing"

	"github.com/kbukum/dbsnap/engine"
	"github.com/kbukum/dbsnap/engine/sqlite"
	"github.com/kbukum/dbsnap/schema"
)

var itemsSchema = schema.Schema{Tables: []schema.Table{{
	Name: "items",
	Columns: []schema.Column{
		{Name: "id", Type: schema.TypeSerial, PrimaryKey: true},
		{Name: "name", Type: schema.TypeString, Length: 100},
	},
}}}

// shared is initialized once for the package by TestMain.
var shared *Manager

func newController(dir string) *engine.Controller {
	return engine.New(sqlite.New(sqlite.Config{Dir: dir}, nil), engine.Options{
		Source: schema.Definition{Schema: itemsSchema},
	})
}

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "testdb-")
	if err != nil {
		panic(err)
	}
	ctrl := newController(dir)
	shared = New(ctrl)

	code := Main(m, ctrl)
	_ = os.RemoveAll(dir)
	os.Exit(code)
}
