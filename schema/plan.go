package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kbukum/dbsnap/errors"
)

// Plan computes the ordered statements that turn current into desired.
// Tables missing from desired are dropped first (reverse declaration order),
// then new tables are created and new columns added in desired's declaration
// order. A column whose definition changed is a conflict, not an alteration.
func Plan(current, desired Schema, d Dialect) ([]string, error) {
	if err := current.Validate(); err != nil {
		return nil, err
	}
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	var stmts []string
	for i := len(current.Tables) - 1; i >= 0; i-- {
		name := current.Tables[i].Name
		if _, ok := desired.Table(name); !ok {
			stmts = append(stmts, d.DropTableSQL(name))
		}
	}

	for _, want := range desired.Tables {
		have, ok := current.Table(want.Name)
		if !ok {
			stmt, err := d.CreateTableSQL(want)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
			continue
		}

		for _, hc := range have.Columns {
			if _, ok := want.Column(hc.Name); !ok {
				return nil, errors.Schema(fmt.Sprintf("column %s.%s exists but is not declared", want.Name, hc.Name), nil)
			}
		}
		for _, wc := range want.Columns {
			hc, ok := have.Column(wc.Name)
			if ok {
				if hc != wc {
					return nil, errors.Schema(fmt.Sprintf("column %s.%s conflicts with the existing definition", want.Name, wc.Name), nil)
				}
				continue
			}
			stmt, err := d.AddColumnSQL(want, wc)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

// Fingerprint hashes a statement list. Equal fingerprints mean equal DDL.
func Fingerprint(stmts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(stmts, ";\n")))
	return hex.EncodeToString(sum[:])
}
