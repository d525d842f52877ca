package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kbukum/dbsnap/errors"
)

// ColumnType is a portable column type rendered per dialect.
type ColumnType string

const (
	TypeSerial    ColumnType = "serial"
	TypeBigSerial ColumnType = "bigserial"
	TypeInteger   ColumnType = "integer"
	TypeBigInt    ColumnType = "bigint"
	TypeString    ColumnType = "string" // bounded, requires Length
	TypeText      ColumnType = "text"
	TypeBoolean   ColumnType = "boolean"
	TypeFloat     ColumnType = "float"
	TypeTimestamp ColumnType = "timestamp"
	TypeUUID      ColumnType = "uuid"
	TypeJSON      ColumnType = "json"
	TypeBytes     ColumnType = "bytes"
)

var knownTypes = map[ColumnType]bool{
	TypeSerial: true, TypeBigSerial: true, TypeInteger: true, TypeBigInt: true,
	TypeString: true, TypeText: true, TypeBoolean: true, TypeFloat: true,
	TypeTimestamp: true, TypeUUID: true, TypeJSON: true, TypeBytes: true,
}

// IsSerial reports whether the type is an auto-incrementing integer.
func (t ColumnType) IsSerial() bool {
	return t == TypeSerial || t == TypeBigSerial
}

// Schema is the desired set of tables, in creation order.
type Schema struct {
	Tables []Table `yaml:"tables" json:"tables"`
}

// Table describes one table.
type Table struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []Column `yaml:"columns" json:"columns"`
}

// Column describes one column. Columns are NOT NULL unless Nullable is set.
type Column struct {
	Name       string     `yaml:"name" json:"name"`
	Type       ColumnType `yaml:"type" json:"type"`
	Length     int        `yaml:"length,omitempty" json:"length,omitempty"`
	Nullable   bool       `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	PrimaryKey bool       `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
}

// Table returns the named table.
func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the primary key columns in declaration order.
func (t Table) PrimaryKey() []Column {
	var pk []Column
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

// Validate checks names, types and lengths.
func (s Schema) Validate() error {
	tables := make(map[string]bool, len(s.Tables))
	for i, t := range s.Tables {
		if t.Name == "" {
			return errors.Schema(fmt.Sprintf("table %d has no name", i), nil)
		}
		if tables[t.Name] {
			return errors.Schema(fmt.Sprintf("table %q declared twice", t.Name), nil)
		}
		tables[t.Name] = true
		if err := t.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return errors.Schema(fmt.Sprintf("table %q has no columns", t.Name), nil)
	}
	cols := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		switch {
		case c.Name == "":
			return errors.Schema(fmt.Sprintf("table %q has a column without a name", t.Name), nil)
		case cols[c.Name]:
			return errors.Schema(fmt.Sprintf("column %s.%s declared twice", t.Name, c.Name), nil)
		case !knownTypes[c.Type]:
			return errors.Schema(fmt.Sprintf("column %s.%s has unknown type %q", t.Name, c.Name, c.Type), nil)
		case c.Type == TypeString && c.Length <= 0:
			return errors.Schema(fmt.Sprintf("column %s.%s: string requires a positive length", t.Name, c.Name), nil)
		case c.PrimaryKey && c.Nullable:
			return errors.Schema(fmt.Sprintf("column %s.%s: primary key cannot be nullable", t.Name, c.Name), nil)
		}
		cols[c.Name] = true
	}
	return nil
}

// Parse reads a YAML schema definition and validates it.
func Parse(r io.Reader) (Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Schema{}, errors.Schema("invalid definition", err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// LoadFile reads a YAML schema definition from path.
func LoadFile(path string) (Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return Schema{}, errors.Schema("cannot open definition", err).WithDetail("path", path)
	}
	defer f.Close()
	return Parse(f)
}
