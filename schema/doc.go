// Package schema turns a declarative table definition into the ordered DDL
// that brings an empty database to that shape, and applies it.
//
// The same definition always renders the same statements for a dialect, so
// a baseline built from it is reproducible and can be fingerprinted. Two
// sources are supported: Definition (tables described as data, in Go or
// YAML) and Migrations (versioned .up.sql files run through golang-migrate).
//
//	src := schema.Definition{Schema: schema.Schema{Tables: []schema.Table{{
//	    Name: "items",
//	    Columns: []schema.Column{
//	        {Name: "id", Type: schema.TypeSerial, PrimaryKey: true},
//	        {Name: "name", Type: schema.TypeString, Length: 100},
//	    },
//	}}}}
package schema
