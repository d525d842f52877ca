// Package items is a small HTTP API over an items table. It is the
// reference consumer of testdb: its tests run against restored databases.
package items

import (
	"github.com/kbukum/dbsnap/schema"
)

// MaxNameLength bounds Item.Name.
const MaxNameLength = 100

// Item is a row of the items table.
type Item struct {
	ID   int64  `json:"id" gorm:"primaryKey"`
	Name string `json:"name"`
}

// TableName maps Item to the items table.
func (Item) TableName() string { return "items" }

// Schema is the items table definition.
var Schema = schema.Schema{Tables: []schema.Table{{
	Name: "items",
	Columns: []schema.Column{
		{Name: "id", Type: schema.TypeSerial, PrimaryKey: true},
		{Name: "name", Type: schema.TypeString, Length: MaxNameLength},
	},
}}}

// CreateRequest is the body of POST /items.
type CreateRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}
