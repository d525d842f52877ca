package items

import (
	"context"
	"strconv"

	"github.com/kbukum/dbsnap/database"
	"github.com/kbukum/dbsnap/database/query"
	"github.com/kbukum/dbsnap/errors"
)

const resource = "item"

var listQuery = query.Config{
	SearchFields:      []string{"name"},
	AllowedSortFields: []string{"id", "name"},
	DefaultSort:       "id",
}

// Repository reads and writes items.
type Repository struct {
	db *database.DB
}

// NewRepository returns a repository on db.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an item and returns it with its assigned ID.
func (r *Repository) Create(ctx context.Context, name string) (*Item, error) {
	it := &Item{Name: name}
	if err := r.db.WithContext(ctx).Create(it).Error; err != nil {
		return nil, database.FromDatabase(err, resource)
	}
	return it, nil
}

// Get returns the item with id.
func (r *Repository) Get(ctx context.Context, id int64) (*Item, error) {
	var it Item
	if err := r.db.WithContext(ctx).First(&it, id).Error; err != nil {
		if database.IsNotFoundError(err) {
			return nil, errors.NotFound(resource, strconv.FormatInt(id, 10))
		}
		return nil, database.FromDatabase(err, resource)
	}
	return &it, nil
}

// List returns one page of items.
func (r *Repository) List(ctx context.Context, params query.Params) (*query.Result[Item], error) {
	res, err := query.Apply[Item](r.db.WithContext(ctx).Model(&Item{}), params, listQuery)
	if err != nil {
		return nil, database.FromDatabase(err, resource)
	}
	return res, nil
}
