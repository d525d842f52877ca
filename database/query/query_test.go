package query

import (
	"math"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type row struct {
	ID   int64
	Name string
}

func (row) TableName() string { return "fruits" }

func seeded(t *testing.T, names ...string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&row{}))
	for _, n := range names {
		require.NoError(t, db.Create(&row{Name: n}).Error)
	}
	return db
}

func TestParseFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/items?page=2&limit=500&sortBy=name&order=DESC&search=+abc+", nil)
	p := ParseFromRequest(r)

	assert.Equal(t, 2, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, "name", p.SortBy)
	assert.Equal(t, "desc", p.SortOrder)
	assert.Equal(t, "abc", p.Search)

	p = ParseFromRequest(httptest.NewRequest("GET", "/items?page=-3&pageSize=x", nil))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.PageSize)
	assert.Equal(t, "asc", p.SortOrder)
}

func TestParseFromRequest_HugePage(t *testing.T) {
	p := ParseFromRequest(httptest.NewRequest("GET", "/items?page=9223372036854775807&pageSize=100", nil))
	assert.Equal(t, MaxPage, p.Page)
	assert.Positive(t, (p.Page-1)*p.PageSize)
}

func TestApply_PageBeyondEnd(t *testing.T) {
	db := seeded(t, "a", "b", "c")

	res, err := Apply[row](db.Model(&row{}), Params{Page: math.MaxInt, PageSize: math.MaxInt}, Config{})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.Equal(t, MaxPage, res.Pagination.Page)
	assert.Equal(t, MaxPageSize, res.Pagination.PageSize)
	assert.Equal(t, 3, res.Pagination.Total)
}

func TestApply_Pagination(t *testing.T) {
	db := seeded(t, "a", "b", "c", "d", "e")
	cfg := Config{AllowedSortFields: []string{"id", "name"}, DefaultSort: "id"}

	res, err := Apply[row](db.Model(&row{}), Params{Page: 2, PageSize: 2}, cfg)
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 2, PageSize: 2, Total: 5, TotalPages: 3}, res.Pagination)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "c", res.Data[0].Name)
	assert.Equal(t, "d", res.Data[1].Name)
}

func TestApply_SortAndSearch(t *testing.T) {
	db := seeded(t, "apple", "Banana", "cherry", "pineapple")
	cfg := Config{SearchFields: []string{"name"}, AllowedSortFields: []string{"name"}, DefaultSort: "id"}

	res, err := Apply[row](db.Model(&row{}), Params{Page: 1, PageSize: 10, Search: "APPLE", SortBy: "name", SortOrder: "desc"}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "pineapple", res.Data[0].Name)
	assert.Equal(t, "apple", res.Data[1].Name)

	// Unknown sort fields fall back to the default order.
	res, err = Apply[row](db.Model(&row{}), Params{Page: 1, PageSize: 10, SortBy: "id; DROP TABLE fruits"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Pagination.Total)
	assert.Equal(t, "apple", res.Data[0].Name)
}

func TestApply_Empty(t *testing.T) {
	db := seeded(t)
	res, err := Apply[row](db.Model(&row{}), Params{}, Config{})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.NotNil(t, res.Data)
	assert.Equal(t, 1, res.Pagination.TotalPages)
}
