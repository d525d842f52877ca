// Package query parses list parameters from HTTP requests and applies them
// to GORM queries: pagination, sorting and free-text search.
package query

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps the row offset within 32 bits at any page size.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Params holds parsed query parameters.
type Params struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
	Search    string
}

// Config defines entity-specific query behavior.
type Config struct {
	SearchFields      []string
	AllowedSortFields []string
	DefaultSort       string
}

// Pagination metadata returned in paginated results.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Result is a paginated response.
type Result[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ParseFromRequest extracts page, pageSize (or limit), sortBy, order and
// search from the request's query string.
func ParseFromRequest(r *http.Request) Params {
	q := r.URL.Query()

	size := q.Get("pageSize")
	if size == "" {
		size = q.Get("limit")
	}
	return Params{
		Page:      clamp(intOrDefault(q.Get("page"), 1), 1, MaxPage),
		PageSize:  clamp(intOrDefault(size, DefaultPageSize), 1, MaxPageSize),
		SortBy:    q.Get("sortBy"),
		SortOrder: normalizeSortOrder(q.Get("order")),
		Search:    strings.TrimSpace(q.Get("search")),
	}
}

// Apply runs params against db and returns one page of T. Page and PageSize
// are clamped to the same bounds ParseFromRequest applies.
func Apply[T any](db *gorm.DB, params Params, config Config) (*Result[T], error) {
	if params.PageSize < 1 {
		params.PageSize = DefaultPageSize
	}
	params.PageSize = clamp(params.PageSize, 1, MaxPageSize)
	params.Page = clamp(params.Page, 1, MaxPage)

	q := db.Session(&gorm.Session{})
	if params.Search != "" && len(config.SearchFields) > 0 {
		q = applySearch(q, params.Search, config.SearchFields)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	q = applySort(q, params.SortBy, params.SortOrder, config)
	q = q.Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize)

	data := []T{}
	if err := q.Find(&data).Error; err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	totalPages := (int(total) + params.PageSize - 1) / params.PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return &Result[T]{
		Data: data,
		Pagination: Pagination{
			Page: params.Page, PageSize: params.PageSize,
			Total: int(total), TotalPages: totalPages,
		},
	}, nil
}

func applySearch(db *gorm.DB, search string, fields []string) *gorm.DB {
	pattern := "%" + strings.ToLower(search) + "%"
	conds := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		conds = append(conds, fmt.Sprintf("LOWER(%s) LIKE ?", f))
		args = append(args, pattern)
	}
	return db.Where(strings.Join(conds, " OR "), args...)
}

func applySort(db *gorm.DB, sortBy, sortOrder string, config Config) *gorm.DB {
	for _, f := range config.AllowedSortFields {
		if f == sortBy {
			if sortOrder == "desc" {
				return db.Order(f + " DESC")
			}
			return db.Order(f)
		}
	}
	if config.DefaultSort != "" {
		return db.Order(config.DefaultSort)
	}
	return db
}

func intOrDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func clamp(v, lower, upper int) int {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}

func normalizeSortOrder(s string) string {
	if strings.EqualFold(s, "desc") {
		return "desc"
	}
	return "asc"
}
