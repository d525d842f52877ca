package testdb

import (
	"context"
	"fmt"
	"testing"
)

// Seed inserts rows into table through the session's GORM handle. Each row
// maps column names to values.
func (s *Session) Seed(ctx context.Context, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	db, err := s.Gorm()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
			return fmt.Errorf("seed %s: %w", table, err)
		}
	}
	return nil
}

// MustSeed is Seed that fails the test on error.
func (s *Session) MustSeed(t testing.TB, table string, rows ...map[string]any) {
	t.Helper()
	if err := s.Seed(context.Background(), table, rows); err != nil {
		t.Fatalf("testdb: %v", err)
	}
}
