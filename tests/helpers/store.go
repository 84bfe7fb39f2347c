package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/xiaot623/treeleaf/internal/domain"
	store "github.com/xiaot623/treeleaf/internal/repository"
)

func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedProduct stores an active product with the given price in cents.
func SeedProduct(t *testing.T, s *store.SQLiteStore, name string, price int64) *domain.Product {
	t.Helper()

	p := &domain.Product{Name: name, Price: price, IsActive: true, CreatedAt: time.Now().UTC()}
	if err := s.UpsertProduct(context.Background(), p); err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return p
}

// SeedUser stores a user with the given role.
func SeedUser(t *testing.T, s *store.SQLiteStore, id int64, role domain.Role) *domain.User {
	t.Helper()

	u, err := s.GetOrCreateUser(context.Background(), id, "player", role)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}
