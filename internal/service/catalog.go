package service

import (
	"context"
	"strings"

	"github.com/xiaot623/treeleaf/internal/apperrors"
	"github.com/xiaot623/treeleaf/internal/domain"
)

// UpsertProduct creates or updates a catalog product.
func (s *Service) UpsertProduct(ctx context.Context, req domain.UpsertProductRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "name is required")
	}
	if req.Price < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "price must not be negative")
	}
	p := &domain.Product{ID: req.ProductID, Name: name, Price: req.Price, IsActive: true}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := s.store.UpsertProduct(ctx, p); err != nil {
		return nil, storageErr("failed to save product", err)
	}
	return p, nil
}

// ListProducts returns the catalog.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, storageErr("failed to list products", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// EnsureIdentity stores the user behind an authenticated request.
func (s *Service) EnsureIdentity(ctx context.Context, userID int64, name string, role domain.Role) (*domain.User, error) {
	u, err := s.store.GetOrCreateUser(ctx, userID, name, role)
	if err != nil {
		return nil, storageErr("failed to store user", err)
	}
	return u, nil
}

// Ready reports whether storage is reachable.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return storageErr("database unavailable", err)
	}
	return nil
}
