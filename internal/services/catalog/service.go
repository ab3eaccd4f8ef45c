// Package catalog implements the product and inventory service.
package catalog

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/nextcart/platform/internal/domain/product"
	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/storage"
)

// Dependencies are the typed constructor dependencies of the service.
type Dependencies struct {
	Products storage.ProductStore
	Search   storage.SearchIndex
	Log      *logging.Logger
}

// Service manages the product catalogue and stock levels.
type Service struct {
	products storage.ProductStore
	search   storage.SearchIndex
	log      *logging.Logger
}

// New wires the service. Every dependency is required.
func New(deps Dependencies) (*Service, error) {
	if deps.Products == nil {
		return nil, apperrors.Internal("catalog service: product store is required", nil)
	}
	if deps.Search == nil {
		return nil, apperrors.Internal("catalog service: search index is required", nil)
	}
	if deps.Log == nil {
		deps.Log = logging.NewDefault("catalog-service")
	}
	return &Service{products: deps.Products, search: deps.Search, log: deps.Log}, nil
}

// CreateInput is the payload for Create.
type CreateInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Stock       int      `json:"stock"`
	Tags        []string `json:"tags"`
}

// Create persists a product and mirrors it into the search index.
func (s *Service) Create(ctx context.Context, input CreateInput) (domain.Product, error) {
	var fields []string
	if strings.TrimSpace(input.Name) == "" {
		fields = append(fields, "name")
	}
	if input.PriceCents <= 0 {
		fields = append(fields, "price_cents")
	}
	if input.Stock < 0 {
		fields = append(fields, "stock")
	}
	if len(fields) > 0 {
		return domain.Product{}, apperrors.ValidationFields(fields)
	}

	created, err := s.products.CreateProduct(ctx, domain.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		PriceCents:  input.PriceCents,
		Stock:       input.Stock,
		Tags:        input.Tags,
	})
	if err != nil {
		return domain.Product{}, apperrors.Dependency("documentStore", err)
	}

	// Index failure must not lose the product; search lags until reindex.
	if err := s.search.IndexProduct(ctx, created); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("product_id", created.ID).Warn("index product failed")
	}
	return created, nil
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if err == storage.ErrNotFound {
		return domain.Product{}, apperrors.NotFound("product")
	}
	if err != nil {
		return domain.Product{}, apperrors.Dependency("documentStore", err)
	}
	return p, nil
}

// List returns a page of products.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	out, err := s.products.ListProducts(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.Dependency("documentStore", err)
	}
	return out, nil
}

// Search queries the search index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.ValidationFields([]string{"q"})
	}
	out, err := s.search.SearchProducts(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Dependency("searchIndex", err)
	}
	return out, nil
}

// Line pairs a product with a requested quantity.
type Line struct {
	ProductID string
	Quantity  int
}

// CheckAvailability verifies stock for every line and returns the priced
// products keyed by id.
func (s *Service) CheckAvailability(ctx context.Context, lines []Line) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(lines))
	for _, line := range lines {
		p, err := s.Get(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < line.Quantity {
			return nil, apperrors.Validation(fmt.Sprintf("insufficient inventory for product %s", p.Name)).
				WithDetails("product_id", p.ID).
				WithDetails("available", p.Stock)
		}
		out[p.ID] = p
	}
	return out, nil
}

// DecrementStock reduces stock for every line. Callers must have checked
// availability first; a line that raced to zero fails the whole decrement.
func (s *Service) DecrementStock(ctx context.Context, lines []Line) error {
	for _, line := range lines {
		p, err := s.Get(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if p.Stock < line.Quantity {
			return apperrors.Validation(fmt.Sprintf("insufficient inventory for product %s", p.Name))
		}
		p.Stock -= line.Quantity
		if _, err := s.products.UpdateProduct(ctx, p); err != nil {
			return apperrors.Dependency("documentStore", err)
		}
	}
	return nil
}
