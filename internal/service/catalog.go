package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"fz-pos-api/internal/cache"
	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/model"
)

// CatalogBackend is the part of the admin backend the catalog service uses.
type CatalogBackend interface {
	SearchProducts(ctx context.Context, query string) ([]model.CatalogProduct, error)
	GenerateQR(ctx context.Context) (int, error)
}

// CatalogService serves the passive product grid. Scans never go through it
// so stock seen at scan time is always fresh.
type CatalogService struct {
	backend CatalogBackend
	cache   cache.Cache
	ttl     time.Duration
}

// NewCatalogService creates a catalog service. c may be nil to disable
// caching.
func NewCatalogService(backend CatalogBackend, c cache.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{backend: backend, cache: c, ttl: ttl}
}

func browseKey(query string) string {
	return "browse:" + strings.ToLower(strings.TrimSpace(query))
}

// Browse returns the product grid for query. An empty query returns the
// backend's default listing.
func (s *CatalogService) Browse(ctx context.Context, query string) ([]model.CatalogProduct, error) {
	query = strings.TrimSpace(query)
	if s.cache == nil || s.ttl <= 0 {
		return s.backend.SearchProducts(ctx, query)
	}

	raw, err := s.cache.GetOrSet(ctx, browseKey(query), s.ttl, func() ([]byte, error) {
		products, err := s.backend.SearchProducts(ctx, query)
		if err != nil {
			return nil, err
		}
		return json.Marshal(products)
	})
	if err != nil {
		return nil, err
	}

	var products []model.CatalogProduct
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GenerateQR assigns QR codes to products missing one and drops the cached
// grid.
func (s *CatalogService) GenerateQR(ctx context.Context) (int, error) {
	n, err := s.backend.GenerateQR(ctx)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Clear(ctx); err != nil {
			logger.Log.Warnf("[CatalogService] Failed to clear cache: %v", err)
		}
	}
	logger.Log.Infof("[CatalogService] Generated QR codes for %d products", n)
	return n, nil
}
