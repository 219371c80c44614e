package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/lightfolio/server/internal/lightroom"
	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/observability"
	"github.com/lightfolio/server/internal/repository"
)

// CatalogService resolves the host-side catalog href. The catalog is looked
// up once, persisted, and then served from memory for the process lifetime.
type CatalogService struct {
	metadata repository.MetadataRepo
	host     *lightroom.Client

	mu     sync.Mutex
	cached *models.Catalog
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(metadata repository.MetadataRepo, host *lightroom.Client) *CatalogService {
	return &CatalogService{metadata: metadata, host: host}
}

// Href returns the catalog href, fetching it from the host on first use.
func (s *CatalogService) Href(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached.Href, nil
	}

	catalog, err := s.metadata.GetCatalog(ctx)
	if err != nil {
		return "", err
	}
	if catalog == nil {
		hostCatalog, err := s.host.Catalog(ctx, token)
		if err != nil {
			return "", fmt.Errorf("failed to look up catalog: %w", err)
		}
		catalog = &models.Catalog{Name: hostCatalog.Name, Href: hostCatalog.Href}
		if err := s.metadata.SetCatalog(ctx, catalog); err != nil {
			return "", err
		}
		observability.WithContext(ctx).WithField("catalog", catalog.Name).Info("catalog resolved")
	}

	s.cached = catalog
	return catalog.Href, nil
}
