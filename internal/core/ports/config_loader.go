package ports

import "go.trai.ch/unibuild/internal/core/domain"

// CatalogLoader loads the target catalog.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type CatalogLoader interface {
	// Load returns the builtin catalog overlaid with the project catalog found under root.
	// An empty path selects the default project catalog file.
	Load(root, path string) (*domain.Catalog, error)
}

// SettingsLoader loads run settings.
type SettingsLoader interface {
	// Load discovers the project root from cwd and returns its settings.
	Load(cwd string) (*domain.Settings, error)
}
