package app

import (
	"github.com/google/wire"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/config"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/entity"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/factory"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/headless"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/registry"
)

// ProviderSet builds a Node from a config.Config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideRenderer,
	ProvideCatalog,
	ProvideFactory,
	ProvideRegistry,
	NewNode,
	wire.Bind(new(entity.Renderer), new(*headless.Renderer)),
)

// ProvideLogger builds the process logger. The cleanup flushes it.
func ProvideLogger(cfg config.Config) (log.Log, func(), error) {
	logger, err := log.New(cfg.Log.Logger())
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideRenderer(logger log.Log) *headless.Renderer {
	return headless.New(logger)
}

// ProvideCatalog loads the prefab catalog, or returns an empty one when no
// path is configured.
func ProvideCatalog(cfg config.Config) (*factory.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return factory.NewCatalog(), nil
	}
	return factory.LoadCatalogFile(cfg.Catalog.Path)
}

// ProvideFactory issues ids in the partition of the configured node ordinal.
func ProvideFactory(cfg config.Config, renderer entity.Renderer, catalog *factory.Catalog, logger log.Log) *factory.Factory {
	return factory.New(renderer, catalog, logger, factory.WithNode(cfg.Sync.Node))
}

func ProvideRegistry(cfg config.Config, logger log.Log) *registry.Registry {
	return registry.New(cfg.Sync.Shards, logger)
}
