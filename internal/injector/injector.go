//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/app"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/config"
)

func InitializeNode(cfg config.Config) (*app.Node, func(), error) {
	wire.Build(app.ProviderSet)
	return nil, nil, nil
}
