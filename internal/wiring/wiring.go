// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/unibuild/internal/adapters/archive"
	_ "go.trai.ch/unibuild/internal/adapters/cas"
	_ "go.trai.ch/unibuild/internal/adapters/config"
	_ "go.trai.ch/unibuild/internal/adapters/detector"
	_ "go.trai.ch/unibuild/internal/adapters/fetch"
	_ "go.trai.ch/unibuild/internal/adapters/fs"
	_ "go.trai.ch/unibuild/internal/adapters/git"
	_ "go.trai.ch/unibuild/internal/adapters/logger"
	_ "go.trai.ch/unibuild/internal/adapters/settings"
	_ "go.trai.ch/unibuild/internal/adapters/shell"
	// Register app nodes.
	_ "go.trai.ch/unibuild/internal/app"
)
