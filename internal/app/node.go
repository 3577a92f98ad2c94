package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/unibuild/internal/adapters/archive"  //nolint:depguard // Wired in app layer
	"go.trai.ch/unibuild/internal/adapters/cas"      //nolint:depguard // Wired in app layer
	"go.trai.ch/unibuild/internal/adapters/config"   //nolint:depguard // Wired in app layer
	"go.trai.ch/unibuild/internal/adapters/fetch"    //nolint:depguard // Wired in app layer
	"go.trai.ch/unibuild/internal/adapters/fs"       //nolint:depguard // Wired in app layer
	"go.trai.ch/unibuild/internal/adapters/git"      //nolint:depguard // Wired in app layer
	"go.trai.ch/unibuild/internal/adapters/logger"   //nolint:depguard // Wired in app layer
	"go.trai.ch/unibuild/internal/adapters/settings" //nolint:depguard // Wired in app layer
	"go.trai.ch/unibuild/internal/adapters/shell"    //nolint:depguard // Wired in app layer
	"go.trai.ch/unibuild/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			settings.NodeID,
			config.NodeID,
			shell.NodeID,
			fetch.NodeID,
			archive.NodeID,
			git.NodeID,
			fs.HasherNodeID,
			logger.NodeID,
			cas.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			settingsLoader, err := graft.Dep[ports.SettingsLoader](ctx)
			if err != nil {
				return nil, err
			}

			catalogLoader, err := graft.Dep[ports.CatalogLoader](ctx)
			if err != nil {
				return nil, err
			}

			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}

			fetcher, err := graft.Dep[ports.Fetcher](ctx)
			if err != nil {
				return nil, err
			}

			archiver, err := graft.Dep[ports.Archiver](ctx)
			if err != nil {
				return nil, err
			}

			vcs, err := graft.Dep[ports.VCS](ctx)
			if err != nil {
				return nil, err
			}

			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			receipts, err := graft.Dep[ports.ReceiptStore](ctx)
			if err != nil {
				return nil, err
			}

			return New(settingsLoader, catalogLoader, executor, fetcher, archiver, vcs, hasher, log, receipts), nil
		},
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{
				App:    app,
				Logger: log,
			}, nil
		},
	})
}
