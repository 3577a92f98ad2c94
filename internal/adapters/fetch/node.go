package fetch

import (
	"context"
	"io"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/unibuild/internal/adapters/detector"
	"go.trai.ch/unibuild/internal/core/ports"
)

// NodeID is the unique identifier for the fetcher Graft node.
const NodeID graft.ID = "adapter.fetcher"

func init() {
	graft.Register(graft.Node[ports.Fetcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{detector.NodeID},
		Run: func(ctx context.Context) (ports.Fetcher, error) {
			mode, err := graft.Dep[detector.OutputMode](ctx)
			if err != nil {
				return nil, err
			}
			var progress io.Writer = io.Discard
			if mode == detector.ModeInteractive {
				progress = os.Stderr
			}
			return New(WithProgress(progress)), nil
		},
	})
}
