package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/unibuild/internal/core/ports"
)

// NodeID is the unique identifier for the receipt store Graft node.
const NodeID graft.ID = "adapter.receipt_store"

func init() {
	graft.Register(graft.Node[ports.ReceiptStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ReceiptStore, error) {
			return NewStore(), nil
		},
	})
}
