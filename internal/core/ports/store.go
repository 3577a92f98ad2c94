package ports

import "go.trai.ch/unibuild/internal/core/domain"

// ReceiptStore defines the interface for storing and retrieving build receipts.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ReceiptStore interface {
	// Get retrieves the receipt for a given target name.
	// Returns nil, nil if not found.
	Get(root, target string) (*domain.BuildReceipt, error)

	// Put stores the receipt.
	Put(root string, receipt domain.BuildReceipt) error
}
