// Package cas implements the build receipt store, addressed by hashed target name.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.ReceiptStore using a file-per-target strategy
// under <root>/.unibuild/receipts.
type Store struct{}

// NewStore creates a new receipt store.
func NewStore() *Store {
	return &Store{}
}

// Get retrieves the receipt for a target. It returns nil, nil when the target was never built.
func (s *Store) Get(root, target string) (*domain.BuildReceipt, error) {
	filename := s.getFilename(root, target)
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrStoreReadFailed, err.Error()), "target", target)
	}

	var receipt domain.BuildReceipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrStoreUnmarshalFailed, err.Error()), "target", target)
	}

	return &receipt, nil
}

// Put stores the receipt, replacing any previous one for the same target.
func (s *Store) Put(root string, receipt domain.BuildReceipt) error {
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return zerr.Wrap(domain.ErrStoreMarshalFailed, err.Error())
	}

	filename := s.getFilename(root, receipt.Target)
	if err := os.MkdirAll(filepath.Dir(filename), domain.DirPerm); err != nil {
		return zerr.Wrap(domain.ErrStoreCreateFailed, err.Error())
	}

	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.Wrap(domain.ErrStoreWriteFailed, err.Error())
	}
	if err := os.Rename(tmp, filename); err != nil {
		_ = os.Remove(tmp)
		return zerr.Wrap(domain.ErrStoreWriteFailed, err.Error())
	}

	return nil
}

func (s *Store) getFilename(root, target string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(target)))
	return filepath.Join(root, domain.DefaultReceiptsPath(), hex.EncodeToString(hash[:])+".json")
}
