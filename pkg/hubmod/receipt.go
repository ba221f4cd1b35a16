// SPDX-License-Identifier: MPL-2.0

package hubmod

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ReceiptName is the install receipt written into a module directory after
// a successful install. It records provenance so list/info never re-query
// the registry.
const ReceiptName = ".modhub.receipt.toml"

// Receipt records how and when a module was installed.
type Receipt struct {
	Name           string    `toml:"name"`
	Version        string    `toml:"version"`
	Kind           string    `toml:"kind"`
	InstallSource  string    `toml:"install_source"`
	InstalledAt    time.Time `toml:"installed_at"`
	ManagerVersion string    `toml:"manager_version"`
}

// WriteReceipt writes the receipt into dir.
func WriteReceipt(dir string, r Receipt) error {
	data, err := toml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}

	path := filepath.Join(dir, ReceiptName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write receipt at %s: %w", path, err)
	}
	return nil
}

// ReadReceipt reads the receipt from dir. Returns os.ErrNotExist (wrapped)
// when no receipt is present; pre-receipt installs are still valid modules.
func ReadReceipt(dir string) (*Receipt, error) {
	path := filepath.Join(dir, ReceiptName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt at %s: %w", path, err)
	}

	var r Receipt
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse receipt at %s: %w", path, err)
	}
	return &r, nil
}
