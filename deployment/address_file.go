package deployment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// DefaultAddressFile is where deploy tooling and the web client look for the ledger address
const DefaultAddressFile = "ProxyContractAddress.txt"

// ErrInvalidAddressFile is returned when an address file does not hold a single hex address
var ErrInvalidAddressFile = errors.New("address file does not contain a valid address")

// WriteAddressFiles writes address as plain text to every path, creating parent
// directories as needed. Each file is replaced atomically.
func WriteAddressFiles(address common.Address, paths []string) error {
	if len(paths) == 0 {
		paths = []string{DefaultAddressFile}
	}
	for _, path := range paths {
		if err := writeAddressFile(address, path); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"address": address.Hex(),
			"path":    path,
		}).Info("Wrote ledger address file")
	}
	return nil
}

func writeAddressFile(address common.Address, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".address-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(address.Hex()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadAddressFile reads the ledger address from path. Surrounding whitespace is ignored.
func ReadAddressFile(path string) (common.Address, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read address file: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if !common.IsHexAddress(text) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrInvalidAddressFile, path)
	}
	return common.HexToAddress(text), nil
}
