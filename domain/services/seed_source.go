package services

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"rafflepool/domain/entities"
	"rafflepool/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// cryptoSeedSource mixes operating system entropy with the ledger address and draw count.
// The operator process still chooses when to draw, so this is not a commit-reveal scheme.
type cryptoSeedSource struct{}

// NewCryptoSeedSource creates the default seed source
func NewCryptoSeedSource() interfaces.SeedSource {
	return cryptoSeedSource{}
}

// Seed returns keccak256(entropy || ledger address || draw count)
func (cryptoSeedSource) Seed(_ context.Context, ledger *entities.Ledger) (common.Hash, error) {
	entropy := make([]byte, 32)
	if _, err := rand.Read(entropy); err != nil {
		return common.Hash{}, fmt.Errorf("failed to read entropy: %w", err)
	}

	var drawCount [8]byte
	binary.BigEndian.PutUint64(drawCount[:], uint64(ledger.DrawCount))

	return crypto.Keccak256Hash(entropy, ledger.Address.Bytes(), drawCount[:]), nil
}

// fixedSeedSource always returns the same seed, for replaying draws and simulations
type fixedSeedSource struct {
	seed common.Hash
}

// NewFixedSeedSource creates a seed source that always returns seed
func NewFixedSeedSource(seed common.Hash) interfaces.SeedSource {
	return fixedSeedSource{seed: seed}
}

func (s fixedSeedSource) Seed(context.Context, *entities.Ledger) (common.Hash, error) {
	return s.seed, nil
}
