package testutil

import (
	"time"

	"rafflepool/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// CreateTestLedger creates an uninitialized ledger at the deployer's nonce-th address
func CreateTestLedger(deployer common.Address, nonce uint64) *entities.Ledger {
	now := time.Now()
	return &entities.Ledger{
		Address:       entities.DeriveLedgerAddress(deployer, nonce),
		Deployer:      deployer,
		DeployNonce:   nonce,
		SchemaVersion: entities.InitialSchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CreateInitializedTestLedger creates a ledger already bound to an operator and threshold
func CreateInitializedTestLedger(deployer common.Address, nonce uint64, operator common.Address, threshold int64) *entities.Ledger {
	ledger := CreateTestLedger(deployer, nonce)
	ledger.Operator = operator
	ledger.MinimumThreshold = threshold
	ledger.Initialized = true
	return ledger
}

// CreateTestParticipant creates a participant holding amount as both lifetime and current stake
func CreateTestParticipant(identity common.Address, rosterIndex, amount int64) *entities.Participant {
	return &entities.Participant{
		Identity:           identity,
		RosterIndex:        rosterIndex,
		TotalContributed:   amount,
		CurrentContributed: amount,
	}
}
