package services

import (
	"context"
	"fmt"

	"rafflepool/domain"
	"rafflepool/domain/entities"
	"rafflepool/domain/events"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// PickWinners selects three distinct winners from the roster and pays out the pot.
// The pot is the winners' stakes plus everything unallocated, so losing participants
// keep their stakes for the next draw. All winner stakes are zeroed before any payout.
func (s *ledgerService) PickWinners(ctx context.Context, caller common.Address) (*entities.Draw, error) {
	ledger, err := s.lockLedger(ctx)
	if err != nil {
		return nil, err
	}

	if !ledger.IsOperator(caller) {
		return nil, domain.ErrUnauthorized
	}
	if ledger.ParticipantCount < entities.MinimumParticipants {
		return nil, domain.ErrInsufficientParticipants
	}

	seed, err := s.seedSource.Seed(ctx, ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to derive seed: %w", err)
	}

	indices, err := SelectWinners(seed, ledger.ParticipantCount, entities.WinnerCount)
	if err != nil {
		return nil, err
	}

	draw := &entities.Draw{
		LedgerAddress: s.address,
		Seed:          seed,
		RosterSize:    ledger.ParticipantCount,
	}

	winners := make([]*entities.Participant, entities.WinnerCount)
	pot := ledger.Unallocated
	for rank, index := range indices {
		participant, err := s.participantRepo.GetByRosterIndex(ctx, index)
		if err != nil {
			return nil, fmt.Errorf("failed to get participant: %w", err)
		}
		if participant == nil {
			return nil, fmt.Errorf("%w: roster index %d missing", domain.ErrLedgerInconsistent, index)
		}
		winners[rank] = participant
		draw.WinnerIndices[rank] = index
		draw.Winners[rank] = participant.Identity

		pot, err = entities.AddAmounts(pot, participant.CurrentContributed)
		if err != nil {
			return nil, err
		}
	}

	draw.Pot = pot
	draw.Amounts = entities.SplitPot(pot)

	// Effects
	for _, participant := range winners {
		participant.ClearStake()
		if err := s.participantRepo.Update(ctx, participant); err != nil {
			return nil, fmt.Errorf("failed to update winner: %w", err)
		}
	}
	if err := ledger.Debit(pot); err != nil {
		return nil, err
	}
	ledger.Unallocated = 0
	ledger.DrawCount++
	draw.Sequence = ledger.DrawCount

	if err := s.ledgerRepo.Update(ctx, ledger); err != nil {
		return nil, fmt.Errorf("failed to update ledger: %w", err)
	}
	if err := s.drawRepo.Create(ctx, draw); err != nil {
		return nil, fmt.Errorf("failed to record draw: %w", err)
	}

	// Interactions
	for rank, winner := range draw.Winners {
		payout := entities.NewPayout(s.address, winner, draw.Amounts[rank], entities.TransferReasonPrize)
		sequence := draw.Sequence
		payout.DrawSequence = &sequence
		if err := s.pay(ctx, payout); err != nil {
			return nil, err
		}
	}

	if err := s.emit(ctx, events.WinnersPickedEvent{
		LedgerAddress: s.address,
		Sequence:      draw.Sequence,
		Seed:          seed,
		Winners:       draw.Winners,
		Amounts:       draw.Amounts,
	}); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"ledger":   s.address.Hex(),
		"sequence": draw.Sequence,
		"pot":      pot,
		"winners":  []string{draw.Winners[0].Hex(), draw.Winners[1].Hex(), draw.Winners[2].Hex()},
		"amounts":  draw.Amounts,
	}).Info("Winners picked")

	return draw, nil
}
