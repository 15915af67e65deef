package services

import (
	"context"
	"fmt"

	"rafflepool/domain/entities"
	"rafflepool/domain/interfaces"
)

// recordingSink delivers a payout to an optional recipient sink, then records it
type recordingSink struct {
	transfers interfaces.TransferRepository
	recipient interfaces.PaymentSink
}

// NewRecordingSink creates a payment sink that records every payout in the transfer history.
// recipient may be nil when payouts are settled by the transfer history alone.
func NewRecordingSink(transfers interfaces.TransferRepository, recipient interfaces.PaymentSink) interfaces.PaymentSink {
	return &recordingSink{
		transfers: transfers,
		recipient: recipient,
	}
}

func (s *recordingSink) Pay(ctx context.Context, transfer *entities.Transfer) error {
	if s.recipient != nil {
		if err := s.recipient.Pay(ctx, transfer); err != nil {
			return err
		}
	}
	if err := s.transfers.Record(ctx, transfer); err != nil {
		return fmt.Errorf("failed to record payout: %w", err)
	}
	return nil
}
