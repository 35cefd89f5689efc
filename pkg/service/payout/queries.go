package payout

import (
	"context"
	"time"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/google/uuid"
)

// Get returns a payout by ID.
func (s *Service) Get(ctx context.Context, payoutID uuid.UUID) (*ledger.Payout, error) {
	payouts, err := s.uow.PayoutRepository()
	if err != nil {
		return nil, err
	}
	return payouts.Get(ctx, payoutID)
}

// ListApprovedOlderThan returns approved payouts older than the given age.
// The reconciliation sweep feeds these back through Settle (or re-initiation)
// after re-checking provider status, so a provider timeout cannot leave a
// payout stuck in APPROVED indefinitely.
func (s *Service) ListApprovedOlderThan(ctx context.Context, age time.Duration) ([]*ledger.Payout, error) {
	payouts, err := s.uow.PayoutRepository()
	if err != nil {
		return nil, err
	}
	return payouts.ListByStatusOlderThan(ctx, ledger.PayoutApproved, time.Now().Add(-age))
}

// Stats returns the user's payout aggregates.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*ledger.PayoutStats, error) {
	payouts, err := s.uow.PayoutRepository()
	if err != nil {
		return nil, err
	}
	return payouts.Stats(ctx, userID)
}
