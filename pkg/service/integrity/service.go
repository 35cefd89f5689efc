// Package integrity implements the read-only ledger auditor: it recomputes
// each wallet's balances from the transaction log and flags mismatches. It
// never corrects anything; corrections are a manual administrative action
// producing an explicit adjustment transaction.
package integrity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
)

// replayBatchSize is the page size used when replaying a wallet's log.
const replayBatchSize = 500

// Report is the outcome of verifying one wallet.
type Report struct {
	WalletID          uuid.UUID
	Consistent        bool
	ComputedAvailable int64
	ComputedPending   int64
	StoredAvailable   int64
	StoredPending     int64
	Entries           int
}

// Service is the integrity verifier.
type Service struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
}

// New creates an integrity verifier.
func New(uow repository.UnitOfWork, logger *slog.Logger) *Service {
	return &Service{uow: uow, logger: logger}
}

// Verify replays the transaction log of the user's wallet.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID) (*Report, error) {
	wallets, err := s.uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	wallet, err := wallets.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.VerifyWallet(ctx, wallet.ID)
}

// VerifyWallet replays the wallet's transaction log oldest-first, folding
// each entry into computed (available, pending) balances, and compares the
// result against the stored balances.
func (s *Service) VerifyWallet(ctx context.Context, walletID uuid.UUID) (*Report, error) {
	wallets, err := s.uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	txns, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}

	wallet, err := wallets.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		WalletID:        walletID,
		StoredAvailable: wallet.Available.Amount(),
		StoredPending:   wallet.Pending.Amount(),
	}

	filter := dto.TransactionFilter{OldestFirst: true}
	for offset := 0; ; offset += replayBatchSize {
		batch, err := txns.ListForWallet(ctx, walletID, filter, dto.Page{
			Limit:  replayBatchSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		for _, entry := range batch {
			fold(report, entry)
		}
		report.Entries += len(batch)
		if len(batch) < replayBatchSize {
			break
		}
	}

	report.Consistent = report.ComputedAvailable == report.StoredAvailable &&
		report.ComputedPending == report.StoredPending
	if !report.Consistent {
		// Never thrown synchronously: the mismatch is reported for operator
		// alerting, the read path is unaffected.
		s.logger.Error("wallet integrity violation",
			"wallet_id", walletID,
			"computed_available", report.ComputedAvailable,
			"stored_available", report.StoredAvailable,
			"computed_pending", report.ComputedPending,
			"stored_pending", report.StoredPending)
	}
	return report, nil
}

// VerifyAll verifies every live wallet and returns the reports.
func (s *Service) VerifyAll(ctx context.Context) ([]*Report, error) {
	wallets, err := s.uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	ids, err := wallets.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]*Report, 0, len(ids))
	for _, id := range ids {
		report, err := s.VerifyWallet(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("verify wallet %s: %w", id, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// fold applies one log entry to the computed balances. Amounts are signed
// relative to the field the entry type touches: PAYOUT_REQUESTED debits
// available into pending, PAYOUT_COMPLETED debits pending out of the
// platform, PAYOUT_FAILED_REFUND credits available back out of pending, and
// every other type moves available only.
func fold(r *Report, entry *ledger.Transaction) {
	amount := entry.Amount.Amount()
	switch entry.Type {
	case ledger.TxPayoutRequested:
		r.ComputedAvailable += amount
		r.ComputedPending -= amount
	case ledger.TxPayoutCompleted:
		r.ComputedPending += amount
	case ledger.TxPayoutFailedRefund:
		r.ComputedAvailable += amount
		r.ComputedPending -= amount
	default:
		r.ComputedAvailable += amount
	}
}
