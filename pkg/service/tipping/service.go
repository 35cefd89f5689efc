// Package tipping implements the tip engine: validated peer-to-peer transfers
// with a platform fee, executed as one atomic unit of work.
package tipping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/creatorpay/ledger/pkg/config"
	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/creatorpay/ledger/pkg/money"
	"github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
)

// RelationshipChecker is the external block/relationship collaborator
// consulted before a tip is accepted.
type RelationshipChecker interface {
	IsBlocked(ctx context.Context, senderID, recipientID uuid.UUID) (bool, error)
}

// Service is the tip engine. It is one of the two writers of wallet and
// transaction state; every mutation goes through WalletRepository.ApplyDelta
// paired with a TransactionRepository.Append inside a single unit of work.
type Service struct {
	uow    repository.UnitOfWork
	rel    RelationshipChecker
	cfg    *config.Ledger
	logger *slog.Logger
}

// New creates a tip engine.
func New(
	uow repository.UnitOfWork,
	rel RelationshipChecker,
	cfg *config.Ledger,
	logger *slog.Logger,
) *Service {
	return &Service{uow: uow, rel: rel, cfg: cfg, logger: logger}
}

// SendTipParams are the inputs to SendTip.
type SendTipParams struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Amount      money.Money // gross, in the platform currency
	PostID      *uuid.UUID
	Message     string
	IsAnonymous bool
}

// SendTip validates and executes a tip. The sender is debited the gross
// amount, the recipient credited gross minus fee, and the platform wallet
// credited the fee, conserving total minor units across wallets. Tips are not
// credit-based: the full gross amount must be available up front.
func (s *Service) SendTip(ctx context.Context, p SendTipParams) (*ledger.Tip, error) {
	if err := s.validateTip(p); err != nil {
		return nil, err
	}

	blocked, err := s.rel.IsBlocked(ctx, p.SenderID, p.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("relationship check: %w", err)
	}
	if blocked {
		return nil, ledger.ErrBlockedRelationship
	}

	fee, err := p.Amount.MulBasisPoints(s.cfg.FeeBps)
	if err != nil {
		return nil, err
	}
	net, err := p.Amount.Subtract(fee)
	if err != nil {
		return nil, err
	}

	tip := &ledger.Tip{
		ID:          uuid.New(),
		SenderID:    p.SenderID,
		RecipientID: p.RecipientID,
		PostID:      p.PostID,
		GrossAmount: p.Amount,
		FeeAmount:   fee,
		NetAmount:   net,
		Message:     p.Message,
		IsAnonymous: p.IsAnonymous,
		Status:      ledger.TipCompleted,
	}

	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		wallets, err := uow.WalletRepository()
		if err != nil {
			return err
		}
		txns, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		tips, err := uow.TipRepository()
		if err != nil {
			return err
		}

		sender, err := wallets.GetOrCreate(ctx, p.SenderID)
		if err != nil {
			return fmt.Errorf("sender wallet: %w", err)
		}
		recipient, err := wallets.GetOrCreate(ctx, p.RecipientID)
		if err != nil {
			return fmt.Errorf("recipient wallet: %w", err)
		}
		platform, err := wallets.GetOrCreate(ctx, s.cfg.PlatformUser())
		if err != nil {
			return fmt.Errorf("platform wallet: %w", err)
		}

		deltas := []walletDelta{
			{wallet: sender, available: -p.Amount.Amount(), txType: ledger.TxTipSent, amount: -p.Amount.Amount()},
			{wallet: recipient, available: net.Amount(), txType: ledger.TxTipReceived, amount: net.Amount()},
			{wallet: platform, available: fee.Amount(), txType: ledger.TxPlatformFee, amount: fee.Amount()},
		}
		if err := applyDeltas(ctx, wallets, txns, deltas, tip.ID, s.cfg.Currency); err != nil {
			return err
		}

		if err := wallets.AddLifetime(ctx, recipient.ID, net.Amount(), 0); err != nil {
			return err
		}

		return tips.Create(ctx, dto.TipCreate{
			ID:          tip.ID,
			SenderID:    tip.SenderID,
			RecipientID: tip.RecipientID,
			PostID:      tip.PostID,
			GrossAmount: tip.GrossAmount.Amount(),
			FeeAmount:   tip.FeeAmount.Amount(),
			NetAmount:   tip.NetAmount.Amount(),
			Currency:    s.cfg.Currency,
			Message:     tip.Message,
			IsAnonymous: tip.IsAnonymous,
			Status:      tip.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tip sent",
		"tip_id", tip.ID,
		"sender_id", p.SenderID,
		"recipient_id", p.RecipientID,
		"gross", tip.GrossAmount,
		"fee", tip.FeeAmount)
	return tip, nil
}

// RefundTip reverses a completed tip: the recipient is debited the net
// amount, the platform fee is clawed back and the sender is re-credited the
// gross amount. Only legal from COMPLETED; a second attempt fails with
// ErrInvalidState instead of double-crediting.
func (s *Service) RefundTip(ctx context.Context, tipID uuid.UUID, reason string) (*ledger.Tip, error) {
	var refunded *ledger.Tip
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		wallets, err := uow.WalletRepository()
		if err != nil {
			return err
		}
		txns, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		tips, err := uow.TipRepository()
		if err != nil {
			return err
		}

		tip, err := tips.Get(ctx, tipID)
		if err != nil {
			return err
		}

		// The guarded transition claims the refund; a concurrent second
		// refund fails here before any balance moves.
		if err := tips.UpdateStatus(ctx, tipID, ledger.TipCompleted, ledger.TipRefunded); err != nil {
			return err
		}

		sender, err := wallets.GetByUser(ctx, tip.SenderID)
		if err != nil {
			return err
		}
		recipient, err := wallets.GetByUser(ctx, tip.RecipientID)
		if err != nil {
			return err
		}
		platform, err := wallets.GetOrCreate(ctx, s.cfg.PlatformUser())
		if err != nil {
			return err
		}

		deltas := []walletDelta{
			{wallet: recipient, available: -tip.NetAmount.Amount(), txType: ledger.TxRefund, amount: -tip.NetAmount.Amount()},
			{wallet: platform, available: -tip.FeeAmount.Amount(), txType: ledger.TxRefund, amount: -tip.FeeAmount.Amount()},
			{wallet: sender, available: tip.GrossAmount.Amount(), txType: ledger.TxRefund, amount: tip.GrossAmount.Amount()},
		}
		if err := applyDeltas(ctx, wallets, txns, deltas, tip.ID, s.cfg.Currency); err != nil {
			return err
		}

		if err := wallets.AddLifetime(ctx, recipient.ID, -tip.NetAmount.Amount(), 0); err != nil {
			return err
		}

		tip.Status = ledger.TipRefunded
		refunded = tip
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tip refunded", "tip_id", tipID, "reason", reason)
	return refunded, nil
}

func (s *Service) validateTip(p SendTipParams) error {
	if p.SenderID == p.RecipientID {
		return ledger.ErrSelfTip
	}
	if p.Amount.Currency() != s.cfg.CurrencyCode() {
		return fmt.Errorf("%w: tip must be in %s", ledger.ErrInvalidAmount, s.cfg.Currency)
	}
	if p.Amount.Amount() < s.cfg.MinTipAmount || p.Amount.Amount() > s.cfg.MaxTipAmount {
		return fmt.Errorf("%w: tip must be between %d and %d minor units",
			ledger.ErrInvalidAmount, s.cfg.MinTipAmount, s.cfg.MaxTipAmount)
	}
	return nil
}

// walletDelta pairs one balance mutation with the transaction entry that
// justifies it.
type walletDelta struct {
	wallet    *ledger.Wallet
	available int64
	pending   int64
	txType    ledger.TransactionType
	amount    int64
}

// applyDeltas applies the wallet mutations in stable UserID order so two
// concurrent tips targeting each other's wallets cannot deadlock, then
// appends the paired transactions in logical order with the balance snapshot
// taken inside the same transaction boundary.
func applyDeltas(
	ctx context.Context,
	wallets repository.WalletRepository,
	txns repository.TransactionRepository,
	deltas []walletDelta,
	referenceID uuid.UUID,
	currency string,
) error {
	ordered := make([]*walletDelta, 0, len(deltas))
	for i := range deltas {
		ordered = append(ordered, &deltas[i])
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].wallet.UserID.String() < ordered[j].wallet.UserID.String()
	})

	balanceAfter := make(map[uuid.UUID]int64, len(ordered))
	for _, d := range ordered {
		updated, err := wallets.ApplyDelta(ctx, d.wallet.ID, d.available, d.pending)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				return fmt.Errorf("wallet %s: %w", d.wallet.ID, ledger.ErrInsufficientFunds)
			}
			return err
		}
		balanceAfter[d.wallet.ID] = updated.Available.Amount()
	}

	for i := range deltas {
		d := &deltas[i]
		if _, err := txns.Append(ctx, dto.TransactionCreate{
			WalletID:     d.wallet.ID,
			Type:         d.txType,
			Amount:       d.amount,
			Currency:     currency,
			ReferenceID:  referenceID,
			BalanceAfter: balanceAfter[d.wallet.ID],
		}); err != nil {
			return err
		}
	}
	return nil
}
