// Package payout implements the withdrawal engine: a request/approve/settle
// state machine where the requested amount is held in the wallet's pending
// balance until the external provider confirms or fails the transfer.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/creatorpay/ledger/pkg/config"
	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	provider "github.com/creatorpay/ledger/pkg/provider/payout"
	"github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
)

// Service is the payout engine.
type Service struct {
	uow      repository.UnitOfWork
	provider provider.Provider
	cfg      *config.Ledger
	logger   *slog.Logger
}

// New creates a payout engine.
func New(
	uow repository.UnitOfWork,
	p provider.Provider,
	cfg *config.Ledger,
	logger *slog.Logger,
) *Service {
	return &Service{uow: uow, provider: p, cfg: cfg, logger: logger}
}

// Request validates a withdrawal request and holds the funds: the amount
// moves from available to pending without leaving the wallet. A user may
// have at most one open payout at a time.
func (s *Service) Request(ctx context.Context, userID uuid.UUID, amount int64, note string) (*ledger.Payout, error) {
	if amount < s.cfg.MinPayout {
		return nil, fmt.Errorf("%w: payout must be at least %d minor units",
			ledger.ErrInvalidAmount, s.cfg.MinPayout)
	}

	p := &ledger.Payout{
		ID:     uuid.New(),
		UserID: userID,
		Status: ledger.PayoutPending,
		Note:   note,
	}

	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		wallets, err := uow.WalletRepository()
		if err != nil {
			return err
		}
		txns, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		payouts, err := uow.PayoutRepository()
		if err != nil {
			return err
		}

		wallet, err := wallets.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		// Hold: available -> pending. The guard inside ApplyDelta rejects the
		// request when available is short. The hold runs before the open-payout
		// check so the wallet row lock serializes concurrent requests from the
		// same user; by the time a loser's HasOpen runs, the winner's payout
		// row has committed and is visible.
		updated, err := wallets.ApplyDelta(ctx, wallet.ID, -amount, amount)
		if err != nil {
			return err
		}

		open, err := payouts.HasOpen(ctx, userID)
		if err != nil {
			return err
		}
		if open {
			return ledger.ErrPayoutInFlight
		}

		if _, err := txns.Append(ctx, dto.TransactionCreate{
			WalletID:     wallet.ID,
			Type:         ledger.TxPayoutRequested,
			Amount:       -amount,
			Currency:     s.cfg.Currency,
			ReferenceID:  p.ID,
			BalanceAfter: updated.Available.Amount(),
		}); err != nil {
			return err
		}

		return payouts.Create(ctx, dto.PayoutCreate{
			ID:              p.ID,
			UserID:          userID,
			RequestedAmount: amount,
			Currency:        s.cfg.Currency,
			Note:            note,
			Status:          ledger.PayoutPending,
		})
	})
	if err != nil {
		return nil, err
	}

	payouts, err := s.uow.PayoutRepository()
	if err != nil {
		return nil, err
	}
	created, err := payouts.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payout requested",
		"payout_id", p.ID,
		"user_id", userID,
		"amount", created.RequestedAmount)
	return created, nil
}

// Decide approves or rejects a pending payout.
//
// Rejection releases the hold back to available inside one unit of work.
// Approval requires a completed connect-account onboarding; the provider
// transfer is initiated only after the APPROVED transition has committed, so
// a provider timeout can never leave balances inconsistent: at worst the
// payout stays APPROVED until the reconciliation sweep retries it.
func (s *Service) Decide(
	ctx context.Context,
	payoutID, approverID uuid.UUID,
	approve bool,
	reason string,
) (*ledger.Payout, error) {
	var accountRef string
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payouts, err := uow.PayoutRepository()
		if err != nil {
			return err
		}
		p, err := payouts.Get(ctx, payoutID)
		if err != nil {
			return err
		}
		if p.Status != ledger.PayoutPending {
			return ledger.ErrInvalidState
		}

		if !approve {
			return s.releaseHold(ctx, uow, p, ledger.PayoutRejected, reason, approverID)
		}

		accounts, err := uow.ConnectAccountRepository()
		if err != nil {
			return err
		}
		account, err := accounts.Get(ctx, p.UserID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return ledger.ErrNotOnboarded
			}
			return err
		}
		if !account.OnboardingComplete {
			return ledger.ErrNotOnboarded
		}
		accountRef = account.ProviderAccountID

		return payouts.Update(ctx, payoutID, dto.PayoutUpdate{
			ExpectStatus: ledger.PayoutPending,
			Status:       ledger.PayoutApproved,
			ApproverID:   &approverID,
		})
	})
	if err != nil {
		return nil, err
	}

	if approve {
		if err := s.initiate(ctx, payoutID, accountRef); err != nil {
			return nil, err
		}
	}

	payouts, err := s.uow.PayoutRepository()
	if err != nil {
		return nil, err
	}
	return payouts.Get(ctx, payoutID)
}

// initiate calls the provider outside any wallet-locking transaction and
// records the provider ref. A provider failure leaves the payout APPROVED for
// the reconciliation sweep to retry; initiation is idempotent via the payout
// ID as idempotency key.
func (s *Service) initiate(ctx context.Context, payoutID uuid.UUID, accountRef string) error {
	payouts, err := s.uow.PayoutRepository()
	if err != nil {
		return err
	}
	p, err := payouts.Get(ctx, payoutID)
	if err != nil {
		return err
	}

	ref, err := s.provider.InitiatePayout(ctx, accountRef, p.RequestedAmount, payoutID.String())
	if err != nil {
		s.logger.Warn("payout initiation failed, leaving approved for reconciliation",
			"payout_id", payoutID, "error", err)
		return &ledger.ProviderError{Op: "initiate", Err: err}
	}

	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payouts, err := uow.PayoutRepository()
		if err != nil {
			return err
		}
		return payouts.Update(ctx, payoutID, dto.PayoutUpdate{
			ExpectStatus:      ledger.PayoutApproved,
			Status:            ledger.PayoutProcessing,
			ProviderPayoutRef: &ref,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("payout initiated",
		"payout_id", payoutID,
		"provider_ref", ref,
		"amount", p.RequestedAmount)
	return nil
}

// Settle records the provider's verdict. It is idempotent keyed by payout ID:
// a retried settlement callback with the same result returns the current
// state without touching balances again; a conflicting result fails with
// ErrInvalidState.
func (s *Service) Settle(ctx context.Context, payoutID uuid.UUID, result provider.Result) (*ledger.Payout, error) {
	var settled *ledger.Payout
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payouts, err := uow.PayoutRepository()
		if err != nil {
			return err
		}
		p, err := payouts.Get(ctx, payoutID)
		if err != nil {
			return err
		}

		// Replay of a settlement already recorded.
		if p.Status == ledger.PayoutCompleted || p.Status == ledger.PayoutFailed {
			matches := (p.Status == ledger.PayoutCompleted) == result.Succeeded
			if !matches {
				return ledger.ErrInvalidState
			}
			settled = p
			return nil
		}
		if p.Status != ledger.PayoutApproved && p.Status != ledger.PayoutProcessing {
			return ledger.ErrInvalidState
		}

		wallets, err := uow.WalletRepository()
		if err != nil {
			return err
		}
		txns, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		wallet, err := wallets.GetByUser(ctx, p.UserID)
		if err != nil {
			return err
		}
		amount := p.RequestedAmount.Amount()
		now := time.Now()

		if result.Succeeded {
			// Funds have left the platform: remove the hold permanently.
			updated, err := wallets.ApplyDelta(ctx, wallet.ID, 0, -amount)
			if err != nil {
				return err
			}
			if err := wallets.AddLifetime(ctx, wallet.ID, 0, amount); err != nil {
				return err
			}
			if _, err := txns.Append(ctx, dto.TransactionCreate{
				WalletID:     wallet.ID,
				Type:         ledger.TxPayoutCompleted,
				Amount:       -amount,
				Currency:     s.cfg.Currency,
				ReferenceID:  p.ID,
				BalanceAfter: updated.Available.Amount(),
			}); err != nil {
				return err
			}
			ref := result.ProviderRef
			update := dto.PayoutUpdate{
				ExpectStatus: p.Status,
				Status:       ledger.PayoutCompleted,
				ResolvedAt:   &now,
			}
			if ref != "" {
				update.ProviderPayoutRef = &ref
			}
			if err := payouts.Update(ctx, p.ID, update); err != nil {
				return err
			}
		} else {
			if err := s.releaseHoldTx(ctx, wallets, txns, payouts, p, ledger.PayoutFailed, result.FailureReason, nil); err != nil {
				return err
			}
		}

		settled, err = payouts.Get(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payout settled",
		"payout_id", payoutID,
		"status", settled.Status,
		"provider_ref", settled.ProviderPayoutRef)
	return settled, nil
}

// releaseHold moves held funds back to available and closes the payout in
// the given terminal status, all inside the caller's unit of work.
func (s *Service) releaseHold(
	ctx context.Context,
	uow repository.UnitOfWork,
	p *ledger.Payout,
	status ledger.PayoutStatus,
	reason string,
	approverID uuid.UUID,
) error {
	wallets, err := uow.WalletRepository()
	if err != nil {
		return err
	}
	txns, err := uow.TransactionRepository()
	if err != nil {
		return err
	}
	payouts, err := uow.PayoutRepository()
	if err != nil {
		return err
	}
	var approver *uuid.UUID
	if approverID != uuid.Nil {
		approver = &approverID
	}
	return s.releaseHoldTx(ctx, wallets, txns, payouts, p, status, reason, approver)
}

func (s *Service) releaseHoldTx(
	ctx context.Context,
	wallets repository.WalletRepository,
	txns repository.TransactionRepository,
	payouts repository.PayoutRepository,
	p *ledger.Payout,
	status ledger.PayoutStatus,
	reason string,
	approverID *uuid.UUID,
) error {
	wallet, err := wallets.GetByUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	amount := p.RequestedAmount.Amount()

	updated, err := wallets.ApplyDelta(ctx, wallet.ID, amount, -amount)
	if err != nil {
		return err
	}
	if _, err := txns.Append(ctx, dto.TransactionCreate{
		WalletID:     wallet.ID,
		Type:         ledger.TxPayoutFailedRefund,
		Amount:       amount,
		Currency:     s.cfg.Currency,
		ReferenceID:  p.ID,
		BalanceAfter: updated.Available.Amount(),
	}); err != nil {
		return err
	}

	now := time.Now()
	update := dto.PayoutUpdate{
		ExpectStatus: p.Status,
		Status:       status,
		ResolvedAt:   &now,
		ApproverID:   approverID,
	}
	if reason != "" {
		update.RejectionReason = &reason
	}
	return payouts.Update(ctx, p.ID, update)
}
