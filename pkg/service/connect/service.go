// Package connect manages the binding between platform users and their
// Stripe Connect accounts: account creation, onboarding links and the
// onboarding-complete check that gates payout approval.
package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creatorpay/ledger/pkg/config"
	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

// Service manages Stripe Connect accounts for payout recipients.
type Service struct {
	client *stripe.Client
	uow    repository.UnitOfWork
	cfg    *config.Stripe
	logger *slog.Logger
}

// New creates a connect service using the official Stripe client.
func New(
	uow repository.UnitOfWork,
	cfg *config.Stripe,
	logger *slog.Logger,
) *Service {
	return &Service{
		client: stripe.NewClient(cfg.ApiKey),
		uow:    uow,
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAccount creates a Stripe Express account for the user and stores the
// binding. Idempotent: if a binding already exists it is returned as-is.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, email string) (*ledger.ConnectAccount, error) {
	accounts, err := s.uow.ConnectAccountRepository()
	if err != nil {
		return nil, err
	}

	existing, err := accounts.Get(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("check existing account: %w", err)
	}

	params := &stripe.AccountCreateParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(s.cfg.Country),
		Email:   stripe.String(email),
		Capabilities: &stripe.AccountCreateCapabilitiesParams{
			Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}

	acct, err := s.client.V1Accounts.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create stripe account: %w", err)
	}

	upsert := dto.ConnectAccountUpsert{
		UserID:            userID,
		ProviderAccountID: acct.ID,
		Status:            ledger.ConnectPending,
	}
	if err := accounts.Upsert(ctx, upsert); err != nil {
		// Clean up the dangling Stripe account if the binding cannot be saved.
		_, _ = s.client.V1Accounts.Delete(ctx, acct.ID, nil) //nolint:errcheck
		return nil, fmt.Errorf("save stripe account binding: %w", err)
	}

	s.logger.Info("connect account created", "user_id", userID, "stripe_account_id", acct.ID)
	return accounts.Get(ctx, userID)
}

// OnboardingURL generates a fresh Stripe onboarding link for the user's
// connect account.
func (s *Service) OnboardingURL(ctx context.Context, userID uuid.UUID) (string, error) {
	accounts, err := s.uow.ConnectAccountRepository()
	if err != nil {
		return "", err
	}
	account, err := accounts.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	params := &stripe.AccountLinkCreateParams{
		Account:    stripe.String(account.ProviderAccountID),
		RefreshURL: stripe.String(s.cfg.OnboardingRefreshURL),
		ReturnURL:  stripe.String(s.cfg.OnboardingReturnURL),
		Type:       stripe.String("account_onboarding"),
	}
	link, err := s.client.V1AccountLinks.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link.URL, nil
}

// IsOnboardingComplete checks the local binding first and falls back to the
// provider, folding the fresh provider state back into the store.
func (s *Service) IsOnboardingComplete(ctx context.Context, userID uuid.UUID) (bool, error) {
	accounts, err := s.uow.ConnectAccountRepository()
	if err != nil {
		return false, err
	}
	account, err := accounts.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if account.OnboardingComplete {
		return true, nil
	}

	acct, err := s.client.V1Accounts.GetByID(ctx, account.ProviderAccountID, nil)
	if err != nil {
		return false, fmt.Errorf("get stripe account: %w", err)
	}
	if err := s.fold(ctx, account.UserID, acct); err != nil {
		return false, err
	}
	return acct.DetailsSubmitted && acct.PayoutsEnabled, nil
}

// HandleAccountUpdated folds an account.updated webhook event into the local
// binding, keeping onboarding state current without polling.
func (s *Service) HandleAccountUpdated(ctx context.Context, acct *stripe.Account) error {
	accounts, err := s.uow.ConnectAccountRepository()
	if err != nil {
		return err
	}
	account, err := accounts.GetByProviderID(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			s.logger.Warn("account.updated for unknown account", "stripe_account_id", acct.ID)
			return nil
		}
		return err
	}
	return s.fold(ctx, account.UserID, acct)
}

func (s *Service) fold(ctx context.Context, userID uuid.UUID, acct *stripe.Account) error {
	accounts, err := s.uow.ConnectAccountRepository()
	if err != nil {
		return err
	}
	complete := acct.DetailsSubmitted && acct.PayoutsEnabled
	status := ledger.ConnectPending
	switch {
	case complete:
		status = ledger.ConnectActive
	case acct.DetailsSubmitted && !acct.PayoutsEnabled:
		status = ledger.ConnectRestricted
	}
	return accounts.Upsert(ctx, dto.ConnectAccountUpsert{
		UserID:             userID,
		ProviderAccountID:  acct.ID,
		OnboardingComplete: complete,
		Status:             status,
	})
}
