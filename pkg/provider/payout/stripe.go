package payout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/creatorpay/ledger/pkg/config"
	"github.com/creatorpay/ledger/pkg/money"
	"github.com/stripe/stripe-go/v82"
)

// StripeProvider implements Provider on top of Stripe Connect transfers.
type StripeProvider struct {
	client *stripe.Client
	logger *slog.Logger
}

// NewStripeProvider creates a Stripe-backed payout provider.
func NewStripeProvider(cfg *config.Stripe, logger *slog.Logger) *StripeProvider {
	return &StripeProvider{
		client: stripe.NewClient(cfg.ApiKey),
		logger: logger,
	}
}

// InitiatePayout implements Provider. It creates a transfer to the connected
// account; Stripe's own idempotency layer dedupes retried initiations.
func (s *StripeProvider) InitiatePayout(
	ctx context.Context,
	accountRef string,
	amount money.Money,
	idempotencyKey string,
) (string, error) {
	params := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(amount.Amount()),
		Currency:    stripe.String(strings.ToLower(amount.Currency().String())),
		Destination: stripe.String(accountRef),
	}
	params.SetIdempotencyKey(idempotencyKey)
	params.AddMetadata("payout_id", idempotencyKey)

	transfer, err := s.client.V1Transfers.Create(ctx, params)
	if err != nil {
		s.logger.Error("failed to create transfer",
			"error", err,
			"destination", accountRef,
			"amount", amount)
		return "", fmt.Errorf("create transfer: %w", err)
	}

	s.logger.Info("transfer created",
		"transfer_id", transfer.ID,
		"destination", accountRef,
		"amount", amount)
	return transfer.ID, nil
}
