package payout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/creatorpay/ledger/pkg/config"
	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	provider "github.com/creatorpay/ledger/pkg/provider/payout"
	"github.com/creatorpay/ledger/pkg/repository"
	"github.com/creatorpay/ledger/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLedgerConfig() *config.Ledger {
	return &config.Ledger{
		Currency:       "USD",
		FeeBps:         1000,
		MinTipAmount:   50,
		MaxTipAmount:   100000,
		MinPayout:      1000,
		PlatformUserID: "00000000-0000-0000-0000-000000000001",
	}
}

func newService(t *testing.T) (*Service, *testutils.FakeUoW, *provider.MockProvider) {
	t.Helper()
	cfg := testLedgerConfig()
	uow := testutils.NewFakeUoW(cfg.CurrencyCode())
	mock := provider.NewMockProvider()
	svc := New(uow, mock, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, uow, mock
}

func seedOnboarded(uow *testutils.FakeUoW, userID uuid.UUID) {
	uow.SeedConnectAccount(ledger.ConnectAccount{
		UserID:             userID,
		ProviderAccountID:  "acct_test_" + userID.String()[:8],
		OnboardingComplete: true,
		Status:             ledger.ConnectActive,
	})
}

func wallet(t *testing.T, uow *testutils.FakeUoW, userID uuid.UUID) *ledger.Wallet {
	t.Helper()
	wallets, err := uow.WalletRepository()
	require.NoError(t, err)
	w, err := wallets.GetByUser(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func TestRequest_HoldsFundsInPending(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)

	p, err := svc.Request(ctx, user, 2000, "first cashout")
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutPending, p.Status)
	assert.Equal(t, int64(2000), p.RequestedAmount.Amount())
	assert.Equal(t, "first cashout", p.Note)

	w := wallet(t, uow, user)
	assert.Equal(t, int64(3000), w.Available.Amount())
	assert.Equal(t, int64(2000), w.Pending.Amount())
}

func TestRequest_BelowMinimum(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)

	_, err = svc.Request(ctx, user, 999, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestRequest_InsufficientFunds(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := uow.SeedBalance(ctx, user, 1500)
	require.NoError(t, err)

	_, err = svc.Request(ctx, user, 2000, "")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	w := wallet(t, uow, user)
	assert.Equal(t, int64(1500), w.Available.Amount())
	assert.Equal(t, int64(0), w.Pending.Amount())
}

func TestRequest_SecondOpenPayoutRejected(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := uow.SeedBalance(ctx, user, 10000)
	require.NoError(t, err)

	_, err = svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)

	_, err = svc.Request(ctx, user, 1000, "")
	require.ErrorIs(t, err, ledger.ErrPayoutInFlight)

	// The rejected second request must not touch the hold.
	w := wallet(t, uow, user)
	assert.Equal(t, int64(8000), w.Available.Amount())
	assert.Equal(t, int64(2000), w.Pending.Amount())
}

func TestRequest_ConcurrentRequestsKeepOneOpen(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := uow.SeedBalance(ctx, user, 10000)
	require.NoError(t, err)

	// The balance covers both holds, so only the open-payout rule separates
	// the two requests.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Request(ctx, user, 2000, "")
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ledger.ErrPayoutInFlight)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	// Exactly one hold survives.
	w := wallet(t, uow, user)
	assert.Equal(t, int64(8000), w.Available.Amount())
	assert.Equal(t, int64(2000), w.Pending.Amount())

	stats, err := svc.Stats(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RequestedCount)
}

func TestDecide_ApproveInitiatesAndSettleCompletes(t *testing.T) {
	svc, uow, mock := newService(t)
	ctx := context.Background()
	user, approver := uuid.New(), uuid.New()
	seedOnboarded(uow, user)

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)

	decided, err := svc.Decide(ctx, p.ID, approver, true, "")
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutProcessing, decided.Status)
	assert.NotEmpty(t, decided.ProviderPayoutRef)
	require.NotNil(t, decided.ApproverID)
	assert.Equal(t, approver, *decided.ApproverID)
	assert.Equal(t, 1, mock.Calls())

	settled, err := svc.Settle(ctx, p.ID, provider.Result{
		Succeeded:   true,
		ProviderRef: decided.ProviderPayoutRef,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutCompleted, settled.Status)
	require.NotNil(t, settled.ResolvedAt)

	w := wallet(t, uow, user)
	assert.Equal(t, int64(3000), w.Available.Amount())
	assert.Equal(t, int64(0), w.Pending.Amount())
	assert.Equal(t, int64(2000), w.LifetimeWithdrawn.Amount())

	stats, err := svc.Stats(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CompletedCount)
	assert.Equal(t, int64(2000), stats.CompletedTotal.Amount())
}

func TestDecide_RejectReleasesHold(t *testing.T) {
	svc, uow, mock := newService(t)
	ctx := context.Background()
	user, approver := uuid.New(), uuid.New()

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)

	rejected, err := svc.Decide(ctx, p.ID, approver, false, "suspicious activity")
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutRejected, rejected.Status)
	assert.Equal(t, "suspicious activity", rejected.RejectionReason)
	assert.Equal(t, 0, mock.Calls())

	w := wallet(t, uow, user)
	assert.Equal(t, int64(5000), w.Available.Amount())
	assert.Equal(t, int64(0), w.Pending.Amount())
	assert.Equal(t, int64(0), w.LifetimeWithdrawn.Amount())

	// A rejected payout no longer blocks a new request.
	_, err = svc.Request(ctx, user, 1500, "")
	assert.NoError(t, err)
}

func TestDecide_NotOnboarded(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user, approver := uuid.New(), uuid.New()

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)

	t.Run("no connect account", func(t *testing.T) {
		_, err = svc.Decide(ctx, p.ID, approver, true, "")
		require.ErrorIs(t, err, ledger.ErrNotOnboarded)
	})

	t.Run("onboarding incomplete", func(t *testing.T) {
		uow.SeedConnectAccount(ledger.ConnectAccount{
			UserID:            user,
			ProviderAccountID: "acct_incomplete",
			Status:            ledger.ConnectPending,
		})
		_, err = svc.Decide(ctx, p.ID, approver, true, "")
		require.ErrorIs(t, err, ledger.ErrNotOnboarded)
	})

	// The payout stays PENDING and the hold stays in place.
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutPending, got.Status)
	w := wallet(t, uow, user)
	assert.Equal(t, int64(2000), w.Pending.Amount())
}

// failingAccountsUoW wraps a unit of work with a connect-account repository
// whose lookups fail, to exercise the repository-error path of approval.
type failingAccountsUoW struct {
	repository.UnitOfWork
	err error
}

func (u *failingAccountsUoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return u.UnitOfWork.Do(ctx, func(tx repository.UnitOfWork) error {
		return fn(&failingAccountsUoW{UnitOfWork: tx, err: u.err})
	})
}

func (u *failingAccountsUoW) ConnectAccountRepository() (repository.ConnectAccountRepository, error) {
	return erroringAccountRepo{err: u.err}, nil
}

type erroringAccountRepo struct{ err error }

func (r erroringAccountRepo) Get(context.Context, uuid.UUID) (*ledger.ConnectAccount, error) {
	return nil, r.err
}

func (r erroringAccountRepo) GetByProviderID(context.Context, string) (*ledger.ConnectAccount, error) {
	return nil, r.err
}

func (r erroringAccountRepo) Upsert(context.Context, dto.ConnectAccountUpsert) error {
	return r.err
}

func TestDecide_AccountLookupErrorIsNotAnOnboardingVerdict(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user, approver := uuid.New(), uuid.New()

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)

	lookupErr := errors.New("connection reset")
	broken := New(
		&failingAccountsUoW{UnitOfWork: uow, err: lookupErr},
		provider.NewMockProvider(),
		testLedgerConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err = broken.Decide(ctx, p.ID, approver, true, "")
	require.ErrorIs(t, err, lookupErr)
	assert.NotErrorIs(t, err, ledger.ErrNotOnboarded)

	// A transient lookup failure leaves the payout PENDING for a retry.
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutPending, got.Status)
}

func TestDecide_OnlyPendingPayouts(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user, approver := uuid.New(), uuid.New()
	seedOnboarded(uow, user)

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, p.ID, approver, true, "")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, p.ID, approver, true, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
	_, err = svc.Decide(ctx, p.ID, approver, false, "too late")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestSettle_FailureReleasesHold(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user, approver := uuid.New(), uuid.New()
	seedOnboarded(uow, user)

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)
	_, err = svc.Decide(ctx, p.ID, approver, true, "")
	require.NoError(t, err)

	settled, err := svc.Settle(ctx, p.ID, provider.Result{
		Succeeded:     false,
		FailureReason: "account closed",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutFailed, settled.Status)
	assert.Equal(t, "account closed", settled.RejectionReason)

	w := wallet(t, uow, user)
	assert.Equal(t, int64(5000), w.Available.Amount())
	assert.Equal(t, int64(0), w.Pending.Amount())
	assert.Equal(t, int64(0), w.LifetimeWithdrawn.Amount())
}

func TestSettle_IdempotentReplay(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user, approver := uuid.New(), uuid.New()
	seedOnboarded(uow, user)

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)
	_, err = svc.Decide(ctx, p.ID, approver, true, "")
	require.NoError(t, err)

	first, err := svc.Settle(ctx, p.ID, provider.Result{Succeeded: true})
	require.NoError(t, err)
	require.Equal(t, ledger.PayoutCompleted, first.Status)

	// A replayed success is a no-op, not a second debit.
	second, err := svc.Settle(ctx, p.ID, provider.Result{Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutCompleted, second.Status)
	w := wallet(t, uow, user)
	assert.Equal(t, int64(3000), w.Available.Amount())
	assert.Equal(t, int64(2000), w.LifetimeWithdrawn.Amount())

	// A conflicting verdict for an already-settled payout is an error.
	_, err = svc.Settle(ctx, p.ID, provider.Result{Succeeded: false, FailureReason: "late failure"})
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestSettle_RequiresOpenPayout(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)

	// Still PENDING: the provider cannot have a verdict yet.
	_, err = svc.Settle(ctx, p.ID, provider.Result{Succeeded: true})
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestDecide_ProviderFailureLeavesApprovedForReconciliation(t *testing.T) {
	svc, uow, mock := newService(t)
	ctx := context.Background()
	user, approver := uuid.New(), uuid.New()
	seedOnboarded(uow, user)

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)

	mock.FailWith = errors.New("provider timeout")
	_, err = svc.Decide(ctx, p.ID, approver, true, "")
	require.Error(t, err)
	var provErr *ledger.ProviderError
	assert.ErrorAs(t, err, &provErr)

	// The approval committed; only the initiation failed. The hold stays in
	// place and the sweep picks the payout up later.
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutApproved, got.Status)
	w := wallet(t, uow, user)
	assert.Equal(t, int64(2000), w.Pending.Amount())

	stuck, err := svc.ListApprovedOlderThan(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, p.ID, stuck[0].ID)

	// Reconciliation settles the payout once the provider answers.
	mock.FailWith = nil
	settled, err := svc.Settle(ctx, p.ID, provider.Result{Succeeded: true, ProviderRef: "tr_recovered"})
	require.NoError(t, err)
	assert.Equal(t, ledger.PayoutCompleted, settled.Status)
	assert.Equal(t, "tr_recovered", settled.ProviderPayoutRef)
	w = wallet(t, uow, user)
	assert.Equal(t, int64(0), w.Pending.Amount())
}

func TestListApprovedOlderThan_FiltersByAge(t *testing.T) {
	svc, uow, _ := newService(t)
	ctx := context.Background()
	user, approver := uuid.New(), uuid.New()
	seedOnboarded(uow, user)

	_, err := uow.SeedBalance(ctx, user, 5000)
	require.NoError(t, err)
	p, err := svc.Request(ctx, user, 2000, "")
	require.NoError(t, err)

	mock := provider.NewMockProvider()
	mock.FailWith = errors.New("down")
	stuckSvc := New(uow, mock, testLedgerConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = stuckSvc.Decide(ctx, p.ID, approver, true, "")
	require.Error(t, err)

	recent, err := svc.ListApprovedOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, recent)

	all, err := svc.ListApprovedOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
