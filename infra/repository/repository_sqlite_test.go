package repository

import (
	"context"
	"testing"
	"time"

	"github.com/creatorpay/ledger/infra/repository/connectaccount"
	"github.com/creatorpay/ledger/infra/repository/payout"
	"github.com/creatorpay/ledger/infra/repository/tip"
	"github.com/creatorpay/ledger/infra/repository/transaction"
	"github.com/creatorpay/ledger/infra/repository/wallet"
	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/creatorpay/ledger/pkg/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestWalletRepository_SQLite(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	repo := wallet.New(db, money.USD)
	userID := uuid.New()

	w, err := repo.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, w.UserID)
	assert.Equal(t, int64(0), w.Available.Amount())
	assert.Equal(t, money.USD, w.Available.Currency())

	again, err := repo.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)

	t.Run("delta within balance", func(t *testing.T) {
		updated, err := repo.ApplyDelta(ctx, w.ID, 5000, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), updated.Available.Amount())

		updated, err = repo.ApplyDelta(ctx, w.ID, -2000, 2000)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), updated.Available.Amount())
		assert.Equal(t, int64(2000), updated.Pending.Amount())
	})

	t.Run("guard rejects overdraw", func(t *testing.T) {
		_, err := repo.ApplyDelta(ctx, w.ID, -9999, 0)
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		_, err = repo.ApplyDelta(ctx, w.ID, 0, -9999)
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

		// The rejected statements must not have moved anything.
		current, err := repo.Get(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), current.Available.Amount())
		assert.Equal(t, int64(2000), current.Pending.Amount())
	})

	t.Run("unknown wallet", func(t *testing.T) {
		_, err := repo.ApplyDelta(ctx, uuid.New(), 100, 0)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
		_, err = repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("lifetime counters", func(t *testing.T) {
		require.NoError(t, repo.AddLifetime(ctx, w.ID, 4500, 0))
		require.NoError(t, repo.AddLifetime(ctx, w.ID, 0, 2000))
		current, err := repo.Get(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4500), current.LifetimeEarned.Amount())
		assert.Equal(t, int64(2000), current.LifetimeWithdrawn.Amount())
	})

	t.Run("archive hides the wallet", func(t *testing.T) {
		other, err := repo.GetOrCreate(ctx, uuid.New())
		require.NoError(t, err)

		require.NoError(t, repo.Archive(ctx, userID))
		_, err = repo.GetByUser(ctx, userID)
		assert.ErrorIs(t, err, ledger.ErrNotFound)

		ids, err := repo.ListIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{other.ID}, ids)
	})
}

func TestTransactionRepository_SQLite(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	repo := transaction.New(db)
	walletID := uuid.New()

	types := []ledger.TransactionType{ledger.TxTipReceived, ledger.TxTipSent, ledger.TxPayoutRequested}
	amounts := []int64{5000, -1000, -2000}
	for i := range types {
		entry, err := repo.Append(ctx, dto.TransactionCreate{
			WalletID:     walletID,
			Type:         types[i],
			Amount:       amounts[i],
			Currency:     "USD",
			ReferenceID:  uuid.New(),
			BalanceAfter: 0,
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, entry.ID)
		// Keep created_at strictly increasing for the ordering assertions.
		time.Sleep(2 * time.Millisecond)
	}

	newest, err := repo.ListForWallet(ctx, walletID, dto.TransactionFilter{}, dto.Page{})
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, ledger.TxPayoutRequested, newest[0].Type)
	assert.Equal(t, ledger.TxTipReceived, newest[2].Type)

	oldest, err := repo.ListForWallet(ctx, walletID, dto.TransactionFilter{OldestFirst: true}, dto.Page{})
	require.NoError(t, err)
	require.Len(t, oldest, 3)
	assert.Equal(t, ledger.TxTipReceived, oldest[0].Type)

	tipsOnly, err := repo.ListForWallet(ctx, walletID, dto.TransactionFilter{
		Types: []ledger.TransactionType{ledger.TxTipSent, ledger.TxTipReceived},
	}, dto.Page{})
	require.NoError(t, err)
	assert.Len(t, tipsOnly, 2)

	paged, err := repo.ListForWallet(ctx, walletID, dto.TransactionFilter{OldestFirst: true}, dto.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, ledger.TxPayoutRequested, paged[0].Type)

	other, err := repo.ListForWallet(ctx, uuid.New(), dto.TransactionFilter{}, dto.Page{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestTipRepository_SQLite(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	repo := tip.New(db, money.USD)
	sender, recipient := uuid.New(), uuid.New()

	tipID := uuid.New()
	require.NoError(t, repo.Create(ctx, dto.TipCreate{
		ID:          tipID,
		SenderID:    sender,
		RecipientID: recipient,
		GrossAmount: 5000,
		FeeAmount:   500,
		NetAmount:   4500,
		Currency:    "USD",
		Message:     "nice work",
		Status:      ledger.TipCompleted,
	}))

	got, err := repo.Get(ctx, tipID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.GrossAmount.Amount())
	assert.Equal(t, int64(4500), got.NetAmount.Amount())
	assert.Equal(t, "nice work", got.Message)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	t.Run("guarded transition", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, tipID, ledger.TipCompleted, ledger.TipRefunded))
		err := repo.UpdateStatus(ctx, tipID, ledger.TipCompleted, ledger.TipRefunded)
		assert.ErrorIs(t, err, ledger.ErrInvalidState)
		err = repo.UpdateStatus(ctx, uuid.New(), ledger.TipCompleted, ledger.TipRefunded)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("stats exclude refunded", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, dto.TipCreate{
			ID:          uuid.New(),
			SenderID:    sender,
			RecipientID: recipient,
			GrossAmount: 2000,
			FeeAmount:   200,
			NetAmount:   1800,
			Currency:    "USD",
			Status:      ledger.TipCompleted,
		}))

		stats, err := repo.Stats(ctx, sender)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.SentCount)
		assert.Equal(t, int64(2000), stats.SentTotal.Amount())

		stats, err = repo.Stats(ctx, recipient)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.ReceivedCount)
		assert.Equal(t, int64(1800), stats.ReceivedTotal.Amount())
	})
}

func TestPayoutRepository_SQLite(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	repo := payout.New(db)
	userID := uuid.New()

	payoutID := uuid.New()
	require.NoError(t, repo.Create(ctx, dto.PayoutCreate{
		ID:              payoutID,
		UserID:          userID,
		RequestedAmount: 2000,
		Currency:        "USD",
		Note:            "rent",
		Status:          ledger.PayoutPending,
	}))

	open, err := repo.HasOpen(ctx, userID)
	require.NoError(t, err)
	assert.True(t, open)

	t.Run("guarded update", func(t *testing.T) {
		approver := uuid.New()
		require.NoError(t, repo.Update(ctx, payoutID, dto.PayoutUpdate{
			ExpectStatus: ledger.PayoutPending,
			Status:       ledger.PayoutApproved,
			ApproverID:   &approver,
		}))

		// Replaying the same transition loses the guard.
		err := repo.Update(ctx, payoutID, dto.PayoutUpdate{
			ExpectStatus: ledger.PayoutPending,
			Status:       ledger.PayoutApproved,
		})
		assert.ErrorIs(t, err, ledger.ErrInvalidState)

		got, err := repo.Get(ctx, payoutID)
		require.NoError(t, err)
		assert.Equal(t, ledger.PayoutApproved, got.Status)
		require.NotNil(t, got.ApproverID)
		assert.Equal(t, approver, *got.ApproverID)
	})

	t.Run("terminal update closes the payout", func(t *testing.T) {
		ref := "tr_123"
		now := time.Now()
		require.NoError(t, repo.Update(ctx, payoutID, dto.PayoutUpdate{
			ExpectStatus:      ledger.PayoutApproved,
			Status:            ledger.PayoutCompleted,
			ProviderPayoutRef: &ref,
			ResolvedAt:        &now,
		}))

		open, err := repo.HasOpen(ctx, userID)
		require.NoError(t, err)
		assert.False(t, open)

		got, err := repo.Get(ctx, payoutID)
		require.NoError(t, err)
		assert.Equal(t, "tr_123", got.ProviderPayoutRef)
		require.NotNil(t, got.ResolvedAt)

		stats, err := repo.Stats(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.RequestedCount)
		assert.Equal(t, int64(1), stats.CompletedCount)
		assert.Equal(t, int64(2000), stats.CompletedTotal.Amount())
	})

	t.Run("older-than listing", func(t *testing.T) {
		staleID := uuid.New()
		require.NoError(t, repo.Create(ctx, dto.PayoutCreate{
			ID:              staleID,
			UserID:          uuid.New(),
			RequestedAmount: 1500,
			Currency:        "USD",
			Status:          ledger.PayoutPending,
		}))
		require.NoError(t, repo.Update(ctx, staleID, dto.PayoutUpdate{
			ExpectStatus: ledger.PayoutPending,
			Status:       ledger.PayoutApproved,
		}))

		stale, err := repo.ListByStatusOlderThan(ctx, ledger.PayoutApproved, time.Now().Add(time.Second))
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, staleID, stale[0].ID)

		none, err := repo.ListByStatusOlderThan(ctx, ledger.PayoutApproved, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestConnectAccountRepository_SQLite(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	repo := connectaccount.New(db)
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, dto.ConnectAccountUpsert{
		UserID:            userID,
		ProviderAccountID: "acct_123",
		Status:            ledger.ConnectPending,
	}))

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "acct_123", got.ProviderAccountID)
	assert.False(t, got.OnboardingComplete)

	// The second upsert updates in place instead of inserting.
	require.NoError(t, repo.Upsert(ctx, dto.ConnectAccountUpsert{
		UserID:             userID,
		ProviderAccountID:  "acct_123",
		OnboardingComplete: true,
		Status:             ledger.ConnectActive,
	}))

	got, err = repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.OnboardingComplete)
	assert.Equal(t, ledger.ConnectActive, got.Status)

	byProvider, err := repo.GetByProviderID(ctx, "acct_123")
	require.NoError(t, err)
	assert.Equal(t, userID, byProvider.UserID)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = repo.GetByProviderID(ctx, "acct_missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
