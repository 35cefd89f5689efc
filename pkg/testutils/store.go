package testutils

import (
	"context"
	"sort"
	"time"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/creatorpay/ledger/pkg/money"
	"github.com/google/uuid"
)

// state is the backing store. Rows keep amounts as minor-unit integers, the
// same shape the gorm models use, so cloning is a shallow copy per row.
type state struct {
	seq      int64
	wallets  map[uuid.UUID]*walletRow
	txns     []*txnRow
	tips     map[uuid.UUID]*tipRow
	payouts  map[uuid.UUID]*payoutRow
	accounts map[uuid.UUID]*ledger.ConnectAccount
}

type walletRow struct {
	id                uuid.UUID
	userID            uuid.UUID
	available         int64
	pending           int64
	lifetimeEarned    int64
	lifetimeWithdrawn int64
	currency          string
	archived          bool
	createdAt         time.Time
	updatedAt         time.Time
	seq               int64
}

type txnRow struct {
	id           uuid.UUID
	walletID     uuid.UUID
	txType       ledger.TransactionType
	amount       int64
	currency     string
	referenceID  uuid.UUID
	balanceAfter int64
	createdAt    time.Time
	seq          int64
}

type tipRow struct {
	tip      ledger.Tip
	gross    int64
	fee      int64
	net      int64
	currency string
}

type payoutRow struct {
	payout   ledger.Payout
	amount   int64
	currency string
	seq      int64
}

func newState() *state {
	return &state{
		wallets:  make(map[uuid.UUID]*walletRow),
		tips:     make(map[uuid.UUID]*tipRow),
		payouts:  make(map[uuid.UUID]*payoutRow),
		accounts: make(map[uuid.UUID]*ledger.ConnectAccount),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for id, w := range s.wallets {
		cp := *w
		c.wallets[id] = &cp
	}
	c.txns = make([]*txnRow, len(s.txns))
	for i, t := range s.txns {
		cp := *t
		c.txns[i] = &cp
	}
	for id, t := range s.tips {
		cp := *t
		c.tips[id] = &cp
	}
	for id, p := range s.payouts {
		cp := *p
		c.payouts[id] = &cp
	}
	for id, a := range s.accounts {
		cp := *a
		c.accounts[id] = &cp
	}
	return c
}

func (s *state) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *state) walletByUser(userID uuid.UUID) *walletRow {
	for _, w := range s.wallets {
		if w.userID == userID && !w.archived {
			return w
		}
	}
	return nil
}

type fakeWalletRepo struct{ u *FakeUoW }

func (r *fakeWalletRepo) GetOrCreate(_ context.Context, userID uuid.UUID) (*ledger.Wallet, error) {
	s := r.u.session()
	if w := s.walletByUser(userID); w != nil {
		return walletToDomain(w)
	}
	now := time.Now()
	w := &walletRow{
		id:        uuid.New(),
		userID:    userID,
		currency:  r.u.currency.String(),
		createdAt: now,
		updatedAt: now,
		seq:       s.nextSeq(),
	}
	s.wallets[w.id] = w
	return walletToDomain(w)
}

func (r *fakeWalletRepo) Get(_ context.Context, id uuid.UUID) (*ledger.Wallet, error) {
	w, ok := r.u.session().wallets[id]
	if !ok || w.archived {
		return nil, ledger.ErrNotFound
	}
	return walletToDomain(w)
}

func (r *fakeWalletRepo) GetByUser(_ context.Context, userID uuid.UUID) (*ledger.Wallet, error) {
	w := r.u.session().walletByUser(userID)
	if w == nil {
		return nil, ledger.ErrNotFound
	}
	return walletToDomain(w)
}

func (r *fakeWalletRepo) ApplyDelta(
	_ context.Context,
	walletID uuid.UUID,
	availableDelta, pendingDelta int64,
) (*ledger.Wallet, error) {
	s := r.u.session()
	w, ok := s.wallets[walletID]
	if !ok || w.archived {
		return nil, ledger.ErrNotFound
	}
	if w.available+availableDelta < 0 || w.pending+pendingDelta < 0 {
		return nil, ledger.ErrInsufficientFunds
	}
	w.available += availableDelta
	w.pending += pendingDelta
	w.updatedAt = time.Now()
	return walletToDomain(w)
}

func (r *fakeWalletRepo) AddLifetime(
	_ context.Context,
	walletID uuid.UUID,
	earnedDelta, withdrawnDelta int64,
) error {
	s := r.u.session()
	w, ok := s.wallets[walletID]
	if !ok || w.archived {
		return ledger.ErrNotFound
	}
	w.lifetimeEarned += earnedDelta
	w.lifetimeWithdrawn += withdrawnDelta
	w.updatedAt = time.Now()
	return nil
}

func (r *fakeWalletRepo) Archive(_ context.Context, userID uuid.UUID) error {
	if w := r.u.session().walletByUser(userID); w != nil {
		w.archived = true
	}
	return nil
}

func (r *fakeWalletRepo) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	s := r.u.session()
	rows := make([]*walletRow, 0, len(s.wallets))
	for _, w := range s.wallets {
		if !w.archived {
			rows = append(rows, w)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	ids := make([]uuid.UUID, len(rows))
	for i, w := range rows {
		ids[i] = w.id
	}
	return ids, nil
}

func walletToDomain(w *walletRow) (*ledger.Wallet, error) {
	code := money.Code(w.currency)
	available, err := money.New(w.available, code)
	if err != nil {
		return nil, err
	}
	pending, err := money.New(w.pending, code)
	if err != nil {
		return nil, err
	}
	earned, err := money.New(w.lifetimeEarned, code)
	if err != nil {
		return nil, err
	}
	withdrawn, err := money.New(w.lifetimeWithdrawn, code)
	if err != nil {
		return nil, err
	}
	return &ledger.Wallet{
		ID:                w.id,
		UserID:            w.userID,
		Available:         available,
		Pending:           pending,
		LifetimeEarned:    earned,
		LifetimeWithdrawn: withdrawn,
		CreatedAt:         w.createdAt,
		UpdatedAt:         w.updatedAt,
	}, nil
}

type fakeTransactionRepo struct{ u *FakeUoW }

func (r *fakeTransactionRepo) Append(_ context.Context, create dto.TransactionCreate) (*ledger.Transaction, error) {
	s := r.u.session()
	row := &txnRow{
		id:           create.ID,
		walletID:     create.WalletID,
		txType:       create.Type,
		amount:       create.Amount,
		currency:     create.Currency,
		referenceID:  create.ReferenceID,
		balanceAfter: create.BalanceAfter,
		createdAt:    time.Now(),
		seq:          s.nextSeq(),
	}
	if row.id == uuid.Nil {
		row.id = uuid.New()
	}
	s.txns = append(s.txns, row)
	return txnToDomain(row)
}

func (r *fakeTransactionRepo) ListForWallet(
	_ context.Context,
	walletID uuid.UUID,
	filter dto.TransactionFilter,
	page dto.Page,
) ([]*ledger.Transaction, error) {
	s := r.u.session()
	var rows []*txnRow
	for _, t := range s.txns {
		if t.walletID != walletID {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, t.txType) {
			continue
		}
		if filter.From != nil && t.createdAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.createdAt.After(*filter.To) {
			continue
		}
		rows = append(rows, t)
	}
	if filter.OldestFirst {
		sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	} else {
		sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	}
	if page.Offset > 0 {
		if page.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[page.Offset:]
		}
	}
	if page.Limit > 0 && page.Limit < len(rows) {
		rows = rows[:page.Limit]
	}
	out := make([]*ledger.Transaction, 0, len(rows))
	for _, t := range rows {
		entry, err := txnToDomain(t)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func containsType(types []ledger.TransactionType, t ledger.TransactionType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func txnToDomain(t *txnRow) (*ledger.Transaction, error) {
	code := money.Code(t.currency)
	amount, err := money.New(t.amount, code)
	if err != nil {
		return nil, err
	}
	after, err := money.New(t.balanceAfter, code)
	if err != nil {
		return nil, err
	}
	return &ledger.Transaction{
		ID:           t.id,
		WalletID:     t.walletID,
		Type:         t.txType,
		Amount:       amount,
		ReferenceID:  t.referenceID,
		BalanceAfter: after,
		CreatedAt:    t.createdAt,
	}, nil
}

type fakeTipRepo struct{ u *FakeUoW }

func (r *fakeTipRepo) Create(_ context.Context, create dto.TipCreate) error {
	s := r.u.session()
	s.tips[create.ID] = &tipRow{
		tip: ledger.Tip{
			ID:          create.ID,
			SenderID:    create.SenderID,
			RecipientID: create.RecipientID,
			PostID:      create.PostID,
			Message:     create.Message,
			IsAnonymous: create.IsAnonymous,
			Status:      create.Status,
			CreatedAt:   time.Now(),
		},
		gross:    create.GrossAmount,
		fee:      create.FeeAmount,
		net:      create.NetAmount,
		currency: create.Currency,
	}
	return nil
}

func (r *fakeTipRepo) Get(_ context.Context, id uuid.UUID) (*ledger.Tip, error) {
	row, ok := r.u.session().tips[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return tipToDomain(row)
}

func (r *fakeTipRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to ledger.TipStatus) error {
	row, ok := r.u.session().tips[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if row.tip.Status != from {
		return ledger.ErrInvalidState
	}
	row.tip.Status = to
	return nil
}

func (r *fakeTipRepo) Stats(_ context.Context, userID uuid.UUID) (*ledger.TipStats, error) {
	s := r.u.session()
	stats := &ledger.TipStats{
		SentTotal:     money.Zero(r.u.currency),
		ReceivedTotal: money.Zero(r.u.currency),
	}
	var sent, received int64
	for _, row := range s.tips {
		if row.tip.Status != ledger.TipCompleted {
			continue
		}
		if row.tip.SenderID == userID {
			stats.SentCount++
			sent += row.gross
		}
		if row.tip.RecipientID == userID {
			stats.ReceivedCount++
			received += row.net
		}
	}
	var err error
	if stats.SentTotal, err = money.New(sent, r.u.currency); err != nil {
		return nil, err
	}
	if stats.ReceivedTotal, err = money.New(received, r.u.currency); err != nil {
		return nil, err
	}
	return stats, nil
}

func tipToDomain(row *tipRow) (*ledger.Tip, error) {
	code := money.Code(row.currency)
	gross, err := money.New(row.gross, code)
	if err != nil {
		return nil, err
	}
	fee, err := money.New(row.fee, code)
	if err != nil {
		return nil, err
	}
	net, err := money.New(row.net, code)
	if err != nil {
		return nil, err
	}
	tip := row.tip
	tip.GrossAmount = gross
	tip.FeeAmount = fee
	tip.NetAmount = net
	return &tip, nil
}

type fakePayoutRepo struct{ u *FakeUoW }

func (r *fakePayoutRepo) Create(_ context.Context, create dto.PayoutCreate) error {
	s := r.u.session()
	s.payouts[create.ID] = &payoutRow{
		payout: ledger.Payout{
			ID:        create.ID,
			UserID:    create.UserID,
			Status:    create.Status,
			Note:      create.Note,
			CreatedAt: time.Now(),
		},
		amount:   create.RequestedAmount,
		currency: create.Currency,
		seq:      s.nextSeq(),
	}
	return nil
}

func (r *fakePayoutRepo) Get(_ context.Context, id uuid.UUID) (*ledger.Payout, error) {
	row, ok := r.u.session().payouts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return payoutToDomain(row)
}

func (r *fakePayoutRepo) Update(_ context.Context, id uuid.UUID, update dto.PayoutUpdate) error {
	row, ok := r.u.session().payouts[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if row.payout.Status != update.ExpectStatus {
		return ledger.ErrInvalidState
	}
	row.payout.Status = update.Status
	if update.ApproverID != nil {
		row.payout.ApproverID = update.ApproverID
	}
	if update.RejectionReason != nil {
		row.payout.RejectionReason = *update.RejectionReason
	}
	if update.ProviderPayoutRef != nil {
		row.payout.ProviderPayoutRef = *update.ProviderPayoutRef
	}
	if update.ResolvedAt != nil {
		row.payout.ResolvedAt = update.ResolvedAt
	}
	return nil
}

func (r *fakePayoutRepo) HasOpen(_ context.Context, userID uuid.UUID) (bool, error) {
	for _, row := range r.u.session().payouts {
		if row.payout.UserID == userID && row.payout.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePayoutRepo) ListByStatusOlderThan(
	_ context.Context,
	status ledger.PayoutStatus,
	threshold time.Time,
) ([]*ledger.Payout, error) {
	s := r.u.session()
	var rows []*payoutRow
	for _, row := range s.payouts {
		if row.payout.Status == status && row.payout.CreatedAt.Before(threshold) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]*ledger.Payout, 0, len(rows))
	for _, row := range rows {
		p, err := payoutToDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fakePayoutRepo) Stats(_ context.Context, userID uuid.UUID) (*ledger.PayoutStats, error) {
	s := r.u.session()
	stats := &ledger.PayoutStats{CompletedTotal: money.Zero(r.u.currency)}
	var completed int64
	for _, row := range s.payouts {
		if row.payout.UserID != userID {
			continue
		}
		stats.RequestedCount++
		switch row.payout.Status {
		case ledger.PayoutCompleted:
			stats.CompletedCount++
			completed += row.amount
		case ledger.PayoutFailed:
			stats.FailedCount++
		case ledger.PayoutRejected:
			stats.RejectedCount++
		}
	}
	var err error
	if stats.CompletedTotal, err = money.New(completed, r.u.currency); err != nil {
		return nil, err
	}
	return stats, nil
}

func payoutToDomain(row *payoutRow) (*ledger.Payout, error) {
	amount, err := money.New(row.amount, money.Code(row.currency))
	if err != nil {
		return nil, err
	}
	p := row.payout
	p.RequestedAmount = amount
	return &p, nil
}

type fakeConnectAccountRepo struct{ u *FakeUoW }

func (r *fakeConnectAccountRepo) Get(_ context.Context, userID uuid.UUID) (*ledger.ConnectAccount, error) {
	account, ok := r.u.session().accounts[userID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *fakeConnectAccountRepo) GetByProviderID(_ context.Context, providerAccountID string) (*ledger.ConnectAccount, error) {
	for _, account := range r.u.session().accounts {
		if account.ProviderAccountID == providerAccountID {
			cp := *account
			return &cp, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (r *fakeConnectAccountRepo) Upsert(_ context.Context, upsert dto.ConnectAccountUpsert) error {
	s := r.u.session()
	now := time.Now()
	if existing, ok := s.accounts[upsert.UserID]; ok {
		existing.ProviderAccountID = upsert.ProviderAccountID
		existing.OnboardingComplete = upsert.OnboardingComplete
		existing.Status = upsert.Status
		existing.UpdatedAt = now
		return nil
	}
	s.accounts[upsert.UserID] = &ledger.ConnectAccount{
		UserID:             upsert.UserID,
		ProviderAccountID:  upsert.ProviderAccountID,
		OnboardingComplete: upsert.OnboardingComplete,
		Status:             upsert.Status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return nil
}
