package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"bankledger/internal/infrastructure/database"
	"bankledger/internal/model"
	"bankledger/pkg/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func fixedClock(ts ...time.Time) Clock {
	i := 0
	return func() time.Time {
		t := ts[i]
		if i < len(ts)-1 {
			i++
		}
		return t
	}
}

func seedAccount(t *testing.T, db *gorm.DB, repo *AccountRepository, id, number string, owner int64, v model.Variant, balance string) *model.Account {
	t.Helper()
	b := money.MustParse(balance)
	a := &model.Account{
		ID:             id,
		AccountNumber:  number,
		OwnerID:        owner,
		Variant:        v,
		Balance:        b,
		OpeningBalance: b,
		IsActive:       true,
	}
	require.NoError(t, repo.Create(context.Background(), nil, a))
	return a
}

func TestAccountCreateAndGet(t *testing.T) {
	db := database.OpenTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	seedAccount(t, db, repo, "a1", "100000000001", 7, model.VariantSavings, "1000.50")

	got, err := repo.GetByAccountNumber(ctx, "100000000001")
	require.NoError(t, err)
	assert.Equal(t, "1000.50", got.Balance.String())
	assert.Equal(t, model.VariantSavings, got.Variant)
	assert.True(t, got.IsActive)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.GetByAccountNumber(ctx, "999999999999")
	assert.ErrorIs(t, err, model.ErrAccountNotFound)

	exists, err := repo.ExistsByAccountNumber(ctx, nil, "100000000001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAccountNumberIsUnique(t *testing.T) {
	db := database.OpenTestDB(t)
	repo := NewAccountRepository(db)

	seedAccount(t, db, repo, "a1", "100000000001", 7, model.VariantSavings, "1000")
	dup := &model.Account{ID: "a2", AccountNumber: "100000000001", OwnerID: 8, Variant: model.VariantCurrent, IsActive: true}
	assert.Error(t, repo.Create(context.Background(), nil, dup))
}

func TestAccountUpdateVersionGuard(t *testing.T) {
	db := database.OpenTestDB(t)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewAccountRepository(db).WithClock(fixedClock(t0, t0.Add(time.Second), t0.Add(-time.Hour)))
	ctx := context.Background()

	a := seedAccount(t, db, repo, "a1", "100000000001", 7, model.VariantCurrent, "0")

	a.Balance = money.MustParse("-510.00")
	require.NoError(t, repo.Update(ctx, nil, a))
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, t0.Add(time.Second), a.UpdatedAt)

	stale := *a
	stale.Version = 0
	stale.Balance = money.MustParse("1.00")
	err := repo.Update(ctx, nil, &stale)
	assert.ErrorIs(t, err, model.ErrConcurrentConflict)

	// 时钟回拨时 UpdatedAt 不回退
	a.Balance = money.MustParse("-500.00")
	require.NoError(t, repo.Update(ctx, nil, a))
	assert.Equal(t, t0.Add(time.Second), a.UpdatedAt)

	got, err := repo.GetByAccountNumber(ctx, "100000000001")
	require.NoError(t, err)
	assert.Equal(t, "-500.00", got.Balance.String())
	assert.Equal(t, 2, got.Version)
}

func TestListByOwnerAndBatch(t *testing.T) {
	db := database.OpenTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	seedAccount(t, db, repo, "a1", "100000000001", 7, model.VariantSavings, "1000")
	seedAccount(t, db, repo, "a2", "100000000002", 7, model.VariantCurrent, "2000")
	closed := seedAccount(t, db, repo, "a3", "100000000003", 7, model.VariantSavings, "600")
	seedAccount(t, db, repo, "a4", "100000000004", 8, model.VariantSavings, "700")

	closed.IsActive = false
	require.NoError(t, repo.Update(ctx, nil, closed))

	all, err := repo.ListByOwner(ctx, 7, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.ListByOwner(ctx, 7, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	batch, err := repo.ListBatch(ctx, "", model.VariantSavings, true, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "100000000001", batch[0].AccountNumber)

	batch, err = repo.ListBatch(ctx, batch[0].AccountNumber, model.VariantSavings, true, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "100000000004", batch[0].AccountNumber)

	batch, err = repo.ListBatch(ctx, "", "", false, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 4)
}

func TestLedgerAppendAndList(t *testing.T) {
	db := database.OpenTestDB(t)
	accounts := NewAccountRepository(db)
	ledger := NewLedgerRepository(db)
	ctx := context.Background()

	a := seedAccount(t, db, accounts, "a1", "100000000001", 7, model.VariantCurrent, "0")

	last, err := ledger.LastByAccountID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, last)

	err = db.Transaction(func(tx *gorm.DB) error {
		a.Balance = money.MustParse("-510.00")
		if err := accounts.Update(ctx, tx, a); err != nil {
			return err
		}
		return ledger.Append(ctx, tx, a,
			&model.LedgerEntry{TransactionID: "TXN0000000001", AccountID: a.ID, AccountNumber: a.AccountNumber, Type: model.EntryTypeWithdrawal, Amount: money.MustParse("500"), BalanceAfter: money.MustParse("-500"), Reference: "OP1"},
			&model.LedgerEntry{TransactionID: "TXN0000000002", AccountID: a.ID, AccountNumber: a.AccountNumber, Type: model.EntryTypeFee, Amount: money.MustParse("10"), BalanceAfter: money.MustParse("-510"), Reference: "OP1"},
		)
	})
	require.NoError(t, err)

	entries, err := ledger.ListByAccountID(ctx, a.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.EntryTypeFee, entries[0].Type, "most recent first")
	assert.Equal(t, "-510.00", entries[0].BalanceAfter.String())
	assert.Equal(t, a.UpdatedAt.Unix(), entries[0].CreatedAt.Unix())

	page, err := ledger.ListByAccountID(ctx, a.ID, entries[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "TXN0000000001", page[0].TransactionID)

	last, err = ledger.LastByAccountID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "TXN0000000002", last.TransactionID)

	exists, err := ledger.ExistsTransactionID(ctx, nil, "TXN0000000001")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := ledger.GetByTransactionID(ctx, "TXN0000000009")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLedgerAppendRejectsForeignEntry(t *testing.T) {
	db := database.OpenTestDB(t)
	accounts := NewAccountRepository(db)
	ledger := NewLedgerRepository(db)

	a := seedAccount(t, db, accounts, "a1", "100000000001", 7, model.VariantCurrent, "0")
	err := ledger.Append(context.Background(), db, a, &model.LedgerEntry{AccountID: "other"})
	assert.Error(t, err)
}

func TestLedgerRollbackLeavesNoTrace(t *testing.T) {
	db := database.OpenTestDB(t)
	accounts := NewAccountRepository(db)
	ledger := NewLedgerRepository(db)
	ctx := context.Background()

	a := seedAccount(t, db, accounts, "a1", "100000000001", 7, model.VariantSavings, "1000")

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		a.Balance = money.MustParse("800")
		if err := accounts.Update(ctx, tx, a); err != nil {
			return err
		}
		if err := ledger.Append(ctx, tx, a, &model.LedgerEntry{TransactionID: "TXN0000000001", AccountID: a.ID, AccountNumber: a.AccountNumber, Type: model.EntryTypeWithdrawal, Amount: money.MustParse("200"), BalanceAfter: money.MustParse("800"), Reference: "OP1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := accounts.GetByAccountNumber(ctx, a.AccountNumber)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", got.Balance.String())

	entries, err := ledger.ListByAccountID(ctx, a.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOutboxLifecycle(t *testing.T) {
	db := database.OpenTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	err := repo.CreateEvent(ctx, nil, "ledger-events", "100000000001", &model.LedgerEvent{Event: model.EventDeposit, Reference: "OP1"})
	require.NoError(t, err)

	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EventDeposit, pending[0].EventType)
	assert.Contains(t, pending[0].Payload, `"reference":"OP1"`)

	require.NoError(t, repo.IncrementRetryCount(ctx, pending[0].ID))
	require.NoError(t, repo.MarkAsFailed(ctx, pending[0].ID))

	failed, err := repo.GetFailedMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].RetryCount)

	require.NoError(t, repo.UpdateStatus(ctx, failed[0].ID, model.OutboxStatusSent))
	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
