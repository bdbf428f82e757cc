package gamestore

import (
	"errors"
	"fmt"
	"testing"

	"fairbet/native/ledger"
	"fairbet/native/round"
	"fairbet/native/seeds"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestSeedRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if _, ok, err := store.ActiveSeed("alice"); err != nil || ok {
		t.Fatalf("expected no seed, got ok=%v err=%v", ok, err)
	}

	seed := &seeds.Seed{
		UserID:         "alice",
		ServerSeed:     "aa11",
		ServerSeedHash: "hash-1",
		ClientSeed:     "lucky",
		Nonce:          0,
		Active:         true,
		CreatedAt:      100,
	}
	if err := store.PutSeed(seed); err != nil {
		t.Fatalf("put seed: %v", err)
	}

	got, ok, err := store.ActiveSeed("alice")
	if err != nil || !ok {
		t.Fatalf("load seed: ok=%v err=%v", ok, err)
	}
	if got.ServerSeed != "aa11" || got.ClientSeed != "lucky" || got.Nonce != 0 {
		t.Fatalf("unexpected seed: %+v", got)
	}

	// Same commitment updates in place rather than forking a second row.
	seed.Nonce = 7
	if err := store.PutSeed(seed); err != nil {
		t.Fatalf("advance nonce: %v", err)
	}
	got, _, err = store.ActiveSeed("alice")
	if err != nil {
		t.Fatalf("reload seed: %v", err)
	}
	if got.Nonce != 7 {
		t.Fatalf("nonce not persisted: %d", got.Nonce)
	}

	var count int64
	if err := store.DB().Model(&seedRecord{}).Where("user_id = ?", "alice").Count(&count).Error; err != nil {
		t.Fatalf("count seeds: %v", err)
	}
	if count != 1 {
		t.Fatalf("upsert forked rows: %d", count)
	}
}

func TestSeedRevealAndReplace(t *testing.T) {
	store := openTestStore(t)

	old := &seeds.Seed{UserID: "bob", ServerSeed: "s1", ServerSeedHash: "h1", Active: true, Nonce: 3}
	if err := store.PutSeed(old); err != nil {
		t.Fatalf("put old: %v", err)
	}
	old.Active = false
	old.RevealedAt = 555
	if err := store.PutSeed(old); err != nil {
		t.Fatalf("reveal old: %v", err)
	}
	fresh := &seeds.Seed{UserID: "bob", ServerSeed: "s2", ServerSeedHash: "h2", Active: true}
	if err := store.PutSeed(fresh); err != nil {
		t.Fatalf("put fresh: %v", err)
	}

	got, ok, err := store.ActiveSeed("bob")
	if err != nil || !ok {
		t.Fatalf("load active: ok=%v err=%v", ok, err)
	}
	if got.ServerSeedHash != "h2" {
		t.Fatalf("wrong active seed: %s", got.ServerSeedHash)
	}
}

func TestWalletApplyAndJournal(t *testing.T) {
	store := openTestStore(t)

	wallet := &ledger.Wallet{UserID: "carol", Real: 500, CreatedAt: 1, UpdatedAt: 1}
	txn := &ledger.Transaction{
		ID:            "txn-1",
		UserID:        "carol",
		Type:          ledger.TxnDeposit,
		Amount:        500,
		BalanceBefore: 0,
		BalanceAfter:  500,
		Pool:          ledger.PoolReal,
		CreatedAt:     1,
	}
	if err := store.Apply(wallet, txn); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, ok, err := store.Wallet("carol")
	if err != nil || !ok {
		t.Fatalf("load wallet: ok=%v err=%v", ok, err)
	}
	if got.Real != 500 || got.Total() != 500 {
		t.Fatalf("unexpected wallet: %+v", got)
	}

	// Re-applying the same wallet row is an update, not a conflict.
	wallet.Real = 400
	if err := store.Apply(wallet, &ledger.Transaction{
		ID: "txn-2", UserID: "carol", Type: ledger.TxnBet,
		Amount: -100, BalanceBefore: 500, BalanceAfter: 400, Pool: ledger.PoolReal,
	}); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	got, _, _ = store.Wallet("carol")
	if got.Real != 400 {
		t.Fatalf("wallet not updated: %+v", got)
	}
}

func TestExternalTxnUniqueness(t *testing.T) {
	store := openTestStore(t)

	wallet := &ledger.Wallet{UserID: "dave", Real: 100}
	first := &ledger.Transaction{
		ID: "txn-1", UserID: "dave", Type: ledger.TxnDeposit,
		Amount: 100, BalanceAfter: 100, Pool: ledger.PoolReal,
		ExternalTxnID: "provider-77",
	}
	if err := store.Apply(wallet, first); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	dup := &ledger.Transaction{
		ID: "txn-2", UserID: "dave", Type: ledger.TxnDeposit,
		Amount: 100, BalanceBefore: 100, BalanceAfter: 200, Pool: ledger.PoolReal,
		ExternalTxnID: "provider-77",
	}
	wallet.Real = 200
	err := store.Apply(wallet, dup)
	if !errors.Is(err, ledger.ErrDuplicateExternalTxn) {
		t.Fatalf("expected duplicate external txn, got %v", err)
	}

	// The losing write must not have leaked a journal entry.
	var count int64
	if err := store.DB().Model(&transactionRecord{}).Where("external_txn_id = ?", "provider-77").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("duplicate journal entries: %d", count)
	}

	got, ok, err := store.TransactionByExternalID("provider-77")
	if err != nil || !ok {
		t.Fatalf("lookup external: ok=%v err=%v", ok, err)
	}
	if got.ID != "txn-1" {
		t.Fatalf("wrong transaction: %s", got.ID)
	}
}

func TestTransactionsWithoutExternalIDDoNotConflict(t *testing.T) {
	store := openTestStore(t)

	wallet := &ledger.Wallet{UserID: "erin", Real: 0}
	for i := 0; i < 3; i++ {
		wallet.Real += 10
		txn := &ledger.Transaction{
			ID: fmt.Sprintf("txn-%d", i), UserID: "erin", Type: ledger.TxnWin,
			Amount: 10, BalanceAfter: wallet.Real, Pool: ledger.PoolReal,
		}
		if err := store.Apply(wallet, txn); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
}

func TestApplyRollbackMarksOriginal(t *testing.T) {
	store := openTestStore(t)

	wallet := &ledger.Wallet{UserID: "frank", Real: 300}
	original := &ledger.Transaction{
		ID: "txn-1", UserID: "frank", Type: ledger.TxnDeposit,
		Amount: 300, BalanceAfter: 300, Pool: ledger.PoolReal,
		ExternalTxnID: "pay-9",
	}
	if err := store.Apply(wallet, original); err != nil {
		t.Fatalf("apply: %v", err)
	}

	wallet.Real = 0
	inverse := &ledger.Transaction{
		ID: "txn-2", UserID: "frank", Type: ledger.TxnRollback,
		Amount: -300, BalanceBefore: 300, BalanceAfter: 0, Pool: ledger.PoolReal,
	}
	if err := store.ApplyRollback(wallet, inverse, "txn-1"); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	got, _, err := store.TransactionByExternalID("pay-9")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !got.RolledBack {
		t.Fatal("original not marked rolled back")
	}

	// A second rollback of the same entry finds no eligible row.
	err = store.ApplyRollback(wallet, &ledger.Transaction{
		ID: "txn-3", UserID: "frank", Type: ledger.TxnRollback,
		Amount: -300, Pool: ledger.PoolReal,
	}, "txn-1")
	if !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRoundArchiveRoundTrip(t *testing.T) {
	store := openTestStore(t)

	snap := &round.Snapshot{
		ID:             "round-1",
		ServerSeed:     "seed",
		ServerSeedHash: "hash",
		ClientSeed:     "round-1",
		Nonce:          4,
		CrashPoint:     2.54,
		StartedAt:      10,
		EndedAt:        20,
		Bets: []round.BetView{
			{ID: "bet-1", UserID: "alice", Stake: 100, State: round.BetCashedOut, CashoutMultiplier: 1.5, Payout: 150},
			{ID: "bet-2", UserID: "bob", Stake: 200, State: round.BetLost},
		},
	}
	if err := store.ArchiveRound(snap); err != nil {
		t.Fatalf("archive: %v", err)
	}

	got, ok, err := store.RoundByID("round-1")
	if err != nil || !ok {
		t.Fatalf("load round: ok=%v err=%v", ok, err)
	}
	if got.CrashPoint != 2.54 || got.Nonce != 4 || len(got.Bets) != 2 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Bets[0].Payout != 150 || got.Bets[1].State != round.BetLost {
		t.Fatalf("unexpected bets: %+v", got.Bets)
	}

	if _, ok, err := store.RoundByID("missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}
