package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

type mockStore struct {
	mu       sync.Mutex
	wallets  map[string]*Wallet
	journal  []*Transaction
	external map[string]*Transaction
}

func newMockStore() *mockStore {
	return &mockStore{
		wallets:  make(map[string]*Wallet),
		external: make(map[string]*Transaction),
	}
}

func (m *mockStore) Wallet(userID string) (*Wallet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wallet, ok := m.wallets[userID]
	if !ok {
		return nil, false, nil
	}
	return wallet.Clone(), true, nil
}

func (m *mockStore) Apply(wallet *Wallet, txns ...*Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range txns {
		if txn.ExternalTxnID != "" {
			if _, exists := m.external[txn.ExternalTxnID]; exists {
				return ErrDuplicateExternalTxn
			}
		}
	}
	m.wallets[wallet.UserID] = wallet.Clone()
	for _, txn := range txns {
		entry := txn.Clone()
		m.journal = append(m.journal, entry)
		if entry.ExternalTxnID != "" {
			m.external[entry.ExternalTxnID] = entry
		}
	}
	return nil
}

func (m *mockStore) ApplyRollback(wallet *Wallet, inverse *Transaction, originalTxnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[wallet.UserID] = wallet.Clone()
	m.journal = append(m.journal, inverse.Clone())
	for _, txn := range m.journal {
		if txn.ID == originalTxnID {
			txn.RolledBack = true
		}
	}
	for _, txn := range m.external {
		if txn.ID == originalTxnID {
			txn.RolledBack = true
		}
	}
	return nil
}

func (m *mockStore) TransactionByExternalID(externalTxnID string) (*Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.external[externalTxnID]
	if !ok {
		return nil, false, nil
	}
	return txn.Clone(), true, nil
}

func (m *mockStore) journalLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.journal)
}

func newTestEngine() (*Engine, *mockStore) {
	store := newMockStore()
	engine := NewEngine(store)
	engine.SetNowFunc(func() int64 { return 1700000000 })
	counter := 0
	engine.SetIDFunc(func() string {
		counter++
		return fmt.Sprintf("txn-%d", counter)
	})
	return engine, store
}

func fund(t *testing.T, engine *Engine, userID string, real, bonus int64) {
	t.Helper()
	if real > 0 {
		if _, err := engine.CreditReal(userID, real, TxnDeposit, "test deposit", Reference{}); err != nil {
			t.Fatal(err)
		}
	}
	if bonus > 0 {
		if _, err := engine.CreditBonus(userID, bonus, TxnBonus, "test bonus", Reference{}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCreditDebitJournalInvariant(t *testing.T) {
	engine, _ := newTestEngine()
	credit, err := engine.CreditReal("user-1", 500, TxnDeposit, "deposit", Reference{Type: "deposit", ID: "d-1"})
	if err != nil {
		t.Fatal(err)
	}
	if credit.BalanceBefore != 0 || credit.BalanceAfter != 500 || credit.Amount != 500 {
		t.Fatalf("credit journal entry: %+v", credit)
	}
	debit, err := engine.DebitReal("user-1", 200, TxnWithdrawal, "withdrawal", Reference{})
	if err != nil {
		t.Fatal(err)
	}
	if debit.BalanceAfter-debit.BalanceBefore != debit.Amount {
		t.Fatalf("journal invariant broken: %+v", debit)
	}
	if debit.Amount != -200 || debit.BalanceAfter != 300 {
		t.Fatalf("debit journal entry: %+v", debit)
	}
}

func TestDebitInsufficientBalanceLeavesStateUntouched(t *testing.T) {
	engine, store := newTestEngine()
	fund(t, engine, "user-1", 100, 0)
	before := store.journalLen()
	_, err := engine.DebitReal("user-1", 101, TxnWithdrawal, "withdrawal", Reference{})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if store.journalLen() != before {
		t.Fatal("failed debit must not write journal entries")
	}
	wallet, err := engine.Balance("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if wallet.Real != 100 {
		t.Fatalf("balance mutated by failed debit: %d", wallet.Real)
	}
}

func TestValidationRejectedBeforeLedgerTouched(t *testing.T) {
	engine, store := newTestEngine()
	if _, err := engine.CreditReal("", 10, TxnDeposit, "", Reference{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := engine.CreditReal("user-1", 0, TxnDeposit, "", Reference{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := engine.CreditReal("user-1", -5, TxnDeposit, "", Reference{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if store.journalLen() != 0 {
		t.Fatal("validation failures must not write journal entries")
	}
}

func TestConcurrentDebitsExactlyOneWins(t *testing.T) {
	engine, _ := newTestEngine()
	engine.SetIDFunc(nil) // uuids, since the counter id func is not goroutine safe
	fund(t, engine, "user-1", 150, 0)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.DebitReal("user-1", 100, TxnBet, "stake", Reference{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var oks, insufficient int
	for err := range results {
		switch {
		case err == nil:
			oks++
		case errors.Is(err, ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if oks != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one winner: oks=%d insufficient=%d", oks, insufficient)
	}
	wallet, err := engine.Balance("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if wallet.Real != 50 {
		t.Fatalf("final balance: got %d want 50", wallet.Real)
	}
}

func TestConcurrentMutationConservation(t *testing.T) {
	engine, _ := newTestEngine()
	engine.SetIDFunc(nil)
	fund(t, engine, "user-1", 10_000, 0)

	const workers = 40
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = engine.CreditReal("user-1", 7, TxnDeposit, "c", Reference{})
			} else {
				_, _ = engine.DebitReal("user-1", 7, TxnWithdrawal, "d", Reference{})
			}
		}(i)
	}
	wg.Wait()

	wallet, err := engine.Balance("user-1")
	if err != nil {
		t.Fatal(err)
	}
	// Equal numbers of credits and debits of the same size, none can fail at
	// this funding level, so the balance must be conserved.
	if wallet.Real != 10_000 {
		t.Fatalf("conservation broken: got %d want 10000", wallet.Real)
	}
	if wallet.Real < 0 || wallet.Bonus < 0 || wallet.Locked < 0 {
		t.Fatalf("negative pool: %+v", wallet)
	}
}

func TestDeductBetBonusFirst(t *testing.T) {
	engine, _ := newTestEngine()
	fund(t, engine, "user-1", 100, 30)

	bonusUsed, realUsed, err := engine.DeductBet("user-1", 50, Reference{Type: "bet", ID: "b-1"})
	if err != nil {
		t.Fatal(err)
	}
	if bonusUsed != 30 || realUsed != 20 {
		t.Fatalf("split: bonus=%d real=%d, want 30/20", bonusUsed, realUsed)
	}
	wallet, err := engine.Balance("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if wallet.Bonus != 0 || wallet.Real != 80 {
		t.Fatalf("pools after bet: %+v", wallet)
	}
	if wallet.LifetimeWagered != 50 {
		t.Fatalf("lifetime wagered: got %d want 50", wallet.LifetimeWagered)
	}
}

func TestDeductBetBonusOnly(t *testing.T) {
	engine, store := newTestEngine()
	fund(t, engine, "user-1", 100, 60)
	before := store.journalLen()
	bonusUsed, realUsed, err := engine.DeductBet("user-1", 40, Reference{})
	if err != nil {
		t.Fatal(err)
	}
	if bonusUsed != 40 || realUsed != 0 {
		t.Fatalf("split: bonus=%d real=%d, want 40/0", bonusUsed, realUsed)
	}
	if store.journalLen() != before+1 {
		t.Fatal("bonus-only bet should write exactly one journal entry")
	}
}

func TestRefundBetRestoresSplitAndWageringProgress(t *testing.T) {
	engine, store := newTestEngine()
	fund(t, engine, "user-1", 100, 30)

	ref := Reference{Type: "round", ID: "r-1"}
	bonusUsed, realUsed, err := engine.DeductBet("user-1", 50, ref)
	if err != nil {
		t.Fatal(err)
	}
	before := store.journalLen()
	if err := engine.RefundBet("user-1", bonusUsed, realUsed, ref); err != nil {
		t.Fatal(err)
	}

	wallet, err := engine.Balance("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if wallet.Real != 100 || wallet.Bonus != 30 {
		t.Fatalf("pools after refund: %+v", wallet)
	}
	if wallet.LifetimeWagered != 0 {
		t.Fatalf("lifetime wagered after refund: got %d want 0", wallet.LifetimeWagered)
	}
	// One refund entry per pool drawn from, each journaled.
	if store.journalLen() != before+2 {
		t.Fatalf("journal entries: got %d want %d", store.journalLen(), before+2)
	}

	if err := engine.RefundBet("user-1", 0, 0, ref); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero refund: expected ErrInvalidAmount, got %v", err)
	}
}

func TestDeductBetInsufficientAcrossPools(t *testing.T) {
	engine, _ := newTestEngine()
	fund(t, engine, "user-1", 20, 20)
	_, _, err := engine.DeductBet("user-1", 41, Reference{})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	wallet, err := engine.Balance("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if wallet.Real != 20 || wallet.Bonus != 20 {
		t.Fatalf("pools mutated by failed bet: %+v", wallet)
	}
}

func TestCreditWinAdvancesLifetimeWon(t *testing.T) {
	engine, _ := newTestEngine()
	if _, err := engine.CreditWin("user-1", 250, PoolReal, "crash win 2.5x", Reference{Type: "round", ID: "r-1"}); err != nil {
		t.Fatal(err)
	}
	wallet, err := engine.Balance("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if wallet.Real != 250 || wallet.LifetimeWon != 250 {
		t.Fatalf("win not recorded: %+v", wallet)
	}
}

func TestLockUnlockReleaseFlow(t *testing.T) {
	engine, _ := newTestEngine()
	fund(t, engine, "user-1", 1000, 0)

	if err := engine.LockBalance("user-1", 400, Reference{Type: "withdrawal", ID: "w-1"}); err != nil {
		t.Fatal(err)
	}
	wallet, _ := engine.Balance("user-1")
	if wallet.Real != 600 || wallet.Locked != 400 {
		t.Fatalf("after lock: %+v", wallet)
	}
	if wallet.Total() != 1000 {
		t.Fatalf("lock changed the total: %d", wallet.Total())
	}

	if err := engine.UnlockBalance("user-1", 100, Reference{Type: "withdrawal", ID: "w-1"}); err != nil {
		t.Fatal(err)
	}
	wallet, _ = engine.Balance("user-1")
	if wallet.Real != 700 || wallet.Locked != 300 {
		t.Fatalf("after unlock: %+v", wallet)
	}

	if _, err := engine.ReleaseLockedBalance("user-1", 300, Reference{Type: "withdrawal", ID: "w-1"}); err != nil {
		t.Fatal(err)
	}
	wallet, _ = engine.Balance("user-1")
	if wallet.Locked != 0 || wallet.Real != 700 {
		t.Fatalf("after release: %+v", wallet)
	}

	if err := engine.UnlockBalance("user-1", 1, Reference{}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance unlocking empty pool, got %v", err)
	}
}

func TestNegativePoolIsIntegrityViolation(t *testing.T) {
	engine, store := newTestEngine()
	fund(t, engine, "user-1", 100, 0)
	store.mu.Lock()
	store.wallets["user-1"].Real = -5
	store.mu.Unlock()

	_, err := engine.Balance("user-1")
	if !errors.Is(err, ErrIntegrityViolation) {
		t.Fatalf("expected ErrIntegrityViolation, got %v", err)
	}
}
