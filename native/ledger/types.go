package ledger

import "fmt"

// BalancePool is one of the three named sub-balances composing a wallet.
type BalancePool uint8

const (
	PoolReal BalancePool = iota
	PoolBonus
	PoolLocked
)

// Valid reports whether the pool value is within the supported range.
func (p BalancePool) Valid() bool {
	switch p {
	case PoolReal, PoolBonus, PoolLocked:
		return true
	default:
		return false
	}
}

func (p BalancePool) String() string {
	switch p {
	case PoolReal:
		return "real"
	case PoolBonus:
		return "bonus"
	case PoolLocked:
		return "locked"
	default:
		return fmt.Sprintf("pool(%d)", uint8(p))
	}
}

// ParsePool canonicalises a pool name.
func ParsePool(raw string) (BalancePool, error) {
	switch raw {
	case "real":
		return PoolReal, nil
	case "bonus":
		return PoolBonus, nil
	case "locked":
		return PoolLocked, nil
	default:
		return 0, fmt.Errorf("ledger: unknown balance pool %q", raw)
	}
}

// Transaction types recorded in the journal.
const (
	TxnBet        = "bet"
	TxnWin        = "win"
	TxnDeposit    = "deposit"
	TxnWithdrawal = "withdrawal"
	TxnBonus      = "bonus"
	TxnLock       = "lock"
	TxnUnlock     = "unlock"
	TxnRelease    = "release"
	TxnRefund     = "refund"
	TxnRollback   = "rollback"
)

// Wallet is one account's balance state. Amounts are integer cents. No pool
// is ever negative; the engine aborts rather than persist a negative pool.
type Wallet struct {
	UserID          string
	Real            int64
	Bonus           int64
	Locked          int64
	LifetimeWagered int64
	LifetimeWon     int64
	CreatedAt       int64
	UpdatedAt       int64
}

// Clone returns a copy safe for the caller to mutate.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	clone := *w
	return &clone
}

// Total is the sum of all three pools.
func (w *Wallet) Total() int64 {
	if w == nil {
		return 0
	}
	return w.Real + w.Bonus + w.Locked
}

// Pool returns the balance held in the given pool.
func (w *Wallet) Pool(pool BalancePool) int64 {
	switch pool {
	case PoolReal:
		return w.Real
	case PoolBonus:
		return w.Bonus
	case PoolLocked:
		return w.Locked
	default:
		return 0
	}
}

func (w *Wallet) setPool(pool BalancePool, value int64) {
	switch pool {
	case PoolReal:
		w.Real = value
	case PoolBonus:
		w.Bonus = value
	case PoolLocked:
		w.Locked = value
	}
}

// Reference ties a transaction back to the economic event that caused it.
type Reference struct {
	Type string
	ID   string
}

// Transaction is one immutable journal entry. BalanceBefore and BalanceAfter
// track the affected pool, so BalanceAfter-BalanceBefore always equals the
// signed amount.
type Transaction struct {
	ID            string
	UserID        string
	Type          string
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	Pool          BalancePool
	ReferenceType string
	ReferenceID   string
	ExternalTxnID string
	Description   string
	RolledBack    bool
	CreatedAt     int64
}

// Clone returns a copy safe for the caller to mutate.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
