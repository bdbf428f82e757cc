package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fairbet/native/common"
)

var errNilState = errors.New("ledger engine: state not configured")

// Store is the persistence surface the engine depends on. Apply must commit
// the wallet and the journal entry as one atomic unit and enforce the
// uniqueness of ExternalTxnID at commit time, returning
// ErrDuplicateExternalTxn on conflict. ApplyRollback additionally marks the
// original transaction rolled back within the same unit.
type Store interface {
	Wallet(userID string) (*Wallet, bool, error)
	Apply(wallet *Wallet, txns ...*Transaction) error
	ApplyRollback(wallet *Wallet, inverse *Transaction, originalTxnID string) error
	TransactionByExternalID(externalTxnID string) (*Transaction, bool, error)
}

// Engine is the balance ledger: three pools per account, atomic multi-pool
// mutation, an immutable transaction journal, and idempotent handling of
// externally-sourced mutations. Mutations on one account are linearized by a
// per-account lock; unrelated accounts proceed fully in parallel.
type Engine struct {
	state  Store
	locks  *common.AccountLocks
	logger *slog.Logger
	nowFn  func() int64
	idFn   func() string
}

func NewEngine(state Store) *Engine {
	return &Engine{
		state:  state,
		locks:  common.NewAccountLocks(),
		logger: slog.Default(),
		nowFn:  func() int64 { return time.Now().Unix() },
		idFn:   uuid.NewString,
	}
}

// SetLogger overrides the logger used for integrity reporting.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		e.logger = slog.Default()
		return
	}
	e.logger = logger
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetIDFunc overrides transaction id generation, primarily for tests.
func (e *Engine) SetIDFunc(id func() string) {
	if id == nil {
		e.idFn = uuid.NewString
		return
	}
	e.idFn = id
}

// CreditReal adds to the real pool.
func (e *Engine) CreditReal(userID string, amount int64, txnType, description string, ref Reference) (*Transaction, error) {
	return e.Credit(userID, PoolReal, amount, txnType, description, ref)
}

// DebitReal removes from the real pool, failing with ErrInsufficientBalance
// when the pool cannot cover the amount.
func (e *Engine) DebitReal(userID string, amount int64, txnType, description string, ref Reference) (*Transaction, error) {
	return e.Debit(userID, PoolReal, amount, txnType, description, ref)
}

// CreditBonus adds to the bonus pool.
func (e *Engine) CreditBonus(userID string, amount int64, txnType, description string, ref Reference) (*Transaction, error) {
	return e.Credit(userID, PoolBonus, amount, txnType, description, ref)
}

// DebitBonus removes from the bonus pool.
func (e *Engine) DebitBonus(userID string, amount int64, txnType, description string, ref Reference) (*Transaction, error) {
	return e.Debit(userID, PoolBonus, amount, txnType, description, ref)
}

// Credit applies a single-pool credit under the account's exclusive lease.
func (e *Engine) Credit(userID string, pool BalancePool, amount int64, txnType, description string, ref Reference) (*Transaction, error) {
	if err := e.validate(userID, pool, amount); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	return e.mutateLocked(userID, pool, amount, txnType, description, ref, "")
}

// Debit applies a single-pool debit under the account's exclusive lease.
func (e *Engine) Debit(userID string, pool BalancePool, amount int64, txnType, description string, ref Reference) (*Transaction, error) {
	if err := e.validate(userID, pool, amount); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	return e.mutateLocked(userID, pool, -amount, txnType, description, ref, "")
}

// CreditWin pays out a game win into the given pool and advances the
// lifetime won counter.
func (e *Engine) CreditWin(userID string, amount int64, pool BalancePool, description string, ref Reference) (*Transaction, error) {
	if err := e.validate(userID, pool, amount); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	wallet, err := e.loadLocked(userID)
	if err != nil {
		return nil, err
	}
	txn := e.journalEntry(wallet, pool, amount, TxnWin, description, ref, "")
	wallet.setPool(pool, wallet.Pool(pool)+amount)
	wallet.LifetimeWon += amount
	wallet.UpdatedAt = e.nowFn()
	if err := e.state.Apply(wallet, txn); err != nil {
		return nil, fmt.Errorf("ledger engine: commit win: %w", err)
	}
	return txn.Clone(), nil
}

// DeductBet draws a stake from the bonus pool first and the remainder from
// the real pool, recording one journal entry per pool touched. It fails with
// ErrInsufficientBalance, mutating nothing, when bonus+real cannot cover the
// stake. The split is returned for wagering-progress accounting.
func (e *Engine) DeductBet(userID string, amount int64, ref Reference) (bonusUsed, realUsed int64, err error) {
	if err := e.validate(userID, PoolReal, amount); err != nil {
		return 0, 0, err
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	wallet, err := e.loadLocked(userID)
	if err != nil {
		return 0, 0, err
	}
	if wallet.Bonus+wallet.Real < amount {
		return 0, 0, ErrInsufficientBalance
	}
	bonusUsed = min64(wallet.Bonus, amount)
	realUsed = amount - bonusUsed

	txns := make([]*Transaction, 0, 2)
	if bonusUsed > 0 {
		txns = append(txns, e.journalEntry(wallet, PoolBonus, -bonusUsed, TxnBet, "bet stake (bonus)", ref, ""))
		wallet.Bonus -= bonusUsed
	}
	if realUsed > 0 {
		txns = append(txns, e.journalEntry(wallet, PoolReal, -realUsed, TxnBet, "bet stake", ref, ""))
		wallet.Real -= realUsed
	}
	wallet.LifetimeWagered += amount
	wallet.UpdatedAt = e.nowFn()
	if err := e.state.Apply(wallet, txns...); err != nil {
		return 0, 0, fmt.Errorf("ledger engine: commit bet: %w", err)
	}
	return bonusUsed, realUsed, nil
}

// RefundBet returns a previously deducted stake to the pools it was drawn
// from and rolls the lifetime wagered counter back, so an aborted bet leaves
// no trace in wagering progress. The split must be the one DeductBet
// reported.
func (e *Engine) RefundBet(userID string, bonusUsed, realUsed int64, ref Reference) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("ledger engine: user id required")
	}
	if bonusUsed < 0 || realUsed < 0 || bonusUsed+realUsed <= 0 {
		return ErrInvalidAmount
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	wallet, err := e.loadLocked(userID)
	if err != nil {
		return err
	}
	txns := make([]*Transaction, 0, 2)
	if bonusUsed > 0 {
		txns = append(txns, e.journalEntry(wallet, PoolBonus, bonusUsed, TxnRefund, "bet refund (bonus)", ref, ""))
		wallet.Bonus += bonusUsed
	}
	if realUsed > 0 {
		txns = append(txns, e.journalEntry(wallet, PoolReal, realUsed, TxnRefund, "bet refund", ref, ""))
		wallet.Real += realUsed
	}
	wallet.LifetimeWagered -= bonusUsed + realUsed
	if wallet.LifetimeWagered < 0 {
		wallet.LifetimeWagered = 0
	}
	wallet.UpdatedAt = e.nowFn()
	if err := e.state.Apply(wallet, txns...); err != nil {
		return fmt.Errorf("ledger engine: commit refund: %w", err)
	}
	return nil
}

// LockBalance moves funds from the real pool into the locked pool, e.g. when
// a withdrawal enters review. The wallet total is unchanged.
func (e *Engine) LockBalance(userID string, amount int64, ref Reference) error {
	return e.moveBetweenPools(userID, PoolReal, PoolLocked, amount, TxnLock, ref)
}

// UnlockBalance returns locked funds to the real pool, e.g. when a pending
// withdrawal is cancelled. The wallet total is unchanged.
func (e *Engine) UnlockBalance(userID string, amount int64, ref Reference) error {
	return e.moveBetweenPools(userID, PoolLocked, PoolReal, amount, TxnUnlock, ref)
}

// ReleaseLockedBalance settles locked funds out of the wallet once the
// withdrawal they back has been paid.
func (e *Engine) ReleaseLockedBalance(userID string, amount int64, ref Reference) (*Transaction, error) {
	if err := e.validate(userID, PoolLocked, amount); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	return e.mutateLocked(userID, PoolLocked, -amount, TxnRelease, "withdrawal settled", ref, "")
}

// Balance returns a copy of the account's wallet.
func (e *Engine) Balance(userID string) (*Wallet, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	return e.loadLocked(userID)
}

func (e *Engine) moveBetweenPools(userID string, from, to BalancePool, amount int64, txnType string, ref Reference) error {
	if err := e.validate(userID, from, amount); err != nil {
		return err
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	wallet, err := e.loadLocked(userID)
	if err != nil {
		return err
	}
	if wallet.Pool(from) < amount {
		return ErrInsufficientBalance
	}
	debit := e.journalEntry(wallet, from, -amount, txnType, fmt.Sprintf("%s: %s -> %s", txnType, from, to), ref, "")
	wallet.setPool(from, wallet.Pool(from)-amount)
	credit := e.journalEntry(wallet, to, amount, txnType, fmt.Sprintf("%s: %s -> %s", txnType, from, to), ref, "")
	wallet.setPool(to, wallet.Pool(to)+amount)
	wallet.UpdatedAt = e.nowFn()
	if err := e.state.Apply(wallet, debit, credit); err != nil {
		return fmt.Errorf("ledger engine: commit %s: %w", txnType, err)
	}
	return nil
}

// mutateLocked applies a signed single-pool delta. Callers must hold the
// account lock.
func (e *Engine) mutateLocked(userID string, pool BalancePool, delta int64, txnType, description string, ref Reference, externalTxnID string) (*Transaction, error) {
	wallet, err := e.loadLocked(userID)
	if err != nil {
		return nil, err
	}
	if delta < 0 && wallet.Pool(pool) < -delta {
		return nil, ErrInsufficientBalance
	}
	txn := e.journalEntry(wallet, pool, delta, txnType, description, ref, externalTxnID)
	wallet.setPool(pool, wallet.Pool(pool)+delta)
	wallet.UpdatedAt = e.nowFn()
	if err := e.state.Apply(wallet, txn); err != nil {
		return nil, fmt.Errorf("ledger engine: commit %s: %w", txnType, err)
	}
	return txn.Clone(), nil
}

// loadLocked fetches the wallet, creating an empty one on first touch, and
// verifies the no-negative-pool invariant before handing it out.
func (e *Engine) loadLocked(userID string) (*Wallet, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	wallet, ok, err := e.state.Wallet(userID)
	if err != nil {
		return nil, fmt.Errorf("ledger engine: load wallet: %w", err)
	}
	if !ok {
		now := e.nowFn()
		return &Wallet{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
	}
	if wallet.Real < 0 || wallet.Bonus < 0 || wallet.Locked < 0 {
		e.logger.Error("negative balance pool observed",
			"user", userID,
			"real", wallet.Real,
			"bonus", wallet.Bonus,
			"locked", wallet.Locked,
		)
		return nil, ErrIntegrityViolation
	}
	return wallet, nil
}

func (e *Engine) journalEntry(wallet *Wallet, pool BalancePool, delta int64, txnType, description string, ref Reference, externalTxnID string) *Transaction {
	before := wallet.Pool(pool)
	return &Transaction{
		ID:            e.idFn(),
		UserID:        wallet.UserID,
		Type:          txnType,
		Amount:        delta,
		BalanceBefore: before,
		BalanceAfter:  before + delta,
		Pool:          pool,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		ExternalTxnID: externalTxnID,
		Description:   description,
		CreatedAt:     e.nowFn(),
	}
}

func (e *Engine) validate(userID string, pool BalancePool, amount int64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("ledger engine: user id required")
	}
	if !pool.Valid() {
		return fmt.Errorf("ledger engine: invalid balance pool %d", pool)
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
