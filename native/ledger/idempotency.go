package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ExternalDirection says which way an externally-sourced mutation moves
// funds.
type ExternalDirection uint8

const (
	ExternalDebit ExternalDirection = iota
	ExternalCredit
)

func (d ExternalDirection) String() string {
	if d == ExternalCredit {
		return "credit"
	}
	return "debit"
}

// ExternalMutation is a mutation delivered by an external system (a slot
// provider callback, a payment processor) under at-least-once delivery. The
// ExternalTxnID is the dedupe key: the mutation takes effect at most once no
// matter how many times it is delivered.
type ExternalMutation struct {
	ExternalTxnID string
	UserID        string
	Direction     ExternalDirection
	Pool          BalancePool
	Amount        int64
	Type          string
	Description   string
	Reference     Reference
}

// ExternalResult reports the effect of an external mutation. Duplicate is
// true when the mutation had already been applied; the transaction and
// balance then describe the original application, so every delivery of the
// same external id observes the same response.
type ExternalResult struct {
	Transaction *Transaction
	Balance     int64
	Duplicate   bool
}

// ApplyExternal applies an externally-sourced mutation exactly once. A
// duplicate delivery is not an error: the original transaction's balance is
// returned unchanged. The lookup and the mutation race is closed at commit
// time by the store's uniqueness guarantee, not by the read: if two
// deliveries interleave past the lookup, the loser's commit fails with
// ErrDuplicateExternalTxn and is converted into a replay of the winner.
func (e *Engine) ApplyExternal(m ExternalMutation) (*ExternalResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	externalID := strings.TrimSpace(m.ExternalTxnID)
	if externalID == "" {
		return nil, fmt.Errorf("ledger engine: external transaction id required")
	}
	if err := e.validate(m.UserID, m.Pool, m.Amount); err != nil {
		return nil, err
	}
	txnType := m.Type
	if txnType == "" {
		if m.Direction == ExternalCredit {
			txnType = TxnWin
		} else {
			txnType = TxnBet
		}
	}

	unlock := e.locks.Lock(m.UserID)
	defer unlock()

	if result, ok, err := e.replayLocked(externalID); err != nil {
		return nil, err
	} else if ok {
		return result, nil
	}

	delta := m.Amount
	if m.Direction == ExternalDebit {
		delta = -delta
	}
	txn, err := e.mutateLocked(m.UserID, m.Pool, delta, txnType, m.Description, m.Reference, externalID)
	if err != nil {
		if errors.Is(err, ErrDuplicateExternalTxn) {
			// Lost the commit race to a concurrent delivery of the same id.
			result, ok, lookupErr := e.replayLocked(externalID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if ok {
				return result, nil
			}
		}
		return nil, err
	}
	return &ExternalResult{Transaction: txn, Balance: txn.BalanceAfter}, nil
}

// RollbackExternal reverses a previously applied external mutation: it
// applies the inverse delta and marks the original transaction rolled back in
// the same atomic unit, so the same rollback cannot land twice.
func (e *Engine) RollbackExternal(externalTxnID string) (*ExternalResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	externalTxnID = strings.TrimSpace(externalTxnID)
	if externalTxnID == "" {
		return nil, fmt.Errorf("ledger engine: external transaction id required")
	}
	original, ok, err := e.state.TransactionByExternalID(externalTxnID)
	if err != nil {
		return nil, fmt.Errorf("ledger engine: lookup external transaction: %w", err)
	}
	if !ok {
		return nil, ErrTransactionNotFound
	}

	unlock := e.locks.Lock(original.UserID)
	defer unlock()

	// Re-read under the lock: a concurrent rollback may have won.
	original, ok, err = e.state.TransactionByExternalID(externalTxnID)
	if err != nil {
		return nil, fmt.Errorf("ledger engine: lookup external transaction: %w", err)
	}
	if !ok {
		return nil, ErrTransactionNotFound
	}
	if original.RolledBack {
		return nil, ErrAlreadyRolledBack
	}

	wallet, err := e.loadLocked(original.UserID)
	if err != nil {
		return nil, err
	}
	delta := -original.Amount
	if delta < 0 && wallet.Pool(original.Pool) < -delta {
		return nil, ErrInsufficientBalance
	}
	inverse := e.journalEntry(wallet, original.Pool, delta, TxnRollback,
		fmt.Sprintf("rollback of %s", externalTxnID), Reference{Type: "transaction", ID: original.ID}, "")
	wallet.setPool(original.Pool, wallet.Pool(original.Pool)+delta)
	wallet.UpdatedAt = e.nowFn()
	if err := e.state.ApplyRollback(wallet, inverse, original.ID); err != nil {
		return nil, fmt.Errorf("ledger engine: commit rollback: %w", err)
	}
	return &ExternalResult{Transaction: inverse.Clone(), Balance: inverse.BalanceAfter}, nil
}

func (e *Engine) replayLocked(externalID string) (*ExternalResult, bool, error) {
	existing, ok, err := e.state.TransactionByExternalID(externalID)
	if err != nil {
		return nil, false, fmt.Errorf("ledger engine: lookup external transaction: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &ExternalResult{
		Transaction: existing.Clone(),
		Balance:     existing.BalanceAfter,
		Duplicate:   true,
	}, true, nil
}
