package ledger

import "errors"

var (
	// ErrInsufficientBalance aborts a debit that would push a pool negative.
	// Nothing is mutated.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrInvalidAmount rejects zero or negative amounts before any state is
	// touched.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")

	// ErrDuplicateExternalTxn is returned by stores when committing a
	// transaction whose external id already exists. The engine converts it
	// into an idempotent replay, never surfaces it as a failure.
	ErrDuplicateExternalTxn = errors.New("ledger: external transaction already recorded")

	// ErrTransactionNotFound indicates a rollback referenced an unknown
	// external transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")

	// ErrAlreadyRolledBack blocks a second rollback of the same transaction.
	ErrAlreadyRolledBack = errors.New("ledger: transaction already rolled back")

	// ErrIntegrityViolation flags stored state that breaks a ledger
	// invariant (negative pool). It is fatal for the operation and is never
	// silently corrected.
	ErrIntegrityViolation = errors.New("ledger: integrity violation")
)
