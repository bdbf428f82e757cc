package gamestore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fairbet/native/ledger"
	"fairbet/native/round"
	"fairbet/native/seeds"
)

// Store is the gorm-backed persistence layer shared by the seeds, ledger and
// round engines. Postgres serves production; the pure-Go sqlite driver backs
// tests and single-binary deployments.
type Store struct {
	db *gorm.DB
}

// OpenPostgres connects to the given DSN and migrates the schema.
func OpenPostgres(dsn string) (*Store, error) {
	return open(postgres.Open(dsn))
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for an
// ephemeral instance.
func OpenSQLite(path string) (*Store, error) {
	return open(sqlite.Open(path))
}

func open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gamestore: open database: %w", err)
	}
	if err := db.AutoMigrate(
		&seedRecord{},
		&walletRecord{},
		&transactionRecord{},
		&roundRecord{},
		&roundBetRecord{},
	); err != nil {
		return nil, fmt.Errorf("gamestore: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

// ActiveSeed returns the account's active committed seed pair.
func (s *Store) ActiveSeed(userID string) (*seeds.Seed, bool, error) {
	var rec seedRecord
	err := s.db.Where("user_id = ? AND active = ?", userID, true).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gamestore: load active seed: %w", err)
	}
	return seedFromRecord(&rec), true, nil
}

// PutSeed upserts on (user, commitment): a seed already persisted is updated
// in place so nonce advances and reveals never fork the row.
func (s *Store) PutSeed(seed *seeds.Seed) error {
	var existing seedRecord
	err := s.db.Where("user_id = ? AND server_seed_hash = ?", seed.UserID, seed.ServerSeedHash).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(seedToRecord(seed, 0)).Error; err != nil {
			return fmt.Errorf("gamestore: create seed: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("gamestore: load seed: %w", err)
	default:
		if err := s.db.Save(seedToRecord(seed, existing.ID)).Error; err != nil {
			return fmt.Errorf("gamestore: update seed: %w", err)
		}
		return nil
	}
}

// Wallet loads one account's balance state.
func (s *Store) Wallet(userID string) (*ledger.Wallet, bool, error) {
	var rec walletRecord
	err := s.db.Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gamestore: load wallet: %w", err)
	}
	return walletFromRecord(&rec), true, nil
}

// Apply commits the wallet and its journal entries as one database
// transaction. A conflict on the external transaction id surfaces as
// ledger.ErrDuplicateExternalTxn so the engine can replay the original.
func (s *Store) Apply(wallet *ledger.Wallet, txns ...*ledger.Transaction) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(walletToRecord(wallet)).Error; err != nil {
			return err
		}
		for _, txn := range txns {
			if err := tx.Create(txnToRecord(txn)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateKey(err) {
			return ledger.ErrDuplicateExternalTxn
		}
		return fmt.Errorf("gamestore: apply: %w", err)
	}
	return nil
}

// ApplyRollback commits the inverse entry and flags the original transaction
// rolled back in the same database transaction.
func (s *Store) ApplyRollback(wallet *ledger.Wallet, inverse *ledger.Transaction, originalTxnID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(walletToRecord(wallet)).Error; err != nil {
			return err
		}
		if err := tx.Create(txnToRecord(inverse)).Error; err != nil {
			return err
		}
		res := tx.Model(&transactionRecord{}).
			Where("id = ? AND rolled_back = ?", originalTxnID, false).
			Update("rolled_back", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrTransactionNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return err
		}
		return fmt.Errorf("gamestore: apply rollback: %w", err)
	}
	return nil
}

// TransactionByExternalID looks up the journal entry recorded for an external
// transaction id, if any.
func (s *Store) TransactionByExternalID(externalTxnID string) (*ledger.Transaction, bool, error) {
	var rec transactionRecord
	err := s.db.Where("external_txn_id = ?", externalTxnID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gamestore: load external transaction: %w", err)
	}
	return txnFromRecord(&rec), true, nil
}

// ArchiveRound persists an ended round with its bets.
func (s *Store) ArchiveRound(snap *round.Snapshot) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(roundToRecord(snap)).Error; err != nil {
			return err
		}
		for i := range snap.Bets {
			if err := tx.Create(betToRecord(snap.ID, &snap.Bets[i])).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("gamestore: archive round: %w", err)
	}
	return nil
}

// RoundByID loads an archived round and its bets.
func (s *Store) RoundByID(id string) (*round.Snapshot, bool, error) {
	var rec roundRecord
	err := s.db.Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gamestore: load round: %w", err)
	}
	var bets []roundBetRecord
	if err := s.db.Where("round_id = ?", id).Order("id").Find(&bets).Error; err != nil {
		return nil, false, fmt.Errorf("gamestore: load round bets: %w", err)
	}
	return roundFromRecord(&rec, bets), true, nil
}

// isDuplicateKey matches the translated gorm error plus the raw driver
// messages the translator misses on some dialects.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
