package gamestore

import (
	"fairbet/native/ledger"
	"fairbet/native/round"
	"fairbet/native/seeds"
)

func seedFromRecord(rec *seedRecord) *seeds.Seed {
	return &seeds.Seed{
		UserID:         rec.UserID,
		ServerSeed:     rec.ServerSeed,
		ServerSeedHash: rec.ServerSeedHash,
		ClientSeed:     rec.ClientSeed,
		Nonce:          rec.Nonce,
		Active:         rec.Active,
		CreatedAt:      rec.CreatedAt,
		RevealedAt:     rec.RevealedAt,
	}
}

func seedToRecord(seed *seeds.Seed, id uint) *seedRecord {
	return &seedRecord{
		ID:             id,
		UserID:         seed.UserID,
		ServerSeed:     seed.ServerSeed,
		ServerSeedHash: seed.ServerSeedHash,
		ClientSeed:     seed.ClientSeed,
		Nonce:          seed.Nonce,
		Active:         seed.Active,
		CreatedAt:      seed.CreatedAt,
		RevealedAt:     seed.RevealedAt,
	}
}

func walletFromRecord(rec *walletRecord) *ledger.Wallet {
	return &ledger.Wallet{
		UserID:          rec.UserID,
		Real:            rec.RealBalance,
		Bonus:           rec.BonusBalance,
		Locked:          rec.LockedBalance,
		LifetimeWagered: rec.LifetimeWagered,
		LifetimeWon:     rec.LifetimeWon,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func walletToRecord(w *ledger.Wallet) *walletRecord {
	return &walletRecord{
		UserID:          w.UserID,
		RealBalance:     w.Real,
		BonusBalance:    w.Bonus,
		LockedBalance:   w.Locked,
		LifetimeWagered: w.LifetimeWagered,
		LifetimeWon:     w.LifetimeWon,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
}

func txnToRecord(t *ledger.Transaction) *transactionRecord {
	rec := &transactionRecord{
		ID:            t.ID,
		UserID:        t.UserID,
		Type:          t.Type,
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Pool:          uint8(t.Pool),
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		Description:   t.Description,
		RolledBack:    t.RolledBack,
		CreatedAt:     t.CreatedAt,
	}
	if t.ExternalTxnID != "" {
		id := t.ExternalTxnID
		rec.ExternalTxnID = &id
	}
	return rec
}

func txnFromRecord(rec *transactionRecord) *ledger.Transaction {
	t := &ledger.Transaction{
		ID:            rec.ID,
		UserID:        rec.UserID,
		Type:          rec.Type,
		Amount:        rec.Amount,
		BalanceBefore: rec.BalanceBefore,
		BalanceAfter:  rec.BalanceAfter,
		Pool:          ledger.BalancePool(rec.Pool),
		ReferenceType: rec.ReferenceType,
		ReferenceID:   rec.ReferenceID,
		Description:   rec.Description,
		RolledBack:    rec.RolledBack,
		CreatedAt:     rec.CreatedAt,
	}
	if rec.ExternalTxnID != nil {
		t.ExternalTxnID = *rec.ExternalTxnID
	}
	return t
}

func roundToRecord(snap *round.Snapshot) *roundRecord {
	return &roundRecord{
		ID:             snap.ID,
		ServerSeed:     snap.ServerSeed,
		ServerSeedHash: snap.ServerSeedHash,
		ClientSeed:     snap.ClientSeed,
		Nonce:          snap.Nonce,
		CrashPoint:     snap.CrashPoint,
		StartedAt:      snap.StartedAt,
		EndedAt:        snap.EndedAt,
	}
}

func betToRecord(roundID string, bet *round.BetView) *roundBetRecord {
	return &roundBetRecord{
		ID:                bet.ID,
		RoundID:           roundID,
		UserID:            bet.UserID,
		Stake:             bet.Stake,
		AutoCashout:       bet.AutoCashout,
		State:             bet.State,
		CashoutMultiplier: bet.CashoutMultiplier,
		Payout:            bet.Payout,
	}
}

func roundFromRecord(rec *roundRecord, bets []roundBetRecord) *round.Snapshot {
	snap := &round.Snapshot{
		ID:             rec.ID,
		ServerSeed:     rec.ServerSeed,
		ServerSeedHash: rec.ServerSeedHash,
		ClientSeed:     rec.ClientSeed,
		Nonce:          rec.Nonce,
		CrashPoint:     rec.CrashPoint,
		StartedAt:      rec.StartedAt,
		EndedAt:        rec.EndedAt,
	}
	for i := range bets {
		b := &bets[i]
		snap.Bets = append(snap.Bets, round.BetView{
			ID:                b.ID,
			UserID:            b.UserID,
			Stake:             b.Stake,
			AutoCashout:       b.AutoCashout,
			State:             b.State,
			CashoutMultiplier: b.CashoutMultiplier,
			Payout:            b.Payout,
		})
	}
	return snap
}
