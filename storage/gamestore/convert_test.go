package gamestore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fairbet/native/ledger"
	"fairbet/native/round"
)

func TestTransactionConversionRoundTrip(t *testing.T) {
	txn := &ledger.Transaction{
		ID:            "txn-1",
		UserID:        "alice",
		Type:          ledger.TxnWin,
		Amount:        250,
		BalanceBefore: 100,
		BalanceAfter:  350,
		Pool:          ledger.PoolBonus,
		ReferenceType: "round",
		ReferenceID:   "r-1",
		ExternalTxnID: "prov-1",
		Description:   "win payout",
		RolledBack:    true,
		CreatedAt:     42,
	}
	require.Equal(t, txn, txnFromRecord(txnToRecord(txn)))

	// A missing external id stays absent, not empty-but-present: the unique
	// index only sees rows that actually carry one.
	txn.ExternalTxnID = ""
	rec := txnToRecord(txn)
	require.Nil(t, rec.ExternalTxnID)
	require.Equal(t, txn, txnFromRecord(rec))
}

func TestRoundConversionRoundTrip(t *testing.T) {
	snap := &round.Snapshot{
		ID:             "round-1",
		ServerSeed:     "seed",
		ServerSeedHash: "hash",
		ClientSeed:     "round-1",
		Nonce:          9,
		CrashPoint:     3.21,
		StartedAt:      5,
		EndedAt:        9,
		Bets: []round.BetView{
			{ID: "b-1", UserID: "alice", Stake: 100, AutoCashout: 2, State: round.BetCashedOut, CashoutMultiplier: 2, Payout: 200},
		},
	}
	rec := roundToRecord(snap)
	bets := make([]roundBetRecord, 0, len(snap.Bets))
	for i := range snap.Bets {
		bets = append(bets, *betToRecord(snap.ID, &snap.Bets[i]))
	}
	require.Equal(t, snap, roundFromRecord(rec, bets))
}
