package round

import (
	"sync/atomic"
)

// Status is the lifecycle phase of a round. Transitions are one-directional:
// Waiting -> Running -> Ended.
type Status uint8

const (
	StatusWaiting Status = iota
	StatusRunning
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusRunning:
		return "running"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Bet states. CashedOut and Lost are terminal.
const (
	BetActive int32 = iota
	BetCashedOut
	BetLost
)

// Bet is one player's position in a round. The state field is transitioned
// with compare-and-swap so that the Active -> CashedOut and Active -> Lost
// edges fire exactly once even under concurrent duplicate requests.
type Bet struct {
	ID          string
	UserID      string
	Stake       int64
	AutoCashout float64

	state             atomic.Int32
	CashoutMultiplier float64
	Payout            int64
	PlacedAt          int64
}

// State returns the bet's current state.
func (b *Bet) State() int32 {
	return b.state.Load()
}

// tryTransition flips the bet out of Active exactly once.
func (b *Bet) tryTransition(to int32) bool {
	return b.state.CompareAndSwap(BetActive, to)
}

// BetView is an immutable copy handed to callers.
type BetView struct {
	ID                string  `json:"id"`
	UserID            string  `json:"userId"`
	Stake             int64   `json:"stake"`
	AutoCashout       float64 `json:"autoCashout,omitempty"`
	State             int32   `json:"state"`
	CashoutMultiplier float64 `json:"cashoutMultiplier,omitempty"`
	Payout            int64   `json:"payout,omitempty"`
}

func (b *Bet) view() BetView {
	return BetView{
		ID:                b.ID,
		UserID:            b.UserID,
		Stake:             b.Stake,
		AutoCashout:       b.AutoCashout,
		State:             b.State(),
		CashoutMultiplier: b.CashoutMultiplier,
		Payout:            b.Payout,
	}
}

// RoundView is the public snapshot of a round. The crash point and the
// plaintext server seed are zeroed until the round has ended: disclosing the
// crash point early would permit risk-free cashouts.
type RoundView struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	ServerSeedHash string    `json:"serverSeedHash"`
	ClientSeed     string    `json:"clientSeed"`
	Nonce          uint64    `json:"nonce"`
	Multiplier     float64   `json:"multiplier,omitempty"`
	CrashPoint     float64   `json:"crashPoint,omitempty"`
	ServerSeed     string    `json:"serverSeed,omitempty"`
	StartedAt      int64     `json:"startedAt,omitempty"`
	EndedAt        int64     `json:"endedAt,omitempty"`
	Bets           []BetView `json:"bets,omitempty"`
}

// Snapshot is the archived form of an ended round handed to the store.
type Snapshot struct {
	ID             string
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          uint64
	CrashPoint     float64
	StartedAt      int64
	EndedAt        int64
	Bets           []BetView
}

// Update is one event on the round stream: a phase change or a multiplier
// tick.
type Update struct {
	RoundID        string  `json:"roundId"`
	Phase          string  `json:"phase"`
	Multiplier     float64 `json:"multiplier,omitempty"`
	CrashPoint     float64 `json:"crashPoint,omitempty"`
	ServerSeedHash string  `json:"serverSeedHash"`
	At             int64   `json:"at"`
}
