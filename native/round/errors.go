package round

import "errors"

var (
	// ErrRoundNotRunning rejects a cashout outside the Running phase. State
	// is unchanged.
	ErrRoundNotRunning = errors.New("round: not running")

	// ErrBetsClosed rejects a bet outside the Waiting phase.
	ErrBetsClosed = errors.New("round: bets closed")

	// ErrNoRound indicates no round is currently open.
	ErrNoRound = errors.New("round: no active round")

	// ErrDuplicateBet enforces one bet per (round, user).
	ErrDuplicateBet = errors.New("round: user already has a bet in this round")

	// ErrBetNotActive rejects a cashout for a bet that already reached a
	// terminal state. Terminal states are final.
	ErrBetNotActive = errors.New("round: bet not active")

	// ErrBetNotFound indicates the user has no bet in the round.
	ErrBetNotFound = errors.New("round: bet not found")

	// ErrMultiplierNotReached rejects a cashout claiming a multiplier the
	// round has not yet reached.
	ErrMultiplierNotReached = errors.New("round: claimed multiplier not reached")
)
