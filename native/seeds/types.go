package seeds

// Seed is the committed randomness state for one account. The server seed is
// generated by the house and kept secret while the seed is active; only its
// SHA-256 commitment is visible. The client seed is player-influenced. The
// nonce counts bets placed against this seed pair.
type Seed struct {
	UserID         string
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          uint64
	Active         bool
	CreatedAt      int64
	RevealedAt     int64
}

// Clone returns a copy so callers can mutate freely without touching stored
// state.
func (s *Seed) Clone() *Seed {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Revealed reports whether the plaintext server seed has been disclosed.
func (s *Seed) Revealed() bool {
	return s != nil && s.RevealedAt != 0
}

// Reservation is a single-use snapshot handed to a bet: the seed triplet plus
// the nonce assigned to that bet. Reservations are never reissued.
type Reservation struct {
	UserID         string
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          uint64
}
