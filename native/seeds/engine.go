package seeds

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fairbet/native/common"
	"fairbet/native/fairness"
)

var (
	errNilState = errors.New("seeds engine: state not configured")

	// ErrSeedIntegrity indicates a stored seed no longer hashes to its
	// published commitment. This is never auto-corrected.
	ErrSeedIntegrity = errors.New("seeds engine: server seed does not match stored commitment")
)

const (
	serverSeedBytes = 32
	clientSeedBytes = 16
	maxClientSeed   = 64
)

// Store is the persistence surface the engine depends on. Implementations
// must upsert on (UserID, ServerSeedHash).
type Store interface {
	ActiveSeed(userID string) (*Seed, bool, error)
	PutSeed(*Seed) error
}

// Engine manages the committed seed pair per account: creation, nonce
// reservation, and rotate-and-reveal. All operations on one account are
// serialized by a per-account lock so concurrent bets can never observe the
// same nonce.
type Engine struct {
	state   Store
	locks   *common.AccountLocks
	entropy io.Reader
	nowFn   func() int64
}

func NewEngine(state Store) *Engine {
	return &Engine{
		state:   state,
		locks:   common.NewAccountLocks(),
		entropy: rand.Reader,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEntropy overrides the randomness source used for new seeds.
func (e *Engine) SetEntropy(r io.Reader) {
	if r == nil {
		e.entropy = rand.Reader
		return
	}
	e.entropy = r
}

// GetActiveSeed returns the account's current committed seed, creating a
// fresh pair with nonce zero when none is active. The returned seed includes
// the plaintext server seed; callers exposing it publicly must strip it.
func (e *Engine) GetActiveSeed(userID string) (*Seed, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("seeds engine: user id required")
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	seed, err := e.activeOrCreate(userID)
	if err != nil {
		return nil, err
	}
	return seed.Clone(), nil
}

// ReserveNonce atomically assigns the next nonce for the account's active
// seed. Two concurrent reservations never receive the same nonce: the
// increment is persisted before the reservation is returned.
func (e *Engine) ReserveNonce(userID string) (*Reservation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("seeds engine: user id required")
	}
	unlock := e.locks.Lock(userID)
	defer unlock()
	seed, err := e.activeOrCreate(userID)
	if err != nil {
		return nil, err
	}
	assigned := seed.Nonce
	seed.Nonce++
	if err := e.state.PutSeed(seed); err != nil {
		return nil, fmt.Errorf("seeds engine: persist nonce: %w", err)
	}
	return &Reservation{
		UserID:         userID,
		ServerSeed:     seed.ServerSeed,
		ServerSeedHash: seed.ServerSeedHash,
		ClientSeed:     seed.ClientSeed,
		Nonce:          assigned,
	}, nil
}

// RotateSeed reveals the current seed pair and activates a fresh one with the
// nonce reset to zero. The revealed seed keeps its plaintext server seed in
// storage so every outcome already produced against it stays verifiable. An
// optional replacement client seed is honoured after trimming; when empty a
// random client seed is generated.
func (e *Engine) RotateSeed(userID, newClientSeed string) (revealed, next *Seed, err error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil, fmt.Errorf("seeds engine: user id required")
	}
	newClientSeed = strings.TrimSpace(newClientSeed)
	if len(newClientSeed) > maxClientSeed {
		return nil, nil, fmt.Errorf("seeds engine: client seed exceeds %d characters", maxClientSeed)
	}
	unlock := e.locks.Lock(userID)
	defer unlock()

	current, err := e.activeOrCreate(userID)
	if err != nil {
		return nil, nil, err
	}
	if !fairness.VerifyCommitment(current.ServerSeed, current.ServerSeedHash) {
		return nil, nil, ErrSeedIntegrity
	}
	current.Active = false
	current.RevealedAt = e.nowFn()
	if err := e.state.PutSeed(current); err != nil {
		return nil, nil, fmt.Errorf("seeds engine: reveal seed: %w", err)
	}

	fresh, err := e.newSeed(userID, newClientSeed)
	if err != nil {
		return nil, nil, err
	}
	if err := e.state.PutSeed(fresh); err != nil {
		return nil, nil, fmt.Errorf("seeds engine: activate seed: %w", err)
	}
	return current.Clone(), fresh.Clone(), nil
}

func (e *Engine) activeOrCreate(userID string) (*Seed, error) {
	seed, ok, err := e.state.ActiveSeed(userID)
	if err != nil {
		return nil, fmt.Errorf("seeds engine: load seed: %w", err)
	}
	if ok {
		return seed, nil
	}
	fresh, err := e.newSeed(userID, "")
	if err != nil {
		return nil, err
	}
	if err := e.state.PutSeed(fresh); err != nil {
		return nil, fmt.Errorf("seeds engine: create seed: %w", err)
	}
	return fresh, nil
}

func (e *Engine) newSeed(userID, clientSeed string) (*Seed, error) {
	serverSeed, err := e.randomHex(serverSeedBytes)
	if err != nil {
		return nil, fmt.Errorf("seeds engine: generate server seed: %w", err)
	}
	if clientSeed == "" {
		clientSeed, err = e.randomHex(clientSeedBytes)
		if err != nil {
			return nil, fmt.Errorf("seeds engine: generate client seed: %w", err)
		}
	}
	return &Seed{
		UserID:         userID,
		ServerSeed:     serverSeed,
		ServerSeedHash: fairness.HashServerSeed(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          0,
		Active:         true,
		CreatedAt:      e.nowFn(),
	}, nil
}

func (e *Engine) randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(e.entropy, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
