package round

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fairbet/native/fairness"
	"fairbet/native/ledger"
	"fairbet/observability/metrics"
)

var (
	errNilState      = errors.New("round engine: state not configured")
	errNilLedger     = errors.New("round engine: ledger not configured")
	errRoundOpen     = errors.New("round engine: a round is already open")
	errNotWaiting    = errors.New("round engine: round is not waiting")
	errAlreadyEnded  = errors.New("round engine: round already ended")
	errInvalidStake  = errors.New("round engine: stake out of range")
	errInvalidTarget = errors.New("round engine: auto-cashout target must be at least 1.01")
)

// LedgerAPI is the slice of the ledger the coordinator needs.
type LedgerAPI interface {
	DeductBet(userID string, amount int64, ref ledger.Reference) (bonusUsed, realUsed int64, err error)
	RefundBet(userID string, bonusUsed, realUsed int64, ref ledger.Reference) error
	CreditWin(userID string, amount int64, pool ledger.BalancePool, description string, ref ledger.Reference) (*ledger.Transaction, error)
}

// Store archives ended rounds so their seeds and crash points stay
// verifiable.
type Store interface {
	ArchiveRound(*Snapshot) error
	RoundByID(id string) (*Snapshot, bool, error)
}

// Config tunes the crash round lifecycle. The house edge and cap feed the
// committed hash-to-outcome mapping and must match what the verification
// surface publishes.
type Config struct {
	HouseEdgeBps    int
	MaxMultiplier   float64
	WaitingDuration time.Duration
	TickInterval    time.Duration
	GrowthRate      float64
	MinStake        int64
	MaxStake        int64
}

func (c Config) withDefaults() Config {
	if c.HouseEdgeBps == 0 {
		c.HouseEdgeBps = fairness.DefaultHouseEdgeBps
	}
	if c.MaxMultiplier == 0 {
		c.MaxMultiplier = fairness.DefaultMaxMultiplier
	}
	if c.WaitingDuration <= 0 {
		c.WaitingDuration = 5 * time.Second
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.GrowthRate <= 0 {
		c.GrowthRate = 0.06
	}
	if c.MinStake <= 0 {
		c.MinStake = 100
	}
	if c.MaxStake <= 0 {
		c.MaxStake = 10_000_000
	}
	return c
}

type roundState struct {
	id             string
	status         Status
	serverSeed     string
	serverSeedHash string
	clientSeed     string
	nonce          uint64
	crashPoint     float64
	openedAt       time.Time
	startedAt      time.Time
	endedAt        time.Time

	betMu sync.Mutex
	bets  map[string]*Bet
}

// Engine coordinates the continuously-evolving shared crash round: one
// authoritative crash point computed at creation and kept secret, many
// concurrent bet and cashout requests against the single live round. Bet
// state transitions are linearized per bet via compare-and-swap; the crash
// point is computed once, before any bet exists, and never recomputed.
type Engine struct {
	state   Store
	ledger  LedgerAPI
	logger  *slog.Logger
	metrics *metrics.CasinoMetrics
	cfg     Config
	entropy io.Reader
	nowFn   func() time.Time
	idFn    func() string

	mu         sync.RWMutex
	current    *roundState
	roundNonce uint64

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int
}

func NewEngine(state Store, ledgerAPI LedgerAPI, cfg Config) *Engine {
	return &Engine{
		state:   state,
		ledger:  ledgerAPI,
		logger:  slog.Default(),
		cfg:     cfg.withDefaults(),
		entropy: rand.Reader,
		nowFn:   time.Now,
		idFn:    uuid.NewString,
		subs:    make(map[int]chan Update),
	}
}

// SetLogger overrides the logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		e.logger = slog.Default()
		return
	}
	e.logger = logger
}

// SetMetrics wires the prometheus registry. A nil registry disables metric
// emission.
func (e *Engine) SetMetrics(m *metrics.CasinoMetrics) { e.metrics = m }

// SetNowFunc overrides the clock, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SetEntropy overrides the randomness source used for round seeds.
func (e *Engine) SetEntropy(r io.Reader) {
	if r == nil {
		e.entropy = rand.Reader
		return
	}
	e.entropy = r
}

// SetIDFunc overrides bet id generation, primarily for tests.
func (e *Engine) SetIDFunc(id func() string) {
	if id == nil {
		e.idFn = uuid.NewString
		return
	}
	e.idFn = id
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// OpenRound creates the next round in the Waiting phase. The server seed is
// generated, its commitment published, and the crash point derived
// immediately; the crash point stays hidden until the round ends or reaches
// it.
func (e *Engine) OpenRound() (*RoundView, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil && e.current.status != StatusEnded {
		return nil, errRoundOpen
	}

	buf := make([]byte, 32)
	if _, err := io.ReadFull(e.entropy, buf); err != nil {
		return nil, fmt.Errorf("round engine: generate seed: %w", err)
	}
	serverSeed := hex.EncodeToString(buf)
	roundID := e.idFn()
	nonce := e.roundNonce
	e.roundNonce++

	digest := fairness.GenerateResult(serverSeed, roundID, nonce)
	crashPoint, err := fairness.CrashMultiplier(digest, e.cfg.HouseEdgeBps, e.cfg.MaxMultiplier)
	if err != nil {
		return nil, fmt.Errorf("round engine: derive crash point: %w", err)
	}

	rs := &roundState{
		id:             roundID,
		status:         StatusWaiting,
		serverSeed:     serverSeed,
		serverSeedHash: fairness.HashServerSeed(serverSeed),
		clientSeed:     roundID,
		nonce:          nonce,
		crashPoint:     crashPoint,
		openedAt:       e.nowFn(),
		bets:           make(map[string]*Bet),
	}
	e.current = rs
	e.broadcast(Update{RoundID: rs.id, Phase: StatusWaiting.String(), ServerSeedHash: rs.serverSeedHash, At: rs.openedAt.Unix()})
	return e.viewLocked(rs), nil
}

// StartRunning moves the round from Waiting to Running. Bets are closed from
// this instant; the multiplier starts climbing from 1.00x.
func (e *Engine) StartRunning() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rs := e.current
	if rs == nil {
		return ErrNoRound
	}
	if rs.status != StatusWaiting {
		return errNotWaiting
	}
	rs.status = StatusRunning
	rs.startedAt = e.nowFn()
	e.metrics.ObserveRoundStarted()
	e.broadcast(Update{RoundID: rs.id, Phase: StatusRunning.String(), Multiplier: 1.00, ServerSeedHash: rs.serverSeedHash, At: rs.startedAt.Unix()})
	return nil
}

// BetCount reports the number of bets in the current round.
func (e *Engine) BetCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rs := e.current
	if rs == nil {
		return 0
	}
	rs.betMu.Lock()
	defer rs.betMu.Unlock()
	return len(rs.bets)
}

// PlaceBet joins the current Waiting round. One bet per user per round; the
// stake is drawn through the ledger (bonus pool first) before the bet
// becomes visible. An optional auto-cashout target settles the bet without a
// manual call once the multiplier reaches it.
func (e *Engine) PlaceBet(userID string, stake int64, autoCashout float64) (BetView, error) {
	if e == nil || e.ledger == nil {
		return BetView{}, errNilLedger
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return BetView{}, fmt.Errorf("round engine: user id required")
	}
	if stake < e.cfg.MinStake || stake > e.cfg.MaxStake {
		return BetView{}, errInvalidStake
	}
	if autoCashout != 0 && autoCashout < 1.01 {
		return BetView{}, errInvalidTarget
	}

	bet := &Bet{
		ID:          e.idFn(),
		UserID:      userID,
		Stake:       stake,
		AutoCashout: autoCashout,
		PlacedAt:    e.nowFn().Unix(),
	}

	// Cheap precheck so an already-closed round or duplicate slot does not
	// touch the ledger.
	e.mu.RLock()
	rs := e.current
	if rs == nil {
		e.mu.RUnlock()
		return BetView{}, ErrNoRound
	}
	if rs.status != StatusWaiting {
		e.mu.RUnlock()
		return BetView{}, ErrBetsClosed
	}
	rs.betMu.Lock()
	_, exists := rs.bets[userID]
	rs.betMu.Unlock()
	e.mu.RUnlock()
	if exists {
		return BetView{}, ErrDuplicateBet
	}

	// Take the stake before the bet becomes visible. A bet that no settle
	// pass can see until its debit has committed can never be paid a win
	// the ledger never collected a stake for.
	ref := ledger.Reference{Type: "round", ID: rs.id}
	bonusUsed, realUsed, err := e.ledger.DeductBet(userID, stake, ref)
	if err != nil {
		return BetView{}, err
	}

	// Publish under the read lock, re-checking: the round may have left
	// Waiting, or a concurrent placement may have won the slot, while the
	// debit committed. Status is only written under the exclusive engine
	// lock, so the read-locked check is authoritative.
	var view BetView
	var publishErr error
	e.mu.RLock()
	if e.current != rs || rs.status != StatusWaiting {
		publishErr = ErrBetsClosed
	} else {
		rs.betMu.Lock()
		if _, taken := rs.bets[userID]; taken {
			publishErr = ErrDuplicateBet
		} else {
			rs.bets[userID] = bet
			view = bet.view()
		}
		rs.betMu.Unlock()
	}
	e.mu.RUnlock()
	if publishErr != nil {
		if err := e.ledger.RefundBet(userID, bonusUsed, realUsed, ref); err != nil {
			e.logger.Error("stake refund failed",
				"round", rs.id, "user", userID, "stake", stake, "err", err)
		}
		return BetView{}, publishErr
	}
	e.metrics.ObserveBetPlaced("crash")
	return view, nil
}

// Cashout settles the caller's active bet at the claimed multiplier. The
// claim must not exceed the multiplier the round has actually reached and
// must be below the crash point. The Active -> CashedOut transition is
// compare-and-swap, so concurrent duplicate calls (including the auto
// cashout racing a manual one) settle exactly once and trigger exactly one
// ledger credit.
func (e *Engine) Cashout(userID string, observed float64) (BetView, error) {
	if e == nil || e.ledger == nil {
		return BetView{}, errNilLedger
	}
	if observed < 1 {
		return BetView{}, fmt.Errorf("round engine: cashout multiplier must be at least 1.00")
	}

	e.mu.RLock()
	rs := e.current
	if rs == nil {
		e.mu.RUnlock()
		return BetView{}, ErrNoRound
	}
	if rs.status != StatusRunning {
		e.mu.RUnlock()
		return BetView{}, ErrRoundNotRunning
	}
	reached := e.multiplierAt(rs, e.nowFn())
	e.mu.RUnlock()
	if reached >= rs.crashPoint {
		// The crash instant has passed even if the settle pass has not run
		// yet; no cashout is accepted from this point on.
		return BetView{}, ErrRoundNotRunning
	}
	if observed > reached {
		return BetView{}, ErrMultiplierNotReached
	}

	rs.betMu.Lock()
	bet, ok := rs.bets[userID]
	rs.betMu.Unlock()
	if !ok {
		return BetView{}, ErrBetNotFound
	}
	return e.settleCashout(rs, bet, observed, "manual")
}

func (e *Engine) settleCashout(rs *roundState, bet *Bet, multiplier float64, trigger string) (BetView, error) {
	// The CAS and the settlement fields commit inside one betMu critical
	// section, so snapshot readers never observe a cashed-out bet without
	// its multiplier and payout.
	rs.betMu.Lock()
	if !bet.tryTransition(BetCashedOut) {
		view := bet.view()
		rs.betMu.Unlock()
		return view, ErrBetNotActive
	}
	bet.CashoutMultiplier = multiplier
	bet.Payout = int64(math.Round(float64(bet.Stake) * multiplier))
	view := bet.view()
	rs.betMu.Unlock()

	if _, err := e.ledger.CreditWin(view.UserID, view.Payout, ledger.PoolReal,
		fmt.Sprintf("crash cashout at %.2fx", multiplier),
		ledger.Reference{Type: "round_bet", ID: view.ID}); err != nil {
		e.logger.Error("cashout credit failed",
			"round", rs.id, "bet", view.ID, "user", view.UserID, "payout", view.Payout, "err", err)
		return view, fmt.Errorf("round engine: credit cashout: %w", err)
	}
	e.metrics.ObserveCashout(trigger)
	return view, nil
}

// Tick advances the live round: it fires auto-cashout targets the multiplier
// has reached, broadcasts the tick, and reports whether the crash point has
// been hit.
func (e *Engine) Tick() (multiplier float64, crashed bool, err error) {
	e.mu.RLock()
	rs := e.current
	if rs == nil {
		e.mu.RUnlock()
		return 0, false, ErrNoRound
	}
	if rs.status != StatusRunning {
		e.mu.RUnlock()
		return 0, false, ErrRoundNotRunning
	}
	now := e.nowFn()
	reached := e.multiplierAt(rs, now)
	e.mu.RUnlock()
	if reached >= rs.crashPoint {
		return rs.crashPoint, true, nil
	}
	e.fireAutoCashouts(rs, reached)
	e.broadcast(Update{RoundID: rs.id, Phase: StatusRunning.String(), Multiplier: reached, ServerSeedHash: rs.serverSeedHash, At: now.Unix()})
	return reached, false, nil
}

// fireAutoCashouts settles every active bet whose target the multiplier has
// reached. Each bet pays at its own target, not at the tick value.
func (e *Engine) fireAutoCashouts(rs *roundState, reached float64) {
	rs.betMu.Lock()
	pending := make([]*Bet, 0, len(rs.bets))
	for _, bet := range rs.bets {
		if bet.State() == BetActive && bet.AutoCashout > 0 && bet.AutoCashout <= reached && bet.AutoCashout < rs.crashPoint {
			pending = append(pending, bet)
		}
	}
	rs.betMu.Unlock()
	for _, bet := range pending {
		if _, err := e.settleCashout(rs, bet, bet.AutoCashout, "auto"); err != nil && !errors.Is(err, ErrBetNotActive) {
			e.logger.Error("auto cashout failed", "round", rs.id, "bet", bet.ID, "err", err)
		}
	}
}

// EndRound terminates the round: auto targets strictly below the crash point
// are honoured (the multiplier passed through every value beneath it), every
// remaining active bet flips to Lost in one pass, the crash point and server
// seed are revealed, and the round is archived.
func (e *Engine) EndRound() (*RoundView, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	rs := e.current
	if rs == nil {
		e.mu.Unlock()
		return nil, ErrNoRound
	}
	if rs.status == StatusEnded {
		e.mu.Unlock()
		return nil, errAlreadyEnded
	}
	wasRunning := rs.status == StatusRunning
	rs.status = StatusEnded
	rs.endedAt = e.nowFn()
	e.mu.Unlock()

	if wasRunning {
		e.fireAutoCashouts(rs, rs.crashPoint)
	}
	rs.betMu.Lock()
	for _, bet := range rs.bets {
		bet.tryTransition(BetLost)
	}
	rs.betMu.Unlock()

	snapshot := e.snapshot(rs)
	if err := e.state.ArchiveRound(snapshot); err != nil {
		e.logger.Error("round archive failed", "round", rs.id, "err", err)
	}
	e.metrics.ObserveRoundEnded(rs.crashPoint)
	e.broadcast(Update{
		RoundID:        rs.id,
		Phase:          StatusEnded.String(),
		Multiplier:     rs.crashPoint,
		CrashPoint:     rs.crashPoint,
		ServerSeedHash: rs.serverSeedHash,
		At:             rs.endedAt.Unix(),
	})

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.viewLocked(rs), nil
}

// CurrentRound returns the public view of the live round. Secrets stay
// hidden until the round has ended.
func (e *Engine) CurrentRound() (*RoundView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil, ErrNoRound
	}
	return e.viewLocked(e.current), nil
}

// RoundByID returns an archived round with everything revealed.
func (e *Engine) RoundByID(id string) (*RoundView, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	snap, ok, err := e.state.RoundByID(id)
	if err != nil {
		return nil, fmt.Errorf("round engine: load round: %w", err)
	}
	if !ok {
		return nil, ErrNoRound
	}
	return &RoundView{
		ID:             snap.ID,
		Status:         StatusEnded.String(),
		ServerSeedHash: snap.ServerSeedHash,
		ClientSeed:     snap.ClientSeed,
		Nonce:          snap.Nonce,
		Multiplier:     snap.CrashPoint,
		CrashPoint:     snap.CrashPoint,
		ServerSeed:     snap.ServerSeed,
		StartedAt:      snap.StartedAt,
		EndedAt:        snap.EndedAt,
		Bets:           snap.Bets,
	}, nil
}

// Subscribe registers a listener for round updates. Slow consumers drop
// ticks rather than stalling the round.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan Update, 32)
	e.subs[id] = ch
	return ch, func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if existing, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(existing)
		}
	}
}

func (e *Engine) broadcast(update Update) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- update:
		default:
		}
	}
}

// multiplierAt derives the multiplier from elapsed running time: an
// exponential climb from 1.00x, floored to two decimals so clients and the
// engine agree on the displayed value.
func (e *Engine) multiplierAt(rs *roundState, now time.Time) float64 {
	if rs.startedAt.IsZero() {
		return 1
	}
	elapsed := now.Sub(rs.startedAt).Seconds()
	if elapsed <= 0 {
		return 1
	}
	m := math.Floor(math.Exp(e.cfg.GrowthRate*elapsed)*100) / 100
	if m < 1 {
		m = 1
	}
	return m
}

// RunningDuration returns how long the round must run before the multiplier
// reaches the crash point.
func (e *Engine) RunningDuration(crashPoint float64) time.Duration {
	if crashPoint <= 1 {
		return 0
	}
	seconds := math.Log(crashPoint) / e.cfg.GrowthRate
	return time.Duration(seconds * float64(time.Second))
}

func (e *Engine) snapshot(rs *roundState) *Snapshot {
	rs.betMu.Lock()
	bets := make([]BetView, 0, len(rs.bets))
	for _, bet := range rs.bets {
		bets = append(bets, bet.view())
	}
	rs.betMu.Unlock()
	var started, ended int64
	if !rs.startedAt.IsZero() {
		started = rs.startedAt.Unix()
	}
	if !rs.endedAt.IsZero() {
		ended = rs.endedAt.Unix()
	}
	return &Snapshot{
		ID:             rs.id,
		ServerSeed:     rs.serverSeed,
		ServerSeedHash: rs.serverSeedHash,
		ClientSeed:     rs.clientSeed,
		Nonce:          rs.nonce,
		CrashPoint:     rs.crashPoint,
		StartedAt:      started,
		EndedAt:        ended,
		Bets:           bets,
	}
}

// viewLocked builds the public view. Callers hold e.mu.
func (e *Engine) viewLocked(rs *roundState) *RoundView {
	view := &RoundView{
		ID:             rs.id,
		Status:         rs.status.String(),
		ServerSeedHash: rs.serverSeedHash,
		ClientSeed:     rs.clientSeed,
		Nonce:          rs.nonce,
	}
	if !rs.startedAt.IsZero() {
		view.StartedAt = rs.startedAt.Unix()
	}
	switch rs.status {
	case StatusRunning:
		m := e.multiplierAt(rs, e.nowFn())
		if m > rs.crashPoint {
			m = rs.crashPoint
		}
		view.Multiplier = m
	case StatusEnded:
		view.Multiplier = rs.crashPoint
		view.CrashPoint = rs.crashPoint
		view.ServerSeed = rs.serverSeed
		view.EndedAt = rs.endedAt.Unix()
		rs.betMu.Lock()
		for _, bet := range rs.bets {
			view.Bets = append(view.Bets, bet.view())
		}
		rs.betMu.Unlock()
	}
	return view
}
