package fairness

import (
	"errors"
	"fmt"
	"strings"
)

// GameType identifies the extractor applied to a result digest.
type GameType string

const (
	GameDice   GameType = "dice"
	GameCrash  GameType = "crash"
	GamePump   GameType = "pump"
	GameMines  GameType = "mines"
	GameKeno   GameType = "keno"
	GamePlinko GameType = "plinko"
	GameHiLo   GameType = "hilo"
	GameWheel  GameType = "wheel"
)

// Valid reports whether the game type names a known extractor.
func (g GameType) Valid() bool {
	switch g {
	case GameDice, GameCrash, GamePump, GameMines, GameKeno, GamePlinko, GameHiLo, GameWheel:
		return true
	default:
		return false
	}
}

// NormalizeGameType canonicalises a caller-supplied game type string.
func NormalizeGameType(raw string) (GameType, error) {
	g := GameType(strings.ToLower(strings.TrimSpace(raw)))
	if !g.Valid() {
		return "", fmt.Errorf("fairness: unknown game type %q", raw)
	}
	return g, nil
}

// Params carries the per-game extractor inputs. Only the fields relevant to
// the requested game type are consulted.
type Params struct {
	// Mines.
	Grid      int `json:"grid,omitempty"`
	MineCount int `json:"mineCount,omitempty"`
	// Keno.
	Count int `json:"count,omitempty"`
	Max   int `json:"max,omitempty"`
	// Plinko.
	Rows int `json:"rows,omitempty"`
	// Wheel.
	Segments []WheelSegment `json:"segments,omitempty"`
	// Crash / pump. Zero values select the published defaults.
	HouseEdgeBps  int     `json:"houseEdgeBps,omitempty"`
	MaxMultiplier float64 `json:"maxMultiplier,omitempty"`
}

// Outcome is the resolved result for one digest and game type. Exactly the
// fields for the requested game are populated.
type Outcome struct {
	GameType GameType `json:"gameType"`
	Digest   string   `json:"digest"`

	Dice       float64       `json:"dice,omitempty"`
	Multiplier float64       `json:"multiplier,omitempty"`
	Cells      []int         `json:"cells,omitempty"`
	Numbers    []int         `json:"numbers,omitempty"`
	Slot       int           `json:"slot,omitempty"`
	Card       *Card         `json:"card,omitempty"`
	Segment    int           `json:"segment,omitempty"`
	Picked     *WheelSegment `json:"picked,omitempty"`
}

// ErrCommitmentMismatch indicates a revealed server seed does not hash to the
// published commitment. Callers treat this as an integrity violation.
var ErrCommitmentMismatch = errors.New("fairness: server seed does not match committed hash")

// Resolve applies the extractor for the given game type to an already
// computed digest. Both the live play path and the public verification path
// go through this single function; any divergence between the two would be a
// correctness bug.
func Resolve(game GameType, digest string, params Params) (*Outcome, error) {
	out := &Outcome{GameType: game, Digest: digest}
	switch game {
	case GameDice:
		roll, err := DiceRoll(digest)
		if err != nil {
			return nil, err
		}
		out.Dice = roll
	case GameCrash, GamePump:
		edge := params.HouseEdgeBps
		if edge == 0 {
			edge = DefaultHouseEdgeBps
		}
		limit := params.MaxMultiplier
		if limit == 0 {
			limit = DefaultMaxMultiplier
		}
		m, err := CrashMultiplier(digest, edge, limit)
		if err != nil {
			return nil, err
		}
		out.Multiplier = m
	case GameMines:
		cells, err := MineCells(digest, params.Grid, params.MineCount)
		if err != nil {
			return nil, err
		}
		out.Cells = cells
	case GameKeno:
		numbers, err := KenoNumbers(digest, params.Count, params.Max)
		if err != nil {
			return nil, err
		}
		out.Numbers = numbers
	case GamePlinko:
		slot, err := PlinkoSlot(digest, params.Rows)
		if err != nil {
			return nil, err
		}
		out.Slot = slot
	case GameHiLo:
		card, err := HiLoCard(digest)
		if err != nil {
			return nil, err
		}
		out.Card = &card
	case GameWheel:
		idx, err := WheelSpin(digest, params.Segments)
		if err != nil {
			return nil, err
		}
		out.Segment = idx
		picked := params.Segments[idx]
		out.Picked = &picked
	default:
		return nil, fmt.Errorf("fairness: unknown game type %q", game)
	}
	return out, nil
}

// VerifyRequest is the input to the public verification path.
type VerifyRequest struct {
	GameType       GameType `json:"gameType"`
	ServerSeed     string   `json:"serverSeed"`
	ServerSeedHash string   `json:"serverSeedHash"`
	ClientSeed     string   `json:"clientSeed"`
	Nonce          uint64   `json:"nonce"`
	Params         Params   `json:"gameData"`
}

// Verify recomputes a previously produced outcome from revealed seeds. When a
// commitment hash is supplied it is checked against the revealed server seed
// before anything else. The returned outcome is bit-identical to the one the
// live path produced for the same inputs.
func Verify(req VerifyRequest) (*Outcome, error) {
	if strings.TrimSpace(req.ServerSeed) == "" {
		return nil, fmt.Errorf("fairness: server seed required")
	}
	if !req.GameType.Valid() {
		return nil, fmt.Errorf("fairness: unknown game type %q", req.GameType)
	}
	if strings.TrimSpace(req.ServerSeedHash) != "" && !VerifyCommitment(req.ServerSeed, req.ServerSeedHash) {
		return nil, ErrCommitmentMismatch
	}
	digest := GenerateResult(req.ServerSeed, req.ClientSeed, req.Nonce)
	return Resolve(req.GameType, digest, req.Params)
}
