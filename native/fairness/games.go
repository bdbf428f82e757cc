package fairness

import (
	"fmt"
	"math"
)

// Default crash parameters. The house edge and cap are part of the committed
// hash-to-outcome mapping: changing either invalidates every published
// verification, so they are fixed here and overridden only through explicit
// parameters that are themselves published.
const (
	DefaultHouseEdgeBps  = 100
	DefaultMaxMultiplier = 10_000.00
)

// unitClamp keeps the crash divisor away from zero so the multiplier stays
// finite at the extreme of the unit range.
const unitClamp = 1e-9

// DiceRoll maps the digest onto [0.00, 100.00] with two-decimal resolution.
func DiceRoll(digest string) (float64, error) {
	n, err := digestInt(digest)
	if err != nil {
		return 0, err
	}
	return math.Round(float64(n%10001)) / 100, nil
}

// CrashMultiplier derives the crash point for a crash or pump round. The
// distribution is heavy-tailed: a (1-edge) share of the unit mass resolves
// below 2x and large multipliers are correspondingly rare. The result is
// floored to two decimals, never below 1.00 and never above maxMultiplier.
func CrashMultiplier(digest string, houseEdgeBps int, maxMultiplier float64) (float64, error) {
	if houseEdgeBps < 0 || houseEdgeBps >= 10_000 {
		return 0, fmt.Errorf("fairness: house edge bps out of range: %d", houseEdgeBps)
	}
	if maxMultiplier < 1 {
		return 0, fmt.Errorf("fairness: max multiplier must be >= 1, got %v", maxMultiplier)
	}
	u, err := UnitFloat(digest)
	if err != nil {
		return 0, err
	}
	if u > 1-unitClamp {
		u = 1 - unitClamp
	}
	edge := float64(houseEdgeBps) / 10_000
	m := (1 - edge) / (1 - u)
	m = math.Floor(m*100) / 100
	if m < 1 {
		m = 1
	}
	if m > maxMultiplier {
		m = maxMultiplier
	}
	return m, nil
}

// PlinkoSlot derives the landing slot for a board with the given number of
// rows. Each row contributes one bit obtained by doubling the unit float and
// taking the integer part; the slot is the count of set bits, in [0, rows].
func PlinkoSlot(digest string, rows int) (int, error) {
	if rows <= 0 {
		return 0, fmt.Errorf("fairness: plinko rows must be positive, got %d", rows)
	}
	u, err := UnitFloat(digest)
	if err != nil {
		return 0, err
	}
	slot := 0
	for i := 0; i < rows; i++ {
		u *= 2
		bit := int(u)
		if bit > 1 {
			bit = 1
		}
		slot += bit
		u -= float64(bit)
	}
	return slot, nil
}

// Card is a hilo draw: rank 1 (ace) through 13 (king) and suit 0 through 3.
type Card struct {
	Rank int `json:"rank"`
	Suit int `json:"suit"`
}

// HiLoCard derives a single card. The rank comes from the unit float, the
// suit from the digest byte following the four consumed by the unit float.
func HiLoCard(digest string) (Card, error) {
	u, err := UnitFloat(digest)
	if err != nil {
		return Card{}, err
	}
	rank := int(math.Floor(u*13)) + 1
	if rank > 13 {
		rank = 13
	}
	b, err := digestByte(digest, 4)
	if err != nil {
		return Card{}, err
	}
	return Card{Rank: rank, Suit: int(b % 4)}, nil
}

// WheelSegment describes one weighted segment of a wheel layout.
type WheelSegment struct {
	Multiplier float64 `json:"multiplier"`
	Weight     int     `json:"weight"`
	Color      string  `json:"color"`
}

// WheelSpin selects a segment index by walking cumulative weights until the
// cumulative share reaches the threshold derived from the unit float. The
// last segment absorbs the float edge case where the threshold lands exactly
// on the total weight.
func WheelSpin(digest string, segments []WheelSegment) (int, error) {
	if len(segments) == 0 {
		return 0, fmt.Errorf("fairness: wheel requires at least one segment")
	}
	total := 0
	for i, seg := range segments {
		if seg.Weight <= 0 {
			return 0, fmt.Errorf("fairness: wheel segment %d has non-positive weight %d", i, seg.Weight)
		}
		total += seg.Weight
	}
	u, err := UnitFloat(digest)
	if err != nil {
		return 0, err
	}
	threshold := u * float64(total)
	cumulative := 0
	for i, seg := range segments {
		cumulative += seg.Weight
		if float64(cumulative) >= threshold {
			return i, nil
		}
	}
	return len(segments) - 1, nil
}
