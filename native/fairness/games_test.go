package fairness

import (
	"testing"
)

func TestDiceRollKnownVector(t *testing.T) {
	roll, err := DiceRoll(testDigest)
	if err != nil {
		t.Fatal(err)
	}
	if roll != 66.13 {
		t.Fatalf("dice roll: got %v want 66.13", roll)
	}
}

func TestDiceRollRange(t *testing.T) {
	for nonce := uint64(0); nonce < 1000; nonce++ {
		digest := GenerateResult(testServerSeed, testClientSeed, nonce)
		roll, err := DiceRoll(digest)
		if err != nil {
			t.Fatalf("nonce %d: %v", nonce, err)
		}
		if roll < 0 || roll > 100 {
			t.Fatalf("nonce %d: roll %v outside [0,100]", nonce, roll)
		}
	}
}

func TestCrashMultiplierKnownVector(t *testing.T) {
	m, err := CrashMultiplier(testDigest, DefaultHouseEdgeBps, DefaultMaxMultiplier)
	if err != nil {
		t.Fatal(err)
	}
	if m != 1.11 {
		t.Fatalf("crash multiplier: got %v want 1.11", m)
	}
}

func TestCrashMultiplierBounds(t *testing.T) {
	below2 := 0
	const samples = 2000
	for nonce := uint64(0); nonce < samples; nonce++ {
		digest := GenerateResult(testServerSeed, testClientSeed, nonce)
		m, err := CrashMultiplier(digest, DefaultHouseEdgeBps, DefaultMaxMultiplier)
		if err != nil {
			t.Fatalf("nonce %d: %v", nonce, err)
		}
		if m < 1 {
			t.Fatalf("nonce %d: multiplier %v below 1.00", nonce, m)
		}
		if m > DefaultMaxMultiplier {
			t.Fatalf("nonce %d: multiplier %v above cap", nonce, m)
		}
		if m < 2 {
			below2++
		}
	}
	// The distribution is heavy-tailed: roughly half the mass sits below 2x.
	if below2 < samples/3 {
		t.Fatalf("expected most rounds below 2x, got %d of %d", below2, samples)
	}
}

func TestCrashMultiplierRejectsBadParams(t *testing.T) {
	if _, err := CrashMultiplier(testDigest, -1, DefaultMaxMultiplier); err == nil {
		t.Fatal("expected error for negative house edge")
	}
	if _, err := CrashMultiplier(testDigest, 10_000, DefaultMaxMultiplier); err == nil {
		t.Fatal("expected error for 100% house edge")
	}
	if _, err := CrashMultiplier(testDigest, DefaultHouseEdgeBps, 0.5); err == nil {
		t.Fatal("expected error for sub-1 cap")
	}
}

func TestMineCellsKnownVector(t *testing.T) {
	cells, err := MineCells(testDigest, 5, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{19, 13, 20}
	if len(cells) != len(want) {
		t.Fatalf("cells: got %v want %v", cells, want)
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Fatalf("cells: got %v want %v", cells, want)
		}
	}
}

func TestMineCellsUniqueAndBounded(t *testing.T) {
	for nonce := uint64(0); nonce < 300; nonce++ {
		digest := GenerateResult(testServerSeed, testClientSeed, nonce)
		cells, err := MineCells(digest, 5, 10)
		if err != nil {
			t.Fatalf("nonce %d: %v", nonce, err)
		}
		seen := make(map[int]bool, len(cells))
		for _, c := range cells {
			if c < 0 || c >= 25 {
				t.Fatalf("nonce %d: cell %d outside grid", nonce, c)
			}
			if seen[c] {
				t.Fatalf("nonce %d: duplicate cell %d", nonce, c)
			}
			seen[c] = true
		}
	}
}

func TestMineCellsRejectsBadParams(t *testing.T) {
	if _, err := MineCells(testDigest, 0, 3); err == nil {
		t.Fatal("expected error for zero grid")
	}
	if _, err := MineCells(testDigest, 5, 25); err == nil {
		t.Fatal("expected error for fully mined grid")
	}
	if _, err := MineCells(testDigest, 5, 0); err == nil {
		t.Fatal("expected error for zero mines")
	}
}

func TestKenoNumbersKnownVector(t *testing.T) {
	numbers, err := KenoNumbers(testDigest, 10, 40)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{10, 11, 16, 35, 34, 22, 40, 13, 1, 8}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("keno: got %v want %v", numbers, want)
		}
	}
}

func TestKenoNumbersUniqueAndBounded(t *testing.T) {
	for nonce := uint64(0); nonce < 300; nonce++ {
		digest := GenerateResult(testServerSeed, testClientSeed, nonce)
		numbers, err := KenoNumbers(digest, 10, 40)
		if err != nil {
			t.Fatalf("nonce %d: %v", nonce, err)
		}
		seen := make(map[int]bool, len(numbers))
		for _, n := range numbers {
			if n < 1 || n > 40 {
				t.Fatalf("nonce %d: number %d outside [1,40]", nonce, n)
			}
			if seen[n] {
				t.Fatalf("nonce %d: duplicate number %d", nonce, n)
			}
			seen[n] = true
		}
	}
}

func TestPlinkoSlotKnownVector(t *testing.T) {
	slot, err := PlinkoSlot(testDigest, 16)
	if err != nil {
		t.Fatal(err)
	}
	if slot != 7 {
		t.Fatalf("plinko slot: got %d want 7", slot)
	}
}

func TestPlinkoSlotRange(t *testing.T) {
	for nonce := uint64(0); nonce < 300; nonce++ {
		digest := GenerateResult(testServerSeed, testClientSeed, nonce)
		slot, err := PlinkoSlot(digest, 16)
		if err != nil {
			t.Fatalf("nonce %d: %v", nonce, err)
		}
		if slot < 0 || slot > 16 {
			t.Fatalf("nonce %d: slot %d outside [0,16]", nonce, slot)
		}
	}
}

func TestHiLoCardKnownVector(t *testing.T) {
	card, err := HiLoCard(testDigest)
	if err != nil {
		t.Fatal(err)
	}
	if card.Rank != 2 || card.Suit != 3 {
		t.Fatalf("hilo card: got %+v want rank 2 suit 3", card)
	}
}

func TestHiLoCardRange(t *testing.T) {
	for nonce := uint64(0); nonce < 300; nonce++ {
		digest := GenerateResult(testServerSeed, testClientSeed, nonce)
		card, err := HiLoCard(digest)
		if err != nil {
			t.Fatalf("nonce %d: %v", nonce, err)
		}
		if card.Rank < 1 || card.Rank > 13 {
			t.Fatalf("nonce %d: rank %d outside [1,13]", nonce, card.Rank)
		}
		if card.Suit < 0 || card.Suit > 3 {
			t.Fatalf("nonce %d: suit %d outside [0,3]", nonce, card.Suit)
		}
	}
}

func TestWheelSpin(t *testing.T) {
	segments := []WheelSegment{
		{Multiplier: 1.5, Weight: 50, Color: "grey"},
		{Multiplier: 2, Weight: 30, Color: "blue"},
		{Multiplier: 5, Weight: 15, Color: "green"},
		{Multiplier: 50, Weight: 5, Color: "gold"},
	}
	counts := make([]int, len(segments))
	for nonce := uint64(0); nonce < 2000; nonce++ {
		digest := GenerateResult(testServerSeed, testClientSeed, nonce)
		idx, err := WheelSpin(digest, segments)
		if err != nil {
			t.Fatalf("nonce %d: %v", nonce, err)
		}
		if idx < 0 || idx >= len(segments) {
			t.Fatalf("nonce %d: segment %d out of range", nonce, idx)
		}
		counts[idx]++
	}
	// Heaviest segment should win most often, lightest least often.
	if counts[0] <= counts[3] {
		t.Fatalf("weights not respected: %v", counts)
	}
}

func TestWheelSpinRejectsBadSegments(t *testing.T) {
	if _, err := WheelSpin(testDigest, nil); err == nil {
		t.Fatal("expected error for empty layout")
	}
	if _, err := WheelSpin(testDigest, []WheelSegment{{Multiplier: 2, Weight: 0}}); err == nil {
		t.Fatal("expected error for zero weight")
	}
}
