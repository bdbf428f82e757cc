package fairness

import "fmt"

// lcg is the linear congruential generator used for the without-replacement
// draws in mines and keno. Constants are the Numerical Recipes parameters with
// an implicit 2^32 modulus. The generator is reseeded from the digest for
// every draw, so a draw is a pure function of the digest.
type lcg struct {
	state uint32
}

func newLCG(seed uint32) *lcg {
	return &lcg{state: seed}
}

func (l *lcg) next() uint32 {
	l.state = l.state*1664525 + 1013904223
	return l.state
}

// drawUnique selects count distinct values from the candidates slice using a
// partial Fisher-Yates shuffle driven by the generator. The input slice is
// mutated. Selection order is preserved in the returned slice.
func (l *lcg) drawUnique(candidates []int, count int) []int {
	picked := make([]int, 0, count)
	for i := 0; i < count; i++ {
		j := i + int(l.next()%uint32(len(candidates)-i))
		candidates[i], candidates[j] = candidates[j], candidates[i]
		picked = append(picked, candidates[i])
	}
	return picked
}

// MineCells derives mineCount distinct cell indices on a grid×grid board.
// Indices are row-major in [0, grid²).
func MineCells(digest string, grid, mineCount int) ([]int, error) {
	if grid <= 0 {
		return nil, fmt.Errorf("fairness: grid size must be positive, got %d", grid)
	}
	cells := grid * grid
	if mineCount <= 0 || mineCount >= cells {
		return nil, fmt.Errorf("fairness: mine count %d out of range for %d cells", mineCount, cells)
	}
	seed, err := digestSeed32(digest)
	if err != nil {
		return nil, err
	}
	candidates := make([]int, cells)
	for i := range candidates {
		candidates[i] = i
	}
	return newLCG(seed).drawUnique(candidates, mineCount), nil
}

// KenoNumbers derives count distinct numbers in [1, max].
func KenoNumbers(digest string, count, max int) ([]int, error) {
	if max <= 0 {
		return nil, fmt.Errorf("fairness: keno max must be positive, got %d", max)
	}
	if count <= 0 || count > max {
		return nil, fmt.Errorf("fairness: keno count %d out of range for max %d", count, max)
	}
	seed, err := digestSeed32(digest)
	if err != nil {
		return nil, err
	}
	candidates := make([]int, max)
	for i := range candidates {
		candidates[i] = i + 1
	}
	return newLCG(seed).drawUnique(candidates, count), nil
}
