package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
)

// ErrMissingDice indicates a roll request had no dice specified.
var ErrMissingDice = errors.New("at least one die must be provided")

// Roll captures the results for a single dice spec.
type Roll struct {
	Spec    Spec
	Results []int
	Total   int
}

// Result captures the results from rolling multiple specs.
type Result struct {
	Rolls []Roll
	Total int
}

// Roller rolls dice from a seeded source. It is deterministic for a given
// seed and call sequence, and is not safe for concurrent use.
type Roller struct {
	rng *rand.Rand
}

// NewRoller returns a roller seeded with seed.
func NewRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// NewRandomRoller returns a roller seeded from crypto/rand.
func NewRandomRoller() (*Roller, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewRoller(seed), nil
}

// Die rolls one die with the given number of sides.
func (r *Roller) Die(sides int) int {
	return r.rng.Intn(sides) + 1
}

// Roll rolls every spec in order. Results appear in the same order as specs.
func (r *Roller) Roll(specs []Spec) (Result, error) {
	if len(specs) == 0 {
		return Result{}, ErrMissingDice
	}

	rolls := make([]Roll, 0, len(specs))
	total := 0
	for _, spec := range specs {
		if !spec.Valid() {
			return Result{}, invalidSpec(spec.String(), "dice spec is out of range")
		}
		results := make([]int, spec.Count)
		rollTotal := 0
		for i := range results {
			results[i] = r.Die(spec.Sides)
			rollTotal += results[i]
		}
		rolls = append(rolls, Roll{Spec: spec, Results: results, Total: rollTotal})
		total += rollTotal
	}
	return Result{Rolls: rolls, Total: total}, nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
