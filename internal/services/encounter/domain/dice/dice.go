// Package dice validates damage-roll expressions and rolls them.
//
// An expression has the form "NdS" where N is the die count in [1,100] and S
// is one of the standard polyhedral sizes: 4, 6, 8, 10, 12, 20 or 100.
package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
)

const (
	MinCount = 1
	MaxCount = 100
)

var (
	expressionPattern = regexp.MustCompile(`^(\d+)d(\d+)$`)
	allowedSides      = []int{4, 6, 8, 10, 12, 20, 100}
)

// Spec describes a die to roll and how many times to roll it.
type Spec struct {
	Count int
	Sides int
}

// String renders the spec back into "NdS" form.
func (s Spec) String() string {
	return fmt.Sprintf("%dd%d", s.Count, s.Sides)
}

// Valid reports whether the count and sides are in range.
func (s Spec) Valid() bool {
	return s.Count >= MinCount && s.Count <= MaxCount && validSides(s.Sides)
}

// Parse validates one expression.
func Parse(expression string) (Spec, error) {
	match := expressionPattern.FindStringSubmatch(strings.TrimSpace(expression))
	if match == nil {
		return Spec{}, invalidSpec(expression, "expression must look like NdS")
	}
	count, err := strconv.Atoi(match[1])
	if err != nil || count < MinCount || count > MaxCount {
		return Spec{}, invalidSpec(expression, fmt.Sprintf("count must be between %d and %d", MinCount, MaxCount))
	}
	sides, err := strconv.Atoi(match[2])
	if err != nil || !validSides(sides) {
		return Spec{}, invalidSpec(expression, "sides must be one of 4, 6, 8, 10, 12, 20, 100")
	}
	return Spec{Count: count, Sides: sides}, nil
}

// Decompose parses every expression and keeps only the valid ones, in input
// order. Malformed terms are dropped without an error.
func Decompose(expressions []string) []Spec {
	specs := make([]Spec, 0, len(expressions))
	for _, expression := range expressions {
		spec, err := Parse(expression)
		if err != nil {
			continue
		}
		specs = append(specs, spec)
	}
	return specs
}

// Average returns the expected total of the specs, rounded down.
func Average(specs []Spec) int {
	// Sum twice the mean of each die to stay in integers: 2*mean(dS) = S+1.
	doubled := 0
	for _, spec := range specs {
		doubled += spec.Count * (spec.Sides + 1)
	}
	return doubled / 2
}

func validSides(sides int) bool {
	for _, allowed := range allowedSides {
		if sides == allowed {
			return true
		}
	}
	return false
}

func invalidSpec(expression, reason string) error {
	return apperrors.WithMetadata(apperrors.CodeDiceInvalidSpec, reason, map[string]string{"Expression": expression})
}
