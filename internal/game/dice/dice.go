// Package dice provides the randomness abstraction and the two draws every
// Boxcars table lookup is keyed by: an odd/even parity and a 2d6 sum.
package dice

import (
	"fmt"
	"strings"
)

// Parity is the odd/even component of a roll.
type Parity string

const (
	// Odd selects the odd column of a roll table.
	Odd Parity = "odd"
	// Even selects the even column of a roll table.
	Even Parity = "even"
)

// Valid reports whether p is Odd or Even.
func (p Parity) Valid() bool {
	return p == Odd || p == Even
}

// Title returns the parity with its first letter upper-cased ("Odd", "Even").
func (p Parity) Title() string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseParity converts a case-insensitive "odd"/"even" string into a Parity.
//
// Postcondition: Returns a valid Parity or a non-nil error.
func ParseParity(s string) (Parity, error) {
	p := Parity(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("dice: invalid parity %q", s)
	}
	return p, nil
}

// MinSum and MaxSum bound the 2d6 sum.
const (
	MinSum = 2
	MaxSum = 12
)

// Draw is a single (parity, 2d6 sum) pair.
type Draw struct {
	Parity Parity `json:"parity"`
	Sum    int    `json:"sum"`
}

// String renders the draw the way it appears in roll summaries, e.g. "Odd+7".
func (d Draw) String() string {
	return fmt.Sprintf("%s+%d", d.Parity.Title(), d.Sum)
}
