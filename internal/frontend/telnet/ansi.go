// Package telnet serves the operator console over Telnet with ANSI styling.
package telnet

import "strings"

// ANSI escape codes used by the console.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Black   = "\033[30m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"

	BrightBlack = "\033[90m"
)

// playerColors maps player colour names to the code used to paint them.
// Black renders as bright black so it stays visible on dark terminals.
var playerColors = map[string]string{
	"black":  BrightBlack,
	"blue":   Blue,
	"green":  Green,
	"red":    Red,
	"white":  White,
	"yellow": Yellow,
}

// PlayerColor returns the ANSI code for a player colour name.
//
// Postcondition: Returns "" for unknown names.
func PlayerColor(name string) string {
	return playerColors[strings.ToLower(name)]
}

// Styler paints text when enabled and passes it through otherwise, so the
// same rendering code serves colour terminals and plain pipes.
type Styler struct {
	Enabled bool
}

// Paint wraps text with code and a reset suffix.
//
// Postcondition: Returns text unchanged when s is disabled or code is empty.
func (s Styler) Paint(code, text string) string {
	if !s.Enabled || code == "" {
		return text
	}
	return code + text + Reset
}

// StripANSI removes all ANSI escape sequences from a string.
//
// Postcondition: Returns text with all \033[...m sequences removed.
func StripANSI(s string) string {
	result := make([]byte, 0, len(s))
	i := 0
	for i < len(s) {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			if j < len(s) {
				i = j + 1
				continue
			}
		}
		result = append(result, s[i])
		i++
	}
	return string(result)
}
