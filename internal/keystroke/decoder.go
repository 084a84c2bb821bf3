// Package keystroke turns the card reader's key events into text.
//
// The reader presents itself as a HID keyboard. A swipe arrives as a burst
// of key events that an external helper (evtest) prints one per line; this
// package filters those lines, decodes the key names with US-layout shift
// rules, and cuts the selection out of the decoded text.
package keystroke

import "strings"

const (
	// EndSentinel ends the useful part of a track. Unmapped keys decode to
	// the same character, so an unrecognized key also ends the selection.
	EndSentinel = '?'

	// Terminator is what the ENTER key decodes to; it ends a swipe.
	Terminator = '\n'

	// KeyEnter is the key name that completes a swipe.
	KeyEnter = "ENTER"
)

// shiftedDigits maps '0'..'9' to their shifted US-layout symbols.
const shiftedDigits = ")!@#$%^&*("

// punctuation holds the unshifted and shifted renderings of named keys.
var punctuation = map[string][2]string{
	"GRAVE":      {"~", "`"},
	"MINUS":      {"-", "_"},
	"EQUAL":      {"=", "+"},
	"LEFTBRACE":  {"[", "{"},
	"RIGHTBRACE": {"]", "}"},
	"BACKSLASH":  {`\`, "|"},
	"SEMICOLON":  {";", ":"},
	"APOSTROPHE": {"'", `"`},
	"COMMA":      {",", "<"},
	"DOT":        {".", ">"},
	"SLASH":      {"/", "?"},
	"SPACE":      {" ", " "},
	KeyEnter:     {"\n", "\n"},
}

func isShift(name string) bool {
	return name == "LEFTSHIFT" || name == "RIGHTSHIFT"
}

// Decode renders key names as text. A shift key affects only the key that
// immediately follows it; names with no mapping decode to EndSentinel.
func Decode(names []string) string {
	var b strings.Builder
	shift := false

	for _, name := range names {
		if isShift(name) {
			shift = true
			continue
		}
		b.WriteString(decodeKey(name, shift))
		shift = false
	}
	return b.String()
}

func decodeKey(name string, shift bool) string {
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'A' && c <= 'Z':
			if shift {
				return name
			}
			return string(c + ('a' - 'A'))
		case c >= '0' && c <= '9':
			if shift {
				return string(shiftedDigits[c-'0'])
			}
			return name
		}
	}

	if r, ok := punctuation[name]; ok {
		if shift {
			return r[1]
		}
		return r[0]
	}
	return string(EndSentinel)
}

// Selection returns the part of decoded text before the first EndSentinel
// or Terminator.
func Selection(decoded string) string {
	if i := strings.IndexAny(decoded, string([]rune{EndSentinel, Terminator})); i >= 0 {
		return decoded[:i]
	}
	return decoded
}
