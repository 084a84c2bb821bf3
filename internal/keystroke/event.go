package keystroke

import "strings"

// Markers that identify a key-release line in evtest output, e.g.
//
//	Event: time 1700000000.123456, type 1 (EV_KEY), code 30 (KEY_A), value 0
const (
	eventTypeMarker = "(EV_KEY)"
	keyNameMarker   = "(KEY_"
	releaseMarker   = ", value 0"
)

// ParseEventLine extracts the key name from a key-release line. Every other
// line, including presses, autorepeats and diagnostics, is rejected.
func ParseEventLine(line string) (name string, ok bool) {
	if !strings.Contains(line, eventTypeMarker) || !strings.Contains(line, releaseMarker) {
		return "", false
	}
	_, rest, found := strings.Cut(line, keyNameMarker)
	if !found {
		return "", false
	}
	name, _, found = strings.Cut(rest, ")")
	if !found || name == "" {
		return "", false
	}
	return name, true
}
