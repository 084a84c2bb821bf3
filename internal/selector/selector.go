// Package selector picks the game a session starts with and resolves swiped
// selections against the library index.
package selector

import (
	"errors"
	"strings"
	"unicode/utf8"

	"retroswiper/internal/library"
)

var (
	// ErrEmptyLibrary is returned by PickRandom when the index has no entries.
	ErrEmptyLibrary = errors.New("selector: library is empty")

	// ErrNoPlayable is returned by PickRandom when no entry passes the
	// path-shape check.
	ErrNoPlayable = errors.New("selector: no playable entries")
)

// Selector maps random draws and swiped text onto library keys.
type Selector struct {
	idx  *library.Index
	root string
	src  RandomSource
}

// New creates a Selector over idx. root is the uppercase library prefix that
// swiped selections are resolved under; when empty the index root is used.
// A nil src falls back to a ClockSource.
func New(idx *library.Index, root string, src RandomSource) *Selector {
	if root == "" {
		root = idx.Root()
	}
	if src == nil {
		src = NewClockSource()
	}
	return &Selector{idx: idx, root: strings.ToUpper(root), src: src}
}

// PickRandom draws a random playable key. Candidates that fail the
// path-shape check are redrawn, at most Len() times, before falling back to a
// draw from the playable set computed when the index was built.
func (s *Selector) PickRandom() (string, error) {
	keys := s.idx.Keys()
	if len(keys) == 0 {
		return "", ErrEmptyLibrary
	}

	for range len(keys) {
		key := keys[s.src.IntN(len(keys))]
		if s.idx.Playable(key) {
			return key, nil
		}
	}

	playable := s.idx.PlayableKeys()
	if len(playable) == 0 {
		return "", ErrNoPlayable
	}
	return playable[s.src.IntN(len(playable))], nil
}

// Resolve turns decoded swipe text into a lookup key. The first character is
// the card's start sentinel and is dropped; the rest is uppercased under the
// library root. found reports whether the key exists; absence is not an error.
func (s *Selector) Resolve(raw string) (key string, found bool) {
	key = Key(s.root, raw)
	_, found = s.idx.Lookup(key)
	return key, found
}

// Key builds the lookup key for raw under root without consulting an index.
func Key(root, raw string) string {
	if raw != "" {
		_, size := utf8.DecodeRuneInString(raw)
		raw = raw[size:]
	}
	return strings.ToUpper(root + "/" + raw)
}
