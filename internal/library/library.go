// Package library builds the immutable game index from the ROM tree.
//
// Every file found directly inside a platform directory becomes an Entry
// keyed by the uppercase form of its path. The index is built once at
// startup and never changes while the process runs.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// platformCodeLen is the width of the platform-code segment that follows
// the library root in a key ("ROMS/NES/..." -> "NES").
const platformCodeLen = 3

// Group is one platform and the directory its ROMs are listed from.
type Group struct {
	Platform string
	Dir      string
}

// Entry is one game in the library.
type Entry struct {
	// Key is strings.ToUpper(Path).
	Key string
	// Path is the canonical path, as listed from the group directory.
	Path string
	// Platform is the tag of the group the entry was found in.
	Platform string
}

// ScanError reports a platform directory that could not be listed.
type ScanError struct {
	Platform string
	Dir      string
	Err      error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("library: list %s directory %s: %v", e.Platform, e.Dir, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// ErrNoGroups is returned by Build when no platform groups are configured.
var ErrNoGroups = errors.New("library: no platform groups")

// Index maps normalized keys to entries. It is safe for concurrent reads.
type Index struct {
	root     string
	entries  map[string]Entry
	keys     []string
	playable []string
}

// Build lists each group directory (non-recursively) and indexes every
// entry found. On key collision the later group or entry wins. root is the
// library directory the groups live under; it anchors the path-shape check.
func Build(root string, groups []Group) (*Index, error) {
	if len(groups) == 0 {
		return nil, ErrNoGroups
	}

	idx := &Index{
		root:    Normalize(filepath.Clean(root)),
		entries: make(map[string]Entry),
	}

	for _, g := range groups {
		dirEntries, err := os.ReadDir(g.Dir)
		if err != nil {
			return nil, &ScanError{Platform: g.Platform, Dir: g.Dir, Err: err}
		}
		for _, de := range dirEntries {
			path := filepath.Join(g.Dir, de.Name())
			key := Normalize(path)
			idx.entries[key] = Entry{Key: key, Path: path, Platform: g.Platform}
		}
	}

	idx.keys = make([]string, 0, len(idx.entries))
	for key := range idx.entries {
		idx.keys = append(idx.keys, key)
	}
	sort.Strings(idx.keys)

	for _, key := range idx.keys {
		if idx.Playable(key) {
			idx.playable = append(idx.playable, key)
		}
	}
	return idx, nil
}

// FromEntries builds an index from already known entries. Keys are
// recomputed from paths so the Key == Normalize(Path) invariant holds.
func FromEntries(root string, entries []Entry) *Index {
	idx := &Index{
		root:    Normalize(filepath.Clean(root)),
		entries: make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		e.Key = Normalize(e.Path)
		idx.entries[e.Key] = e
	}
	for key := range idx.entries {
		idx.keys = append(idx.keys, key)
	}
	sort.Strings(idx.keys)
	for _, key := range idx.keys {
		if idx.Playable(key) {
			idx.playable = append(idx.playable, key)
		}
	}
	return idx
}

// Normalize returns the lookup key for a path.
func Normalize(path string) string {
	return strings.ToUpper(filepath.ToSlash(path))
}

// Root returns the normalized library root, e.g. "ROMS".
func (idx *Index) Root() string { return idx.root }

// Lookup returns the entry stored under key.
func (idx *Index) Lookup(key string) (Entry, bool) {
	e, ok := idx.entries[key]
	return e, ok
}

// Len returns the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Keys returns all keys in sorted order. The slice must not be modified.
func (idx *Index) Keys() []string { return idx.keys }

// PlayableKeys returns the keys that pass the path-shape check, sorted.
// The slice must not be modified.
func (idx *Index) PlayableKeys() []string { return idx.playable }

// Playable reports whether key has the shape of a well-formed ROM path: the
// platform-code segment right after "<ROOT>/" must also end the key, as in
// ROMS/NES/MARIO.NES. Stray files such as ROMS/NES/README.TXT fail.
func (idx *Index) Playable(key string) bool {
	start := len(idx.root) + 1
	end := start + platformCodeLen
	if len(key) < end || !strings.HasPrefix(key, idx.root+"/") {
		return false
	}
	return strings.HasSuffix(key, key[start:end])
}
