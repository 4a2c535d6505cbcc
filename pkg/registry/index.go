package registry

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/compkgs/pkg/errors"
)

// Entry is one package of the registry snapshot.
type Entry struct {
	AttrPath string `json:"-"`       // Unique attribute path, e.g. "home-assistant.python.pkgs.aiohttp"
	Name     string `json:"name"`    // Derivation name, e.g. "python3.12-aiohttp-3.9.1"
	Version  string `json:"version"` // Version string as packaged
}

// Attr returns the last segment of the attribute path.
func (e Entry) Attr() string {
	return AttrName(e.AttrPath)
}

// AttrName returns the last dot-separated segment of an attribute path.
func AttrName(attrPath string) string {
	if i := strings.LastIndex(attrPath, "."); i >= 0 {
		return attrPath[i+1:]
	}
	return attrPath
}

// Index is a read-only snapshot of a registry namespace keyed by attribute
// path.
type Index struct {
	entries map[string]Entry
	order   []string
}

// NewIndex builds an Index from entries. Later entries with a duplicate
// attribute path replace earlier ones.
func NewIndex(entries ...Entry) *Index {
	ix := &Index{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		ix.entries[e.AttrPath] = e
	}
	ix.order = slices.Sorted(maps.Keys(ix.entries))
	return ix
}

// DecodeIndex parses the JSON produced by "nix-env -qa --json": an object
// mapping attribute paths to objects with at least "name" and "version".
func DecodeIndex(data []byte) (*Index, error) {
	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryDump, err, "decode registry dump")
	}
	entries := make([]Entry, 0, len(raw))
	for attr, e := range raw {
		e.AttrPath = attr
		entries = append(entries, e)
	}
	return NewIndex(entries...), nil
}

// MarshalJSON encodes the index in the same shape [DecodeIndex] reads.
func (ix *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(ix.entries)
}

// Len returns the number of packages.
func (ix *Index) Len() int { return len(ix.entries) }

// Get returns the entry for attrPath.
func (ix *Index) Get(attrPath string) (Entry, bool) {
	e, ok := ix.entries[attrPath]
	return e, ok
}

// Version returns the packaged version of attrPath, or "" if the attribute
// is not in the snapshot.
func (ix *Index) Version(attrPath string) string {
	return ix.entries[attrPath].Version
}

// Entries returns all entries ordered by attribute path.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, len(ix.order))
	for i, attr := range ix.order {
		out[i] = ix.entries[attr]
	}
	return out
}
