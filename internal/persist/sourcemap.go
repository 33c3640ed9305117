package persist

import (
	"github.com/tsnlang/tsn/internal/source"
)

// SourceMap maps one persisted function's instruction index back to the
// source.Location it was compiled from, per spec.md §4.12/SPEC_FULL.md §4.
// The VM does not consult it: vm.go's trap raises exceptions with a
// zero-value Location.
type SourceMap struct {
	Src     *source.ModuleSource
	entries map[uint64]map[int]source.Location // functionID -> instruction index -> Location
}

// NewSourceMap creates an empty SourceMap rooted at src (nil if the
// original text wasn't available, e.g. a module restored without its
// source).
func NewSourceMap(src *source.ModuleSource) *SourceMap {
	return &SourceMap{Src: src, entries: map[uint64]map[int]source.Location{}}
}

// Record associates instruction index i of function fnID with loc.
func (sm *SourceMap) Record(fnID uint64, i int, loc source.Location) {
	m, ok := sm.entries[fnID]
	if !ok {
		m = map[int]source.Location{}
		sm.entries[fnID] = m
	}
	m[i] = loc
}

// Lookup returns the Location recorded for instruction i of function fnID,
// if any.
func (sm *SourceMap) Lookup(fnID uint64, i int) (source.Location, bool) {
	m, ok := sm.entries[fnID]
	if !ok {
		return source.Location{}, false
	}
	loc, ok := m[i]
	return loc, ok
}

func locationToRecord(loc source.Location) LocationRecord {
	return LocationRecord{
		Offset: loc.Offset, EndOffset: loc.EndOffset,
		Line: loc.Line, Column: loc.Column,
		EndLine: loc.EndLine, EndColumn: loc.EndColumn,
	}
}

func recordToLocation(src *source.ModuleSource, r LocationRecord) source.Location {
	return source.Location{
		Src:        src,
		Offset:     r.Offset,
		EndOffset:  r.EndOffset,
		Line:       r.Line,
		Column:     r.Column,
		EndLine:    r.EndLine,
		EndColumn:  r.EndColumn,
	}
}
