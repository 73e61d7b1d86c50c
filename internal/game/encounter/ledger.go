package encounter

import (
	"sort"

	"github.com/cory-johannsen/battlecore/internal/game/element"
)

// Entry is one collected drop type for one element.
type Entry struct {
	Element element.Element
	DropID  string
}

// Ledger records which drop types have been collected per element.
// Each drop type is collected at most once per element.
//
// A nil Ledger is an empty, read-only ledger.
type Ledger map[element.Element]map[string]struct{}

// NewLedger builds a Ledger holding entries.
func NewLedger(entries ...Entry) Ledger {
	l := make(Ledger)
	for _, e := range entries {
		l.Add(e.Element, e.DropID)
	}
	return l
}

// Has reports whether dropID has been collected for el.
func (l Ledger) Has(el element.Element, dropID string) bool {
	_, ok := l[el][dropID]
	return ok
}

// Add records dropID for el.
//
// Precondition: l must not be nil.
// Postcondition: Returns true if the entry was not already present.
func (l Ledger) Add(el element.Element, dropID string) bool {
	if l.Has(el, dropID) {
		return false
	}
	set, ok := l[el]
	if !ok {
		set = make(map[string]struct{})
		l[el] = set
	}
	set[dropID] = struct{}{}
	return true
}

// Clone returns an independent copy of l.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for el, set := range l {
		cp := make(map[string]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		out[el] = cp
	}
	return out
}

// Entries returns every collected entry ordered by element, then drop id.
func (l Ledger) Entries() []Entry {
	var out []Entry
	for el, set := range l {
		for id := range set {
			out = append(out, Entry{Element: el, DropID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Element != out[j].Element {
			return out[i].Element < out[j].Element
		}
		return out[i].DropID < out[j].DropID
	})
	return out
}

// Collected reports whether every loot entry of e is present in l.
// An encounter without loot is never considered collected.
func (l Ledger) Collected(e *Encounter) bool {
	if len(e.Loot) == 0 {
		return false
	}
	for _, entry := range e.Loot {
		if !l.Has(entry.Element, entry.DropID) {
			return false
		}
	}
	return true
}
