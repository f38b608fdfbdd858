package ircache

import "sync"

// Index is the in-memory per-registry store: the macro table and the
// two origin-to-prefixes tables.
//
// An Index is mutated only by the component that owns its registry's
// data feed (see registry/bootstrap.go, registry/nrtm.go); the mutex
// exists so the HTTP query surface can read concurrently without
// blocking on whatever the feed is doing.
type Index struct {
	mu sync.RWMutex

	serial uint32
	macros map[string][]string
	asnv4  map[ASN][]PrefixV4
	asnv6  map[ASN][]PrefixV6
}

// NewIndex creates an empty index with the given starting serial.
func NewIndex(serial uint32) *Index {
	return &Index{
		serial: serial,
		macros: make(map[string][]string),
		asnv4:  make(map[ASN][]PrefixV4),
		asnv6:  make(map[ASN][]PrefixV6),
	}
}

// Serial returns the index's current serial.
func (idx *Index) Serial() uint32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.serial
}

// SetSerial sets the index's serial. Called by the NRTM synchronizer
// when a session's deltas are committed on %END.
func (idx *Index) SetSerial(serial uint32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.serial = serial
}

// ApplyMacro assigns or, if remove, erases a macro definition. Erasing
// an absent macro is reported but not fatal.
func (idx *Index) ApplyMacro(name string, members []string, remove bool, obs Observer) {
	obs = observerOrNoop(obs)
	name = upper(name)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if remove {
		if _, ok := idx.macros[name]; !ok {
			obs(Event{Err: &Error{Kind: KindDeleteMissing, Text: "macro not present: " + name}})
		}
		delete(idx.macros, name)
		return
	}
	idx.macros[name] = members
}

// LookupMacro returns a macro's member list, and whether it exists.
func (idx *Index) LookupMacro(name string) ([]string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	members, ok := idx.macros[upper(name)]
	return members, ok
}

// ApplyRouteV4 appends, or (if remove) deletes, an IPv4 route entry
// for an origin ASN.
//
// The delete path deletes the first entry that does NOT equal the
// target prefix, rather than the first one that does. This mirrors
// the behavior of the system being modeled rather than the more
// obviously correct "delete the matching entry" — see DESIGN.md for
// the rationale behind preserving it. A KindDeleteMissing event is
// reported only when the bucket holds no entry other than the target
// (including an empty bucket); deleting an absent prefix from a
// non-empty bucket removes that bucket's first entry without a report.
func (idx *Index) ApplyRouteV4(origin ASN, prefix PrefixV4, remove bool, obs Observer) {
	obs = observerOrNoop(obs)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !remove {
		idx.asnv4[origin] = append(idx.asnv4[origin], prefix)
		return
	}

	list := idx.asnv4[origin]
	victim := -1
	for i, p := range list {
		if p != prefix {
			victim = i
			break
		}
	}
	if victim < 0 {
		obs(Event{Err: &Error{Kind: KindDeleteMissing, Text: "prefix not present: " + prefix.String()}})
		return
	}
	idx.asnv4[origin] = append(list[:victim], list[victim+1:]...)
}

// ApplyRouteV6 is ApplyRouteV4 for IPv6.
func (idx *Index) ApplyRouteV6(origin ASN, prefix PrefixV6, remove bool, obs Observer) {
	obs = observerOrNoop(obs)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !remove {
		idx.asnv6[origin] = append(idx.asnv6[origin], prefix)
		return
	}

	list := idx.asnv6[origin]
	victim := -1
	for i, p := range list {
		if p != prefix {
			victim = i
			break
		}
	}
	if victim < 0 {
		obs(Event{Err: &Error{Kind: KindDeleteMissing, Text: "prefix not present: " + prefix.String()}})
		return
	}
	idx.asnv6[origin] = append(list[:victim], list[victim+1:]...)
}

// PrefixesV4 returns the stored (possibly duplicate-containing) list
// for an origin ASN.
func (idx *Index) PrefixesV4(origin ASN) []PrefixV4 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.asnv4[origin]
}

// PrefixesV6 is PrefixesV4 for IPv6.
func (idx *Index) PrefixesV6(origin ASN) []PrefixV6 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.asnv6[origin]
}

// Apply dispatches a parsed Object into the index. remove is true for
// NRTM DEL operations and false for bootstrap ingestion and NRTM ADD.
func (idx *Index) Apply(obj Object, remove bool, obs Observer) {
	switch {
	case obj.Macro != nil:
		idx.ApplyMacro(obj.Macro.Name, obj.Macro.Members, remove, obs)
	case obj.V4 != nil:
		idx.ApplyRouteV4(obj.V4.Origin, obj.V4.Prefix, remove, obs)
	case obj.V6 != nil:
		idx.ApplyRouteV6(obj.V6.Origin, obj.V6.Prefix, remove, obs)
	}
}

// Snapshot returns a point-in-time, deep copy of the index's buckets,
// suitable for encoding (snapshot.Encode) or for a lock-free read by
// the HTTP query surface: the lock is only held long enough to copy
// the buckets, not for the whole read or encode.
func (idx *Index) Snapshot() (serial uint32, macros map[string][]string, asnv4 map[ASN][]PrefixV4, asnv6 map[ASN][]PrefixV6) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	macros = make(map[string][]string, len(idx.macros))
	for k, v := range idx.macros {
		cp := make([]string, len(v))
		copy(cp, v)
		macros[k] = cp
	}

	asnv4 = make(map[ASN][]PrefixV4, len(idx.asnv4))
	for k, v := range idx.asnv4 {
		cp := make([]PrefixV4, len(v))
		copy(cp, v)
		asnv4[k] = cp
	}

	asnv6 = make(map[ASN][]PrefixV6, len(idx.asnv6))
	for k, v := range idx.asnv6 {
		cp := make([]PrefixV6, len(v))
		copy(cp, v)
		asnv6[k] = cp
	}

	return idx.serial, macros, asnv4, asnv6
}

func upper(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
