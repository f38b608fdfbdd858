package ircache

// Event is an observation reported by a component for a condition that
// is interesting but not an error a caller needs to handle: a
// non-canonical prefix repaired in place, a delete that targeted
// something absent, an ignored protocol line.
type Event struct {
	Err      *Error
	Registry string
	Detail   string
}

// Observer receives Events as components run. A nil Observer is
// treated as a no-op, so callers that don't care about diagnostics
// never need to supply one.
type Observer func(Event)

func noopObserver(Event) {}

func observerOrNoop(o Observer) Observer {
	if o == nil {
		return noopObserver
	}
	return o
}
