package ircache

import "fmt"

// Kind classifies an Error, matching the error-kind table of the
// synchronization design: callers can switch on Kind instead of
// matching strings.
type Kind int

const (
	// KindParseAnomaly is a malformed RPSL attribute or line. The
	// offending attribute is skipped; ingestion continues.
	KindParseAnomaly Kind = iota

	// KindNonCanonicalPrefix is a prefix whose host bits were non-zero
	// before canonicalization.
	KindNonCanonicalPrefix

	// KindDeleteMissing is a DEL operation that found nothing to
	// delete: a macro that isn't present, or a prefix bucket holding no
	// entry other than the target (see Index.ApplyRouteV4).
	KindDeleteMissing

	// KindSnapshotCorrupt is a snapshot that could not be imported:
	// missing, unreadable, or failing to decode.
	KindSnapshotCorrupt

	// KindFetchFailed is a transport or persistence failure: a serial
	// or dump URL fetch, an NRTM connection error, or a snapshot write.
	KindFetchFailed

	// KindProtocolAnomaly is an unexpected NRTM line.
	KindProtocolAnomaly
)

func (k Kind) String() string {
	switch k {
	case KindParseAnomaly:
		return "parse-anomaly"
	case KindNonCanonicalPrefix:
		return "non-canonical-prefix"
	case KindDeleteMissing:
		return "delete-missing"
	case KindSnapshotCorrupt:
		return "snapshot-corrupt"
	case KindFetchFailed:
		return "fetch-failed"
	case KindProtocolAnomaly:
		return "protocol-anomaly"
	default:
		return "unknown"
	}
}

// Error is a structured, non-fatal condition raised while ingesting or
// looking up registry data. Nothing in this package is fatal to a
// running process: Error values are reported through an Observe
// callback (see Event), never returned up as a reason to stop.
type Error struct {
	Kind     Kind
	Registry string
	Text     string
}

func (e *Error) Error() string {
	if e.Registry != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Registry, e.Text)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Text)
}
