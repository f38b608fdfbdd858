package registry

import (
	"io"
	"net/http"
	"time"

	ircache "github.com/bcix/tinyirrdbcache"
	"github.com/bcix/tinyirrdbcache/snapshot"
)

// retryInterval is how long a registry whose bootstrap failed at
// startup waits before the supervisor tries again, rather than
// leaving that registry permanently unavailable until a restart.
const retryInterval = 10 * time.Minute

// Supervisor orchestrates one registry's lifecycle end to end:
// snapshot import, falling back to bootstrap, then realtime sync.
type Supervisor struct {
	Config Config
	Store  snapshot.Backend
	HTTP   httpGetter
	Obs    ircache.Observer

	// RetryInterval overrides retryInterval for RetryLoop. Tests
	// shrink it so the loop doesn't block for the production
	// interval; production code leaves it at the default NewSupervisor
	// sets.
	RetryInterval time.Duration

	Index *ircache.Index
	sync  *Synchronizer
}

// NewSupervisor builds a Supervisor for one registry.
func NewSupervisor(cfg Config, store snapshot.Backend, httpClient httpGetter, obs ircache.Observer) *Supervisor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Supervisor{Config: cfg, Store: store, HTTP: httpClient, Obs: obs, RetryInterval: retryInterval}
}

// Start attempts snapshot import, falling back to bootstrap, and on
// either success starts the realtime synchronizer (if configured) and
// returns true. On failure of both it reports the failure and returns
// false; the caller is expected to retry on its next tick.
func (s *Supervisor) Start() bool {
	idx, err := s.importSnapshot()
	if err != nil {
		report(s.Obs, s.Config.ShortName, ircache.KindSnapshotCorrupt, err.Error())
		idx, err = Bootstrap(s.HTTP, s.Config, s.Obs)
		if err != nil {
			report(s.Obs, s.Config.ShortName, ircache.KindFetchFailed, err.Error())
			return false
		}
		s.saveSnapshot(idx)
	}

	s.Index = idx

	if s.Config.RealtimeEnabled() {
		sync := NewSynchronizer(s.Config, idx, s.Obs)
		sync.OnCommit = func() { s.saveSnapshot(idx) }
		s.sync = sync
		go sync.Run()
	}

	return true
}

// Stop ends the realtime synchronizer, if running.
func (s *Supervisor) Stop() {
	if s.sync != nil {
		s.sync.Stop()
	}
}

// RetryLoop calls Start on a fixed interval until it succeeds.
// Intended to be run in its own goroutine by the caller when Start
// initially fails.
func (s *Supervisor) RetryLoop(stop <-chan struct{}) {
	interval := s.RetryInterval
	if interval <= 0 {
		interval = retryInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.Start() {
				return
			}
		}
	}
}

func (s *Supervisor) importSnapshot() (*ircache.Index, error) {
	if s.Store == nil {
		return nil, errNoStore
	}
	f, err := s.Store.Open(s.Config.ShortName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := snapshot.Decode(f, s.Obs)
	if err != nil {
		return nil, err
	}

	idx := ircache.NewIndex(data.Serial)
	for name, members := range data.Macros {
		idx.ApplyMacro(name, members, false, s.Obs)
	}
	for asn, prefixes := range data.V4 {
		for _, p := range prefixes {
			idx.ApplyRouteV4(asn, p, false, s.Obs)
		}
	}
	for asn, prefixes := range data.V6 {
		for _, p := range prefixes {
			idx.ApplyRouteV6(asn, p, false, s.Obs)
		}
	}
	return idx, nil
}

func (s *Supervisor) saveSnapshot(idx *ircache.Index) {
	if s.Store == nil {
		return
	}
	serial, macros, v4, v6 := idx.Snapshot()
	err := s.Store.Save(s.Config.ShortName, func(w io.Writer) error {
		return snapshot.Encode(w, snapshot.Data{Serial: serial, Macros: macros, V4: v4, V6: v6})
	})
	if err != nil {
		report(s.Obs, s.Config.ShortName, ircache.KindFetchFailed, "snapshot write failed: "+err.Error())
	}
}

var errNoStore = &ircache.Error{Kind: ircache.KindSnapshotCorrupt, Text: "no snapshot store configured"}
