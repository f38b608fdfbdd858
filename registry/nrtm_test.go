package registry

import (
	"bufio"
	"net"
	"testing"
	"time"

	ircache "github.com/bcix/tinyirrdbcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackDialer dials a fixed address regardless of what's asked for,
// so tests can point a Synchronizer at an in-process listener without
// a real DNS name or port assignment.
type loopbackDialer struct {
	addr string
}

func (d loopbackDialer) Dial(network, address string) (net.Conn, error) {
	return net.Dial("tcp", d.addr)
}

// mirrorScript plays a canned NRTM session: it reads (and discards)
// the client's -g request line, then writes the given lines verbatim,
// each terminated with \n, then closes the connection.
func mirrorScript(t *testing.T, lines []string) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		reader.ReadString('\n') // the -g request

		for _, l := range lines {
			conn.Write([]byte(l + "\n"))
		}
	}()

	return ln
}

func TestSynchronizerCommitsDeltasOnEnd(t *testing.T) {
	ln := mirrorScript(t, []string{
		"%START Version: 3 ripe 100-102",
		"ADD 101",
		"route: 10.0.0.0/8",
		"origin: AS1",
		"",
		"ADD 102",
		"as-set: AS-FOO",
		"members: AS1",
		"",
		"%END",
	})
	defer ln.Close()

	idx := ircache.NewIndex(100)
	var committed bool

	s := &Synchronizer{
		Config: Config{ShortName: "ripe", IntName: "ripe"},
		Index:  idx,
		Dial:   loopbackDialer{addr: ln.Addr().String()},
		stop:   make(chan struct{}),
	}
	s.OnCommit = func() { committed = true }

	done := make(chan struct{})
	go func() { s.runSession(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runSession did not return")
	}

	assert.EqualValues(t, 102, idx.Serial())
	assert.True(t, committed)
	assert.Len(t, idx.PrefixesV4(1), 1)
	members, ok := idx.LookupMacro("AS-FOO")
	require.True(t, ok)
	assert.Equal(t, []string{"AS1"}, members)
}

func TestSynchronizerNoDeltasDoesNotCommit(t *testing.T) {
	ln := mirrorScript(t, []string{
		"%START Version: 3 ripe 50-50",
		"%END",
	})
	defer ln.Close()

	idx := ircache.NewIndex(50)
	var committed bool

	s := &Synchronizer{
		Config: Config{ShortName: "ripe", IntName: "ripe"},
		Index:  idx,
		Dial:   loopbackDialer{addr: ln.Addr().String()},
		stop:   make(chan struct{}),
	}
	s.OnCommit = func() { committed = true }

	done := make(chan struct{})
	go func() { s.runSession(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runSession did not return")
	}

	assert.EqualValues(t, 50, idx.Serial())
	assert.False(t, committed)
}

func TestSynchronizerReportsBadMagicLine(t *testing.T) {
	ln := mirrorScript(t, []string{
		"garbage line",
	})
	defer ln.Close()

	idx := ircache.NewIndex(1)
	var events []ircache.Event

	s := &Synchronizer{
		Config: Config{ShortName: "ripe", IntName: "ripe"},
		Index:  idx,
		Dial:   loopbackDialer{addr: ln.Addr().String()},
		Obs:    func(e ircache.Event) { events = append(events, e) },
		stop:   make(chan struct{}),
	}

	done := make(chan struct{})
	go func() { s.runSession(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runSession did not return")
	}

	require.NotEmpty(t, events)
	assert.Equal(t, ircache.KindProtocolAnomaly, events[0].Err.Kind)
}
