package registry

import (
	"bufio"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	ircache "github.com/bcix/tinyirrdbcache"
)

const (
	reconnectDelay = 60 * time.Second
	pollInterval   = 10 * time.Minute

	// maxPacketLines bounds the ReadPacket accumulator against a
	// malicious or misbehaving mirror that never sends a closing
	// blank line.
	maxPacketLines = 100000
)

type nrtmState int

const (
	stateAwaitStart nrtmState = iota
	stateAwaitOp
	stateReadPacket
	stateTerminal
)

var startLineRe = regexp.MustCompile(`^%START.*\s(\d+)-(\d+|LAST)`)

type nrtmOp int

const (
	opNone nrtmOp = iota
	opAdd
	opDel
)

// dialer is satisfied by net.Dialer; tests substitute a loopback
// listener instead of faking this interface.
type dialer interface {
	Dial(network, address string) (net.Conn, error)
}

// Synchronizer runs the realtime NRTM state machine for one registry
// against a single Index, reconnecting on transport error or Terminal
// and polling on a fixed timer when otherwise idle.
type Synchronizer struct {
	Config Config
	Index  *ircache.Index
	Dial   dialer
	Obs    ircache.Observer

	// OnCommit is invoked after a successful %END commit that applied
	// at least one delta, so the caller can persist a snapshot.
	// Optional.
	OnCommit func()

	// stop, when closed, ends the Run loop after the current session
	// terminates.
	stop chan struct{}
}

// NewSynchronizer builds a Synchronizer dialing real TCP connections.
func NewSynchronizer(cfg Config, idx *ircache.Index, obs ircache.Observer) *Synchronizer {
	return &Synchronizer{
		Config: cfg,
		Index:  idx,
		Dial:   net.Dialer{},
		Obs:    obs,
		stop:   make(chan struct{}),
	}
}

// Stop ends the run loop after the in-flight session (if any)
// terminates.
func (s *Synchronizer) Stop() {
	close(s.stop)
}

// Run drives reconnect-on-error and the 10-minute poll timer
// indefinitely until Stop is called. Each session is one call to
// runSession.
func (s *Synchronizer) Run() {
	poll := time.NewTimer(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.runSession()
		poll.Reset(pollInterval)

		select {
		case <-s.stop:
			return
		case <-time.After(reconnectDelay):
		case <-poll.C:
		}
	}
}

// runSession performs one AwaitStart→...→Terminal pass. It never
// panics on protocol anomalies; those are reported through Obs and the
// session either remains in its current state or advances normally.
func (s *Synchronizer) runSession() {
	obs := s.Obs

	conn, err := s.Dial.Dial("tcp", fmt.Sprintf("%s:%d", s.Config.RealtimeHost, s.Config.RealtimePort))
	if err != nil {
		report(obs, s.Config.ShortName, ircache.KindFetchFailed, "dial: "+err.Error())
		return
	}
	defer conn.Close()

	// A mirror that accepts the connection and then goes silent
	// without closing it or sending %END would otherwise wedge this
	// goroutine on ReadString forever. Bound each read so an idle
	// connection times out and the outer Run loop reconnects instead.
	conn.SetReadDeadline(time.Now().Add(pollInterval))

	serial := s.Index.Serial()
	startSerial := serial
	latestSerial := serial

	req := fmt.Sprintf("-g %s:3:%d-LAST\n", s.Config.intName(), serial)
	if _, err := conn.Write([]byte(req)); err != nil {
		report(obs, s.Config.ShortName, ircache.KindFetchFailed, "write: "+err.Error())
		return
	}

	reader := bufio.NewReader(conn)
	state := stateAwaitStart
	var op nrtmOp
	var packet []string

	for state != stateTerminal {
		line, err := reader.ReadString('\n')
		if err == nil {
			conn.SetReadDeadline(time.Now().Add(pollInterval))
		}
		if err != nil {
			if line == "" {
				report(obs, s.Config.ShortName, ircache.KindFetchFailed, "read: "+err.Error())
				return
			}
			// fall through: process the final partial line, then exit next loop
		}
		line = strings.TrimRight(line, "\r\n")

		switch state {
		case stateAwaitStart:
			if m := startLineRe.FindStringSubmatch(line); m != nil {
				state = stateAwaitOp
			} else {
				report(obs, s.Config.ShortName, ircache.KindProtocolAnomaly, "expected %START, got: "+line)
			}

		case stateAwaitOp:
			switch {
			case line == "%END":
				state = stateTerminal
			case strings.HasPrefix(line, "ADD "):
				if n, ok := parseSerialToken(line, "ADD "); ok {
					op = opAdd
					latestSerial = n
					packet = packet[:0]
					state = stateReadPacket
				} else {
					report(obs, s.Config.ShortName, ircache.KindProtocolAnomaly, "bad ADD line: "+line)
				}
			case strings.HasPrefix(line, "DEL "):
				if n, ok := parseSerialToken(line, "DEL "); ok {
					op = opDel
					latestSerial = n
					packet = packet[:0]
					state = stateReadPacket
				} else {
					report(obs, s.Config.ShortName, ircache.KindProtocolAnomaly, "bad DEL line: "+line)
				}
			case strings.HasPrefix(line, "%"):
				report(obs, s.Config.ShortName, ircache.KindProtocolAnomaly, "unexpected control line: "+line)
			default:
				// ignore
			}

		case stateReadPacket:
			if line == "" {
				if len(packet) > 0 {
					if latestSerial > startSerial {
						obj := ircache.ParseObject(packet, obs)
						s.Index.Apply(obj, op == opDel, obs)
					}
					state = stateAwaitOp
				}
				// empty packet + blank line: remain in ReadPacket
			} else {
				packet = append(packet, line)
				if len(packet) > maxPacketLines {
					report(obs, s.Config.ShortName, ircache.KindProtocolAnomaly, "packet too large, dropping session")
					return
				}
			}
		}

		if err != nil {
			// the partial final line (if any) has now been processed
			report(obs, s.Config.ShortName, ircache.KindFetchFailed, "read: "+err.Error())
			return
		}
	}

	if latestSerial > startSerial {
		s.Index.SetSerial(latestSerial)
		if s.OnCommit != nil {
			s.OnCommit()
		}
	}
}

func parseSerialToken(line, prefix string) (uint32, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, prefix)), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func report(obs ircache.Observer, registry string, kind ircache.Kind, text string) {
	if obs == nil {
		return
	}
	obs(ircache.Event{Registry: registry, Err: &ircache.Error{Kind: kind, Registry: registry, Text: text}})
}
