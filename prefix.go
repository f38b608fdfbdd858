package ircache

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Family distinguishes an IPv4 prefix from an IPv6 prefix.
type Family int

const (
	V4 Family = iota
	V6
)

// PrefixV4 is a canonical 5-byte IPv4 prefix: four address octets
// followed by a prefix length in [0,32]. Host bits beyond the prefix
// length are always zero.
type PrefixV4 [5]byte

// PrefixV6 is a canonical 17-byte IPv6 prefix: sixteen address octets
// followed by a prefix length in [0,128]. Host bits beyond the prefix
// length are always zero.
type PrefixV6 [17]byte

// Length returns the prefix length in bits.
func (p PrefixV4) Length() int { return int(p[4]) }

// Length returns the prefix length in bits.
func (p PrefixV6) Length() int { return int(p[16]) }

func (p PrefixV4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d/%d", p[0], p[1], p[2], p[3], p[4])
}

func (p PrefixV6) String() string {
	addr := net.IP(p[:16])
	return fmt.Sprintf("%s/%d", addr.String(), p[16])
}

// canonicalizeV4 clears host bits beyond length, reporting (via ok)
// whether the input already was canonical.
func canonicalizeV4(addr [4]byte, length int) (PrefixV4, bool) {
	out := addr
	ok := true
	for bit := length; bit < 32; bit++ {
		byteIdx := bit / 8
		mask := byte(0x80) >> uint(bit%8)
		if out[byteIdx]&mask != 0 {
			ok = false
			out[byteIdx] &^= mask
		}
	}
	var p PrefixV4
	copy(p[:4], out[:])
	p[4] = byte(length)
	return p, ok
}

func canonicalizeV6(addr [16]byte, length int) (PrefixV6, bool) {
	out := addr
	ok := true
	for bit := length; bit < 128; bit++ {
		byteIdx := bit / 8
		mask := byte(0x80) >> uint(bit%8)
		if out[byteIdx]&mask != 0 {
			ok = false
			out[byteIdx] &^= mask
		}
	}
	var p PrefixV6
	copy(p[:16], out[:])
	p[16] = byte(length)
	return p, ok
}

// ParsePrefix parses a textual prefix ("a.b.c.d/p" or "addr6/p"),
// canonicalizing host bits to zero. The family is discriminated by the
// presence of ':'. obs is called, if non-nil, when the input wasn't
// already canonical.
func ParsePrefix(text string, obs Observer) (PrefixV4, PrefixV6, Family, error) {
	obs = observerOrNoop(obs)

	addrPart, lenPart, hasSlash := strings.Cut(text, "/")

	if strings.Contains(text, ":") {
		ip := net.ParseIP(addrPart)
		if ip == nil || ip.To4() != nil {
			return PrefixV4{}, PrefixV6{}, V6, &Error{Kind: KindParseAnomaly, Text: "invalid IPv6 address: " + text}
		}
		ip16 := ip.To16()

		length := 128
		if hasSlash {
			n, err := strconv.Atoi(lenPart)
			if err != nil || n < 0 || n > 128 {
				return PrefixV4{}, PrefixV6{}, V6, &Error{Kind: KindParseAnomaly, Text: "invalid IPv6 prefix length: " + text}
			}
			length = n
		}

		var raw [16]byte
		copy(raw[:], ip16)

		p, canonical := canonicalizeV6(raw, length)
		if !canonical {
			obs(Event{Err: &Error{Kind: KindNonCanonicalPrefix, Text: text}, Detail: p.String()})
		}
		return PrefixV4{}, p, V6, nil
	}

	ip := net.ParseIP(addrPart)
	if ip == nil {
		return PrefixV4{}, PrefixV6{}, V4, &Error{Kind: KindParseAnomaly, Text: "invalid IPv4 address: " + text}
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return PrefixV4{}, PrefixV6{}, V4, &Error{Kind: KindParseAnomaly, Text: "not an IPv4 address: " + text}
	}

	length := 32
	if hasSlash {
		n, err := strconv.Atoi(lenPart)
		if err != nil || n < 0 || n > 32 {
			return PrefixV4{}, PrefixV6{}, V4, &Error{Kind: KindParseAnomaly, Text: "invalid IPv4 prefix length: " + text}
		}
		length = n
	}

	var raw [4]byte
	copy(raw[:], ip4)

	p, canonical := canonicalizeV4(raw, length)
	if !canonical {
		obs(Event{Err: &Error{Kind: KindNonCanonicalPrefix, Text: text}, Detail: p.String()})
	}
	return p, PrefixV6{}, V4, nil
}

// RepairV4 re-canonicalizes a stored PrefixV4, reporting whether it
// was already canonical (false means host bits were cleared). Used by
// the snapshot decoder, which must re-canonicalize
// every prefix it loads (legacy snapshots may contain non-canonical
// entries).
func RepairV4(p PrefixV4) (PrefixV4, bool) {
	var addr [4]byte
	copy(addr[:], p[:4])
	out, canonical := canonicalizeV4(addr, p.Length())
	return out, canonical
}

// RepairV6 is RepairV4 for IPv6.
func RepairV6(p PrefixV6) (PrefixV6, bool) {
	var addr [16]byte
	copy(addr[:], p[:16])
	out, canonical := canonicalizeV6(addr, p.Length())
	return out, canonical
}
