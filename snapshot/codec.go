// Package snapshot implements the framed binary format used to
// persist a registry index to disk, and the atomic temp-then-rename
// writer that keeps a write from corrupting the file a concurrent
// reader might open.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	ircache "github.com/bcix/tinyirrdbcache"
)

var magic = [4]byte{'E', 'C', 'X', 'D'}

const (
	recordMacro   = 1
	recordOriginV4 = 2
	recordOriginV6 = 3
)

// Data is the decoded contents of one snapshot: the pieces Encode
// needs to write and Decode hands back, independent of ircache.Index's
// locking so callers can build or inspect one without holding a
// registry's mutex across I/O.
type Data struct {
	Serial uint32
	Macros map[string][]string
	V4     map[ircache.ASN][]ircache.PrefixV4
	V6     map[ircache.ASN][]ircache.PrefixV6
}

// Encode writes the framed binary snapshot layout to w: a 4-byte
// magic, the serial, one record per macro/origin bucket, and a
// zero-length terminating record.
//
// Encode never buffers the whole snapshot in memory — it wraps w in
// its own bufio.Writer and streams one record at a time, so even a
// multi-gigabyte registry encodes in bounded memory.
func Encode(w io.Writer, d Data) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := writeU32(bw, d.Serial); err != nil {
		return err
	}

	for name, members := range d.Macros {
		if err := writeMacroRecord(bw, name, members); err != nil {
			return err
		}
	}
	for asn, prefixes := range d.V4 {
		if err := writeOriginV4Record(bw, asn, prefixes); err != nil {
			return err
		}
	}
	for asn, prefixes := range d.V6 {
		if err := writeOriginV6Record(bw, asn, prefixes); err != nil {
			return err
		}
	}

	// Terminating zero-length record.
	if err := writeU32(bw, 0); err != nil {
		return err
	}

	return bw.Flush()
}

func writeMacroRecord(w *bufio.Writer, name string, members []string) error {
	jsonBody, err := json.Marshal(members)
	if err != nil {
		return err
	}

	// payload = u16 nameLen | name | u32 jsonLen | json
	payloadLen := 2 + len(name) + 4 + len(jsonBody)
	if err := writeU32(w, uint32(payloadLen+1)); err != nil {
		return err
	}
	if err := w.WriteByte(recordMacro); err != nil {
		return err
	}
	if err := writeU16(w, uint16(len(name))); err != nil {
		return err
	}
	if _, err := w.WriteString(name); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(jsonBody))); err != nil {
		return err
	}
	_, err = w.Write(jsonBody)
	return err
}

func writeOriginV4Record(w *bufio.Writer, asn ircache.ASN, prefixes []ircache.PrefixV4) error {
	payloadLen := 4 + 4 + len(prefixes)*5
	if err := writeU32(w, uint32(payloadLen+1)); err != nil {
		return err
	}
	if err := w.WriteByte(recordOriginV4); err != nil {
		return err
	}
	if err := writeU32(w, uint32(asn)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(prefixes))); err != nil {
		return err
	}
	for _, p := range prefixes {
		if _, err := w.Write(p[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeOriginV6Record(w *bufio.Writer, asn ircache.ASN, prefixes []ircache.PrefixV6) error {
	payloadLen := 4 + 4 + len(prefixes)*17
	if err := writeU32(w, uint32(payloadLen+1)); err != nil {
		return err
	}
	if err := w.WriteByte(recordOriginV6); err != nil {
		return err
	}
	if err := writeU32(w, uint32(asn)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(prefixes))); err != nil {
		return err
	}
	for _, p := range prefixes {
		if _, err := w.Write(p[:]); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the framed binary layout back into a Data,
// re-canonicalizing every prefix (snapshots written by an older,
// looser version of this format may contain non-canonical prefixes)
// and reporting any repaired value through obs.
func Decode(r io.Reader, obs ircache.Observer) (Data, error) {
	br := bufio.NewReader(r)

	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return Data{}, fmt.Errorf("snapshot: reading magic: %w", err)
	}
	if gotMagic != magic {
		return Data{}, fmt.Errorf("snapshot: bad magic %q", gotMagic)
	}

	serial, err := readU32(br)
	if err != nil {
		return Data{}, fmt.Errorf("snapshot: reading serial: %w", err)
	}

	d := Data{
		Serial: serial,
		Macros: make(map[string][]string),
		V4:     make(map[ircache.ASN][]ircache.PrefixV4),
		V6:     make(map[ircache.ASN][]ircache.PrefixV6),
	}

	for {
		length, err := readU32(br)
		if err != nil {
			return Data{}, fmt.Errorf("snapshot: reading record length: %w", err)
		}
		if length == 0 {
			break
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(br, payload); err != nil {
			return Data{}, fmt.Errorf("snapshot: reading record payload: %w", err)
		}

		recType := payload[0]
		body := payload[1:]

		switch recType {
		case recordMacro:
			if err := decodeMacroRecord(body, &d); err != nil {
				return Data{}, err
			}
		case recordOriginV4:
			if err := decodeOriginV4Record(body, &d, obs); err != nil {
				return Data{}, err
			}
		case recordOriginV6:
			if err := decodeOriginV6Record(body, &d, obs); err != nil {
				return Data{}, err
			}
		default:
			return Data{}, fmt.Errorf("snapshot: unknown record type %d", recType)
		}
	}

	return d, nil
}

func decodeMacroRecord(body []byte, d *Data) error {
	if len(body) < 2 {
		return fmt.Errorf("snapshot: truncated macro record")
	}
	nameLen := int(binary.BigEndian.Uint16(body[0:2]))
	body = body[2:]
	if len(body) < nameLen+4 {
		return fmt.Errorf("snapshot: truncated macro name/json-length")
	}
	name := string(body[:nameLen])
	body = body[nameLen:]

	jsonLen := int(binary.BigEndian.Uint32(body[0:4]))
	body = body[4:]
	if len(body) < jsonLen {
		return fmt.Errorf("snapshot: truncated macro json")
	}

	var members []string
	if err := json.Unmarshal(body[:jsonLen], &members); err != nil {
		return fmt.Errorf("snapshot: decoding macro json: %w", err)
	}

	d.Macros[name] = members
	return nil
}

func decodeOriginV4Record(body []byte, d *Data, obs ircache.Observer) error {
	if len(body) < 8 {
		return fmt.Errorf("snapshot: truncated ipv4 origin record")
	}
	asn := ircache.ASN(binary.BigEndian.Uint32(body[0:4]))
	count := int(binary.BigEndian.Uint32(body[4:8]))
	body = body[8:]

	if len(body) != count*5 {
		return fmt.Errorf("snapshot: ipv4 origin record length mismatch")
	}

	prefixes := make([]ircache.PrefixV4, 0, count)
	for i := 0; i < count; i++ {
		var p ircache.PrefixV4
		copy(p[:], body[i*5:i*5+5])
		repaired, canonical := ircache.RepairV4(p)
		if !canonical && obs != nil {
			obs(ircache.Event{
				Err:    &ircache.Error{Kind: ircache.KindNonCanonicalPrefix, Text: "legacy snapshot prefix"},
				Detail: repaired.String(),
			})
		}
		prefixes = append(prefixes, repaired)
	}
	d.V4[asn] = prefixes
	return nil
}

func decodeOriginV6Record(body []byte, d *Data, obs ircache.Observer) error {
	if len(body) < 8 {
		return fmt.Errorf("snapshot: truncated ipv6 origin record")
	}
	asn := ircache.ASN(binary.BigEndian.Uint32(body[0:4]))
	count := int(binary.BigEndian.Uint32(body[4:8]))
	body = body[8:]

	if len(body) != count*17 {
		return fmt.Errorf("snapshot: ipv6 origin record length mismatch")
	}

	prefixes := make([]ircache.PrefixV6, 0, count)
	for i := 0; i < count; i++ {
		var p ircache.PrefixV6
		copy(p[:], body[i*17:i*17+17])
		repaired, canonical := ircache.RepairV6(p)
		if !canonical && obs != nil {
			obs(ircache.Event{
				Err:    &ircache.Error{Kind: ircache.KindNonCanonicalPrefix, Text: "legacy snapshot prefix"},
				Detail: repaired.String(),
			})
		}
		prefixes = append(prefixes, repaired)
	}
	d.V6[asn] = prefixes
	return nil
}

func writeU16(w *bufio.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU32(w *bufio.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
