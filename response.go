package ircache

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// LookupResponse is the JSON body for GET /{registry}/{name}/v4 and
// /v6. It implements easyjson's Marshaler/Unmarshaler directly
// (hand-written, in the same low-level jwriter/jlexer style easyjson's
// generator emits) rather than encoding/json reflection, since this
// body is produced once per query on a hot path and the /dump route
// can serialize an entire registry's contents at once.
type LookupResponse struct {
	Prefixes    []string `json:"prefixes"`
	Macros      []string `json:"macros"`
	PrefixCount int      `json:"prefixCount"`
}

// DumpResponse is the JSON body for GET /dump: every registry's
// index, keyed by registry short name.
type DumpResponse struct {
	Registries map[string]RegistryDump `json:"registries"`
}

// RegistryDump is one registry's contents as used by the /dump route.
type RegistryDump struct {
	Serial uint32              `json:"serial"`
	Macros map[string][]string `json:"macros"`
	V4     map[string][]string `json:"asnv4"`
	V6     map[string][]string `json:"asnv6"`
}

func (v LookupResponse) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	v.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

func (v LookupResponse) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')

	w.RawString(`"prefixes":`)
	w.RawByte('[')
	for i, p := range v.Prefixes {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(p)
	}
	w.RawByte(']')

	w.RawString(`,"macros":`)
	w.RawByte('[')
	for i, m := range v.Macros {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(m)
	}
	w.RawByte(']')

	w.RawString(`,"prefixCount":`)
	w.Int(v.PrefixCount)

	w.RawByte('}')
}

func (v *LookupResponse) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	v.UnmarshalEasyJSON(&r)
	return r.Error()
}

func (v *LookupResponse) UnmarshalEasyJSON(l *jlexer.Lexer) {
	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		switch key {
		case "prefixes":
			if l.IsNull() {
				l.Skip()
				v.Prefixes = nil
			} else {
				l.Delim('[')
				v.Prefixes = v.Prefixes[:0]
				for !l.IsDelim(']') {
					v.Prefixes = append(v.Prefixes, l.String())
					l.WantComma()
				}
				l.Delim(']')
			}
		case "macros":
			if l.IsNull() {
				l.Skip()
				v.Macros = nil
			} else {
				l.Delim('[')
				v.Macros = v.Macros[:0]
				for !l.IsDelim(']') {
					v.Macros = append(v.Macros, l.String())
					l.WantComma()
				}
				l.Delim(']')
			}
		case "prefixCount":
			v.PrefixCount = l.Int()
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')
}

// ToLookupResponse renders an Expand() Result in the shape the HTTP
// query surface returns.
func ToLookupResponse(r Result) LookupResponse {
	prefixes := make([]string, 0, len(r.V4)+len(r.V6))
	for _, p := range r.V4 {
		prefixes = append(prefixes, p.String())
	}
	for _, p := range r.V6 {
		prefixes = append(prefixes, p.String())
	}
	return LookupResponse{
		Prefixes:    prefixes,
		Macros:      r.VisitedMacros,
		PrefixCount: len(prefixes),
	}
}

func (v RegistryDump) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')

	w.RawString(`"serial":`)
	w.Uint32(v.Serial)

	w.RawString(`,"macros":`)
	marshalStringSliceMap(w, v.Macros)

	w.RawString(`,"asnv4":`)
	marshalStringSliceMap(w, v.V4)

	w.RawString(`,"asnv6":`)
	marshalStringSliceMap(w, v.V6)

	w.RawByte('}')
}

func (v DumpResponse) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	v.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

func (v DumpResponse) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"registries":`)
	w.RawByte('{')
	first := true
	for name, dump := range v.Registries {
		if !first {
			w.RawByte(',')
		}
		first = false
		w.String(name)
		w.RawByte(':')
		dump.MarshalEasyJSON(w)
	}
	w.RawByte('}')
	w.RawByte('}')
}

func marshalStringSliceMap(w *jwriter.Writer, m map[string][]string) {
	w.RawByte('{')
	first := true
	for key, values := range m {
		if !first {
			w.RawByte(',')
		}
		first = false
		w.String(key)
		w.RawByte(':')
		w.RawByte('[')
		for i, v := range values {
			if i > 0 {
				w.RawByte(',')
			}
			w.String(v)
		}
		w.RawByte(']')
	}
	w.RawByte('}')
}
