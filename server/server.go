// Package server implements the HTTP query surface for a running
// cache: per-registry v4/v6 lookups and a full dump route, so the
// module is runnable end to end rather than only usable as a library.
package server

import (
	"net/http"
	"strings"

	ircache "github.com/bcix/tinyirrdbcache"
	"github.com/mailru/easyjson/jwriter"
)

// Registries maps a registry's short name to its live index. The
// server never mutates an Index; it only reads through Expand/Snapshot.
type Registries map[string]*ircache.Index

// Server is an http.Handler serving per-registry lookups and dumps.
type Server struct {
	Registries Registries
}

// New builds a Server over the given live registries.
func New(registries Registries) *Server {
	return &Server{Registries: registries}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/dump" {
		s.handleDump(w, r)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		// Unknown paths return an empty body rather than an error.
		return
	}

	registryName, name, family := parts[0], parts[1], parts[2]
	if family != "v4" && family != "v6" {
		return
	}

	idx, ok := s.Registries[registryName]
	if !ok {
		http.Error(w, "unknown registry: "+registryName, http.StatusNotFound)
		return
	}

	fam := ircache.V4
	if family == "v6" {
		fam = ircache.V6
	}

	result := idx.Expand(name, fam)

	// A direct ASN query has no macro traversal to report, so it
	// returns the raw prefix bucket rather than the
	// {prefixes,macros,prefixCount} envelope.
	var body []byte
	var err error
	if _, isASN := ircache.ParseASN(strings.ToUpper(name)); isASN {
		body, err = rawBucketJSON(result, fam)
	} else {
		body, err = ircache.ToLookupResponse(result).MarshalJSON()
	}
	if err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	dump := ircache.DumpResponse{Registries: make(map[string]ircache.RegistryDump, len(s.Registries))}

	for name, idx := range s.Registries {
		serial, macros, v4, v6 := idx.Snapshot()
		dump.Registries[name] = ircache.RegistryDump{
			Serial: serial,
			Macros: macros,
			V4:     stringifyV4(v4),
			V6:     stringifyV6(v6),
		}
	}

	body, err := dump.MarshalJSON()
	if err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func rawBucketJSON(r ircache.Result, fam ircache.Family) ([]byte, error) {
	w := jwriter.Writer{}
	w.RawByte('[')
	if fam == ircache.V4 {
		for i, p := range r.V4 {
			if i > 0 {
				w.RawByte(',')
			}
			w.String(p.String())
		}
	} else {
		for i, p := range r.V6 {
			if i > 0 {
				w.RawByte(',')
			}
			w.String(p.String())
		}
	}
	w.RawByte(']')
	return w.Buffer.BuildBytes(), w.Error
}

func stringifyV4(m map[ircache.ASN][]ircache.PrefixV4) map[string][]string {
	out := make(map[string][]string, len(m))
	for asn, prefixes := range m {
		strs := make([]string, len(prefixes))
		for i, p := range prefixes {
			strs[i] = p.String()
		}
		out[asn.String()] = strs
	}
	return out
}

func stringifyV6(m map[ircache.ASN][]ircache.PrefixV6) map[string][]string {
	out := make(map[string][]string, len(m))
	for asn, prefixes := range m {
		strs := make([]string, len(prefixes))
		for i, p := range prefixes {
			strs[i] = p.String()
		}
		out[asn.String()] = strs
	}
	return out
}
