package ircache

import "strings"

// Attribute is one parsed "key: value" line of an RPSL object, after
// continuation-line folding. Kept in original order, since a later
// attribute of the same key (e.g. a second "members:") adds to rather
// than replaces the earlier one.
type Attribute struct {
	Key   string
	Value string
}

// MacroDef is a parsed `as-set` object.
type MacroDef struct {
	Name    string
	Members []string
}

// RouteV4 is a parsed `route` object.
type RouteV4 struct {
	Prefix PrefixV4
	Origin ASN
}

// RouteV6 is a parsed `route6` object.
type RouteV6 struct {
	Prefix PrefixV6
	Origin ASN
}

// Object is the tagged result of parsing one RPSL packet. Exactly one
// of Macro, V4, V6 is non-nil, or all are nil (objects this cache
// doesn't care about, e.g. `person`, `aut-num`).
type Object struct {
	Macro *MacroDef
	V4    *RouteV4
	V6    *RouteV6
}

// ParseObject parses one RPSL "packet": a sequence of non-empty lines
// already split on the blank-line delimiter by the caller (the
// bootstrap loader and the NRTM packet reader both do their own
// line-splitting — see registry/bootstrap.go and registry/nrtm.go).
//
// Only as-set, route, and route6 objects are interpreted; every other
// object type (person, aut-num, ...) parses into a zero Object and is
// silently ignored, since nothing downstream needs them.
func ParseObject(lines []string, obs Observer) Object {
	obs = observerOrNoop(obs)

	attrs := make([]Attribute, 0, len(lines))
	lastKey := ""

	for _, raw := range lines {
		if hash := strings.IndexByte(raw, '#'); hash >= 0 {
			raw = raw[:hash]
		}

		key, value, isAttr := splitAttribute(raw)
		if isAttr {
			lastKey = key
			attrs = append(attrs, Attribute{Key: key, Value: value})
			continue
		}

		// Continuation line: inherits the previous key, value is the
		// trimmed line itself.
		if lastKey == "" {
			obs(Event{Err: &Error{Kind: KindParseAnomaly, Text: "continuation line with no preceding attribute"}, Detail: raw})
			continue
		}
		attrs = append(attrs, Attribute{Key: lastKey, Value: strings.TrimSpace(raw)})
	}

	if len(attrs) == 0 {
		return Object{}
	}

	var obj Object

	switch strings.ToLower(attrs[0].Key) {
	case "as-set":
		def := &MacroDef{Name: strings.ToUpper(strings.TrimSpace(attrs[0].Value))}
		for _, a := range attrs {
			if strings.ToLower(a.Key) == "members" {
				def.Members = append(def.Members, splitMembers(a.Value)...)
			}
		}
		obj.Macro = def

	case "route":
		origin, hasOrigin := findOrigin(attrs)
		prefix, _, family, err := ParsePrefix(strings.TrimSpace(attrs[0].Value), obs)
		if err != nil {
			obs(Event{Err: err.(*Error), Detail: attrs[0].Value})
			return Object{}
		}
		if family != V4 || !hasOrigin {
			return Object{}
		}
		obj.V4 = &RouteV4{Prefix: prefix, Origin: origin}

	case "route6":
		origin, hasOrigin := findOrigin(attrs)
		_, prefix, family, err := ParsePrefix(strings.TrimSpace(attrs[0].Value), obs)
		if err != nil {
			obs(Event{Err: err.(*Error), Detail: attrs[0].Value})
			return Object{}
		}
		if family != V6 || !hasOrigin {
			return Object{}
		}
		obj.V6 = &RouteV6{Prefix: prefix, Origin: origin}
	}

	return obj
}

// splitAttribute splits "key:value" into (key, value, true), or
// returns ("", "", false) for a line that isn't of that shape (a
// continuation line).
func splitAttribute(line string) (string, string, bool) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:colon])
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	value := strings.TrimSpace(line[colon+1:])
	return key, value, true
}

func splitMembers(value string) []string {
	var out []string
	for _, tok := range strings.Split(value, ",") {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func findOrigin(attrs []Attribute) (ASN, bool) {
	for _, a := range attrs {
		if strings.ToLower(a.Key) != "origin" {
			continue
		}
		if asn, ok := ParseASN(strings.TrimSpace(a.Value)); ok {
			return asn, true
		}
	}
	return 0, false
}
