package ircache

import (
	"regexp"
	"strconv"
	"strings"
)

// ASN is an autonomous system number.
type ASN uint32

var asnToken = regexp.MustCompile(`^AS([0-9]+)$`)

// ParseASN parses "AS<digits>" (any case), as seen in RPSL `origin:`
// values and macro member tokens. It returns ok rather than erroring,
// since callers here treat "not an ASN" as "try it as a macro name"
// rather than as a failure.
func ParseASN(text string) (ASN, bool) {
	m := asnToken.FindStringSubmatch(strings.ToUpper(text))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return ASN(n), true
}

// String renders an ASN in RPSL form, e.g. "AS64500".
func (a ASN) String() string {
	return "AS" + strconv.FormatUint(uint64(a), 10)
}
