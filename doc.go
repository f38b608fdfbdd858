// tinyirrdbcache
// Apache License 2.0, see the LICENSE file.

// Package ircache implements an in-memory cache of Internet Routing
// Registry (IRR) policy data.
//
// It holds, per registry, a macro table (as-sets), and IPv4/IPv6
// origin-ASN-to-prefix tables. The cache is built either by importing a
// binary snapshot (see the snapshot package) or by a full bootstrap
// dump, and is kept current by a NRTM realtime synchronizer (see the
// registry package).
//
// This package implements the two leaf concerns that don't need
// network or disk I/O: parsing the address/object wire formats, and
// expanding a macro or ASN name into a prefix set.
package ircache
