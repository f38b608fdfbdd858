package ircache

// Result is the outcome of expanding a name (ASN or macro) into a
// prefix set.
type Result struct {
	V4 []PrefixV4
	V6 []PrefixV6

	// VisitedMacros is the list of macro names transitively visited,
	// in visit order, not including the queried name itself. A member
	// name with no macro definition is listed too, though it contributes
	// no prefixes.
	VisitedMacros []string
}

// Expand looks up a name that is either a direct "AS<digits>" or a
// macro name, returning every prefix reachable from it. Macro
// expansion uses an explicit work-list and a visited set rather than
// recursion, so a pathological as-set membership cycle can't blow the
// call stack.
//
// Duplicates are not removed from the returned prefix lists: the same
// origin ASN can be reached through more than one macro path, and
// collapsing those paths would hide how many routes actually cover a
// given macro.
func (idx *Index) Expand(name string, family Family) Result {
	name = upper(name)

	if asn, ok := ParseASN(name); ok {
		if family == V4 {
			return Result{V4: idx.PrefixesV4(asn)}
		}
		return Result{V6: idx.PrefixesV6(asn)}
	}

	visited := map[string]bool{name: true}
	queue := []string{name}

	var result Result

	for len(queue) > 0 {
		macro := queue[0]
		queue = queue[1:]

		members, ok := idx.LookupMacro(macro)
		if !ok {
			continue
		}

		for _, member := range members {
			if asn, ok := ParseASN(member); ok {
				if family == V4 {
					result.V4 = append(result.V4, idx.PrefixesV4(asn)...)
				} else {
					result.V6 = append(result.V6, idx.PrefixesV6(asn)...)
				}
				continue
			}

			if visited[member] {
				continue
			}
			visited[member] = true
			result.VisitedMacros = append(result.VisitedMacros, member)
			queue = append(queue, member)
		}
	}

	return result
}
