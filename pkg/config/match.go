package config

import "strings"

// matchPattern reports whether domain matches pattern, where pattern
// may contain '*' (any run of characters) and '?' (any single
// character) wildcards (spec.md §4.H, §8 property 4). The pattern is
// lowercased here; domain is not, so the match is case-insensitive only
// because FindServerByDomain lowercases domain before calling this.
func matchPattern(pattern, domain string) bool {
	return matchRunes([]rune(strings.ToLower(pattern)), []rune(domain))
}

// matchRunes is a standard glob matcher over '*' and '?' implemented
// with the two-pointer backtracking algorithm (no regexp compilation
// needed per lookup, which matters since this runs on every domain
// lookup in the hot path).
func matchRunes(pattern, s []rune) bool {
	var pIdx, sIdx int
	var starIdx, sTmpIdx = -1, -1

	for sIdx < len(s) {
		if pIdx < len(pattern) && (pattern[pIdx] == '?' || pattern[pIdx] == s[sIdx]) {
			pIdx++
			sIdx++
		} else if pIdx < len(pattern) && pattern[pIdx] == '*' {
			starIdx = pIdx
			sTmpIdx = sIdx
			pIdx++
		} else if starIdx != -1 {
			pIdx = starIdx + 1
			sTmpIdx++
			sIdx = sTmpIdx
		} else {
			return false
		}
	}

	for pIdx < len(pattern) && pattern[pIdx] == '*' {
		pIdx++
	}

	return pIdx == len(pattern)
}
