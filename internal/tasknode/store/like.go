package store

// MatchLike reports whether s matches pattern under SQL LIKE semantics:
// `%` matches any run of characters including none, `_` matches exactly one
// character. There is no escape character, matching the source queries.
func MatchLike(s, pattern string) bool {
	sRunes := []rune(s)
	pRunes := []rune(pattern)

	sIdx, pIdx := 0, 0
	starIdx, matchIdx := -1, 0

	for sIdx < len(sRunes) {
		switch {
		case pIdx < len(pRunes) && (pRunes[pIdx] == '_' || pRunes[pIdx] == sRunes[sIdx]):
			sIdx++
			pIdx++
		case pIdx < len(pRunes) && pRunes[pIdx] == '%':
			starIdx = pIdx
			matchIdx = sIdx
			pIdx++
		case starIdx != -1:
			// Backtrack: let the last % consume one more character.
			pIdx = starIdx + 1
			matchIdx++
			sIdx = matchIdx
		default:
			return false
		}
	}

	for pIdx < len(pRunes) && pRunes[pIdx] == '%' {
		pIdx++
	}

	return pIdx == len(pRunes)
}
