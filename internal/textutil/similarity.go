package textutil

// MatchRatio returns a similarity score in [0, 1] for a and b.
// Two empty strings are identical.
func MatchRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingCharacters(ra, rb)) / float64(total)
}

// ClosestMatch returns the candidate with the highest MatchRatio against
// value, provided it scores at least cutoff. ambiguous is true when more than
// one candidate shares the best score; match is empty in that case.
func ClosestMatch(value string, candidates []string, cutoff float64) (match string, score float64, ambiguous bool) {
	best := -1.0
	ties := 0
	for _, candidate := range candidates {
		ratio := MatchRatio(value, candidate)
		if ratio < cutoff {
			continue
		}
		switch {
		case ratio > best:
			best = ratio
			match = candidate
			ties = 1
		case ratio == best:
			ties++
		}
	}
	if ties == 0 {
		return "", 0, false
	}
	if ties > 1 {
		return "", best, true
	}
	return match, best, false
}

// matchingCharacters counts characters covered by the recursive sequence of
// longest common blocks.
func matchingCharacters(a, b []rune) int {
	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	matched := 0
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		i, j, size := longestBlock(a, b, s.alo, s.ahi, s.blo, s.bhi)
		if size == 0 {
			continue
		}
		matched += size
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+size < s.ahi && j+size < s.bhi {
			queue = append(queue, span{i + size, s.ahi, j + size, s.bhi})
		}
	}
	return matched
}

// longestBlock finds the longest common run within a[alo:ahi] and b[blo:bhi].
// Ties resolve to the earliest start in a, then in b.
func longestBlock(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestSize int) {
	besti, bestj = alo, blo
	prev := make([]int, bhi-blo+1)
	cur := make([]int, bhi-blo+1)
	for i := alo; i < ahi; i++ {
		for j := blo; j < bhi; j++ {
			k := j - blo + 1
			if a[i] != b[j] {
				cur[k] = 0
				continue
			}
			cur[k] = prev[k-1] + 1
			if cur[k] > bestSize {
				bestSize = cur[k]
				besti = i - cur[k] + 1
				bestj = j - cur[k] + 1
			}
		}
		prev, cur = cur, prev
	}
	return besti, bestj, bestSize
}
