package cache

import "strings"

// jaroWinkler computes the Jaro-Winkler similarity of a and b in [0, 1].
// No pack example pulls in a dedicated string-similarity library (the
// closest candidates — bleve's text analyzers — are part of the full-text
// search stack this spec places out of scope), so this is a small, direct
// stdlib implementation of the standard algorithm.
func jaroWinkler(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}

	j := jaro(a, b)
	if j == 0 {
		return 0
	}

	const winklerPrefixScale = 0.1
	const maxPrefix = 4

	prefix := 0
	for prefix < len(a) && prefix < len(b) && prefix < maxPrefix && a[prefix] == b[prefix] {
		prefix++
	}

	return j + float64(prefix)*winklerPrefixScale*(1-j)
}

func jaro(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	matchDistance := la
	if lb > matchDistance {
		matchDistance = lb
	}
	matchDistance = matchDistance/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	aMatches := make([]bool, la)
	bMatches := make([]bool, lb)

	matches := 0
	for i := 0; i < la; i++ {
		start := i - matchDistance
		if start < 0 {
			start = 0
		}
		end := i + matchDistance + 1
		if end > lb {
			end = lb
		}
		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}
	transpositions /= 2

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions))/m) / 3
}
