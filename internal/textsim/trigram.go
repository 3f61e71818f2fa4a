package textsim

// TrigramSet returns the set of character trigrams of a string. Strings
// shorter than three runes produce an empty set.
func TrigramSet(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{})
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// TrigramCosine is the dice-style trigram overlap proxy used as a cheap
// text cosine: min(1, 2*|A∩B| / max(|A|+|B|, 1)).
func TrigramCosine(a, b string) float64 {
	setA := TrigramSet(a)
	setB := TrigramSet(b)

	overlap := 0
	for g := range setA {
		if _, ok := setB[g]; ok {
			overlap++
		}
	}
	denom := len(setA) + len(setB)
	if denom < 1 {
		denom = 1
	}
	v := 2 * float64(overlap) / float64(denom)
	if v > 1 {
		v = 1
	}
	return v
}
