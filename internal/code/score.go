package code

type positionSet map[int]struct{}

// Score compares candidate against secret and returns the number of exact
// position matches and the number of characters present elsewhere. Both
// slices must have the same length. No position of either slice is counted
// twice.
func Score(secret, candidate []rune) (correct, close int) {
	positions := positionsByChar(candidate)

	work := make([]rune, len(secret))
	copy(work, secret)
	consumed := make([]bool, len(work))

	for i, ch := range work {
		set := positions[ch]
		if _, ok := set[i]; ok {
			correct++
			delete(set, i)
			consumed[i] = true
		}
	}

	for i, ch := range work {
		if consumed[i] {
			continue
		}
		set := positions[ch]
		for pos := range set {
			close++
			delete(set, pos)
			break
		}
	}

	return correct, close
}

func positionsByChar(candidate []rune) map[rune]positionSet {
	positions := make(map[rune]positionSet, len(candidate))
	for i, ch := range candidate {
		set, ok := positions[ch]
		if !ok {
			set = positionSet{}
			positions[ch] = set
		}
		set[i] = struct{}{}
	}
	return positions
}
