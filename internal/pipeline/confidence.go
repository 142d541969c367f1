package pipeline

// Confidence combines retrieval similarity, query validity, execution
// success, and result non-emptiness into a 0-100 score. An empty result from
// a valid query still scores the 50-point floor on the row term, since an
// empty answer can be the correct answer.
func Confidence(similarity float64, valid, executed bool, rowCount int) float64 {
	score := 0.5 * (similarity * 100)

	if valid {
		score += 0.2 * 100
	}

	if executed {
		score += 0.2 * 100
	}

	if rowCount > 0 {
		score += 0.1 * 100
	} else {
		score += 0.1 * 50
	}

	if score < 0 {
		return 0
	}

	if score > 100 {
		return 100
	}

	return score
}
