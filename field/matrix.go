package field

// Rank returns the rank over GF(2^128) of the matrix with the given rows
func Rank(rows [][]Element) int {
	n := len(rows)
	if n == 0 {
		return 0
	}
	m := len(rows[0])

	// Work on a copy so the caller's rows stay untouched
	A := make([][]Element, n)
	for i := range rows {
		A[i] = append([]Element(nil), rows[i]...)
	}

	// Forward elimination only; the number of pivots is the rank
	rank := 0
	for col := 0; col < m && rank < n; col++ {
		pivot := -1
		for i := rank; i < n; i++ {
			if !A[i][col].IsZero() {
				pivot = i
				break
			}
		}
		if pivot == -1 {
			continue
		}

		if pivot != rank {
			A[rank], A[pivot] = A[pivot], A[rank]
		}

		invPivot := A[rank][col].Inv()
		for i := rank + 1; i < n; i++ {
			if A[i][col].IsZero() {
				continue
			}
			factor := A[i][col].Mul(invPivot)
			for j := col; j < m; j++ {
				A[i][j] = A[i][j].Sub(factor.Mul(A[rank][j]))
			}
		}
		rank++
	}
	return rank
}
