// Package assign solves the rectangular minimum-cost linear assignment
// problem used to pair base invoice lines with candidate lines. The solver
// is the shortest-augmenting-path formulation of the Hungarian method
// (Jonker-Volgenant lane), which matches min(rows, cols) pairs.
package assign

import "math"

// Pair is one assigned (row, col) coordinate of the cost matrix.
type Pair struct {
	Row int
	Col int
}

// MinCost returns the min-cost assignment of rows to columns for a
// rectangular cost matrix. Exactly min(rows, cols) pairs are returned,
// sorted by row. Ties are broken by the lowest column index so repeated
// runs over equal costs produce identical pairings.
func MinCost(cost [][]float64) []Pair {
	n := len(cost)
	if n == 0 || len(cost[0]) == 0 {
		return nil
	}
	m := len(cost[0])

	if n <= m {
		rowToCol := solve(cost, n, m)
		pairs := make([]Pair, 0, n)
		for i, j := range rowToCol {
			pairs = append(pairs, Pair{Row: i, Col: j})
		}
		return pairs
	}

	// More rows than columns: solve the transpose and flip coordinates.
	transposed := make([][]float64, m)
	for j := 0; j < m; j++ {
		transposed[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			transposed[j][i] = cost[i][j]
		}
	}
	colToRow := solve(transposed, m, n)
	pairs := make([]Pair, 0, m)
	for j, i := range colToRow {
		pairs = append(pairs, Pair{Row: i, Col: j})
	}
	sortPairsByRow(pairs)
	return pairs
}

// solve runs the augmenting-path Hungarian algorithm for n <= m and
// returns the assigned column for every row. Indices inside are 1-based
// so that slot 0 can act as the virtual source.
func solve(cost [][]float64, n, m int) []int {
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	rowOf := make([]int, m+1)
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		rowOf[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		for {
			used[j0] = true
			i0 := rowOf[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[rowOf[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if rowOf[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			rowOf[j0] = rowOf[j1]
			j0 = j1
		}
	}

	rowToCol := make([]int, n)
	for j := 1; j <= m; j++ {
		if rowOf[j] > 0 {
			rowToCol[rowOf[j]-1] = j - 1
		}
	}
	return rowToCol
}

func sortPairsByRow(pairs []Pair) {
	// Insertion sort keeps this dependency-free; pair counts are line
	// counts, which stay tiny.
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j-1].Row > pairs[j].Row; j-- {
			pairs[j-1], pairs[j] = pairs[j], pairs[j-1]
		}
	}
}
