package sampling

import (
	"math/rand"

	"amsprobe/internal"
)

// LatinHypercube draws n stratified samples per variable and maps them onto
// integer levels [0, depth). Each column is an independent random permutation
// of the n strata; stratum k lands on level k*depth/n, so every level appears
// in every column once n >= depth.
func LatinHypercube(rng *rand.Rand, nVar, depth, n int) [][]int {
	out := make([][]int, n)
	for i := range out {
		out[i] = make([]int, nVar)
	}
	if n == 0 || depth < 1 {
		return out
	}
	for j := 0; j < nVar; j++ {
		perm := rng.Perm(n)
		for i := 0; i < n; i++ {
			out[i][j] = perm[i] * depth / n
		}
	}
	return out
}

// Grid is a raw, dimensionless stimulus matrix.
type Grid struct {
	Rows  [][]int
	Depth int
	// OARows is how many leading rows came from the orthogonal array.
	OARows int
}

// Sampler combines orthogonal arrays with Latin hypercube top-up.
type Sampler struct {
	OA     OrthogonalArray
	rng    *rand.Rand
	logger *internal.Logger
}

// NewSampler returns a sampler drawing from rng.
func NewSampler(rng *rand.Rand, logger *internal.Logger) *Sampler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Sampler{rng: rng, logger: logger.WithComponent("Sampler")}
}

// Sample returns at least required rows for nVar variables at the given depth.
// The orthogonal array is used when it exists; otherwise, or when it is too
// short, Latin hypercube rows are appended.
func (s *Sampler) Sample(nVar, depth, required int) Grid {
	if nVar == 0 {
		rows := make([][]int, required)
		for i := range rows {
			rows[i] = []int{}
		}
		return Grid{Rows: rows, Depth: depth}
	}
	rows, ok := s.OA.Generate(nVar, depth)
	if !ok {
		s.logger.Warn("no orthogonal array for %d variables at depth %d, using Latin hypercube sampling", nVar, depth)
		if nVar == 1 {
			depth = required
		}
		return Grid{Rows: LatinHypercube(s.rng, nVar, depth, required), Depth: depth}
	}
	g := Grid{Rows: rows, Depth: depth, OARows: len(rows)}
	if remain := required - len(rows); remain > 0 {
		s.logger.Warn("orthogonal array has %d rows, appending %d Latin hypercube rows", len(rows), remain)
		g.Rows = append(g.Rows, LatinHypercube(s.rng, nVar, depth, remain)...)
	}
	return g
}
