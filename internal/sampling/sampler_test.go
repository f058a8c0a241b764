package sampling

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGaloisFieldAxioms(t *testing.T) {
	for _, q := range []int{2, 3, 4, 5, 7, 8, 9} {
		f, ok := newField(q)
		require.True(t, ok, "GF(%d)", q)
		for a := 1; a < q; a++ {
			inverses := 0
			for b := 1; b < q; b++ {
				if f.mul[a][b] == 1 {
					inverses++
				}
			}
			assert.Equal(t, 1, inverses, "GF(%d): %d must have exactly one inverse", q, a)
		}
		for a := 0; a < q; a++ {
			assert.Equal(t, a, f.add[a][0])
			assert.Equal(t, 0, f.mul[a][0])
		}
	}
	_, ok := newField(6)
	assert.False(t, ok)
}

func TestOrthogonalArrayExists(t *testing.T) {
	var oa OrthogonalArray
	tests := []struct {
		nVar, depth, rows int
		ok                bool
	}{
		{1, 2, 2, true},
		{1, 100, 100, true},
		{1, 101, 0, false},
		{2, 3, 9, true},
		{4, 3, 9, true},
		{5, 3, 0, false},
		{10, 9, 81, true},
		{11, 9, 0, false},
		{3, 6, 36, true},
		{4, 6, 0, false},
		{2, 10, 0, false},
		{3, 1, 0, false},
	}
	for _, tt := range tests {
		rows, ok := oa.Exists(tt.nVar, tt.depth)
		assert.Equal(t, tt.ok, ok, "Exists(%d,%d)", tt.nVar, tt.depth)
		assert.Equal(t, tt.rows, rows, "Exists(%d,%d)", tt.nVar, tt.depth)
	}
}

// every pair of columns must contain every level pair exactly once
func assertStrengthTwo(t *testing.T, rows [][]int, nVar, depth int) {
	t.Helper()
	for c1 := 0; c1 < nVar; c1++ {
		for c2 := c1 + 1; c2 < nVar; c2++ {
			seen := make(map[[2]int]int)
			for _, r := range rows {
				seen[[2]int{r[c1], r[c2]}]++
			}
			require.Len(t, seen, depth*depth, "columns %d,%d", c1, c2)
			for k, n := range seen {
				require.Equal(t, 1, n, "pair %v repeated", k)
			}
		}
	}
}

func TestOrthogonalArrayStrength(t *testing.T) {
	var oa OrthogonalArray
	for _, depth := range []int{2, 3, 4, 5, 6, 7, 8, 9} {
		nVar := depth + 1
		if depth == 6 {
			nVar = 3
		}
		if nVar > MaxVars {
			nVar = MaxVars
		}
		rows, ok := oa.Generate(nVar, depth)
		require.True(t, ok, "depth %d", depth)
		assertStrengthTwo(t, rows, nVar, depth)
	}
}

func TestOrthogonalArrayProperty(t *testing.T) {
	var oa OrthogonalArray
	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.SampledFrom([]int{2, 3, 4, 5, 7, 8, 9}).Draw(t, "depth")
		limit := depth + 1
		if limit > MaxVars {
			limit = MaxVars
		}
		nVar := rapid.IntRange(1, limit).Draw(t, "nVar")
		rows, ok := oa.Generate(nVar, depth)
		if !ok {
			t.Fatalf("no array for (%d, %d)", nVar, depth)
		}
		for c := 0; c < nVar; c++ {
			levels := make(map[int]bool)
			for _, r := range rows {
				if r[c] < 0 || r[c] >= depth {
					t.Fatalf("entry %d out of range [0,%d)", r[c], depth)
				}
				levels[r[c]] = true
			}
			if len(levels) != depth {
				t.Fatalf("column %d has %d distinct levels, want %d", c, len(levels), depth)
			}
		}
	})
}

func TestLatinHypercubeRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nVar := rapid.IntRange(1, 12).Draw(t, "nVar")
		depth := rapid.IntRange(2, 20).Draw(t, "depth")
		n := rapid.IntRange(0, 60).Draw(t, "n")
		seed := rapid.Int64().Draw(t, "seed")
		rows := LatinHypercube(rand.New(rand.NewSource(seed)), nVar, depth, n)
		if len(rows) != n {
			t.Fatalf("got %d rows, want %d", len(rows), n)
		}
		for _, r := range rows {
			for _, v := range r {
				if v < 0 || v >= depth {
					t.Fatalf("level %d out of range [0,%d)", v, depth)
				}
			}
		}
		if n >= depth {
			for j := 0; j < nVar; j++ {
				if got := distinctLevels(rows, j); got != depth {
					t.Fatalf("column %d has %d distinct levels, want %d", j, got, depth)
				}
			}
		}
	})
}

func distinctLevels(rows [][]int, col int) int {
	seen := make(map[int]bool)
	for _, r := range rows {
		seen[r[col]] = true
	}
	return len(seen)
}

func TestSampleAppendsLatinHypercubeRows(t *testing.T) {
	s := NewSampler(rand.New(rand.NewSource(1)), nil)
	g := s.Sample(2, 3, 20)
	assert.Len(t, g.Rows, 20)
	assert.Equal(t, 9, g.OARows)
	assert.Equal(t, 3, g.Depth)
	for _, r := range g.Rows {
		for _, v := range r {
			assert.True(t, v >= 0 && v < 3)
		}
	}
}

func TestSampleFallsBackWithoutArray(t *testing.T) {
	s := NewSampler(rand.New(rand.NewSource(1)), nil)
	cases := []struct{ nVar, depth, required int }{
		{11, 3, 30},
		{4, 6, 40},
	}
	for _, c := range cases {
		g := s.Sample(c.nVar, c.depth, c.required)
		assert.Len(t, g.Rows, c.required)
		assert.Equal(t, 0, g.OARows)
		for _, r := range g.Rows {
			assert.Len(t, r, c.nVar)
		}
		for j := 0; j < c.nVar; j++ {
			assert.Equal(t, c.depth, distinctLevels(g.Rows, j), "nVar=%d depth=%d column %d", c.nVar, c.depth, j)
		}
	}
}

func TestSampleSingleVariableFallback(t *testing.T) {
	s := NewSampler(rand.New(rand.NewSource(1)), nil)
	g := s.Sample(1, 150, 150)
	assert.Equal(t, 0, g.OARows)
	assert.Equal(t, 150, g.Depth)
	assert.Equal(t, 150, distinctLevels(g.Rows, 0))
}

func TestSampleNoVariables(t *testing.T) {
	s := NewSampler(rand.New(rand.NewSource(1)), nil)
	g := s.Sample(0, 3, 4)
	assert.Len(t, g.Rows, 4)
	for _, r := range g.Rows {
		assert.Empty(t, r)
	}
}
