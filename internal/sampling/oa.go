package sampling

const (
	// MaxDepth is the deepest multi-variable orthogonal array available.
	MaxDepth = 9
	// MaxVars is the widest orthogonal array available.
	MaxVars = 10
	// MaxSingleVarDepth bounds the level count of a one-variable array.
	MaxSingleVarDepth = 100
)

// OrthogonalArray builds strength-2 orthogonal arrays on demand.
//
// For a prime power q the Bose construction gives OA(q^2, q+1, q, 2): rows are
// indexed by (a, b) in GF(q)^2, column 0 is a and column c+1 is b + c*a.
// For other depths a cyclic Latin square gives OA(q^2, 3, q, 2).
type OrthogonalArray struct{}

// Exists reports whether an array is available and how many rows it has.
func (OrthogonalArray) Exists(nVar, depth int) (rows int, ok bool) {
	switch {
	case nVar < 1 || depth < 2:
		return 0, false
	case nVar == 1:
		if depth > MaxSingleVarDepth {
			return 0, false
		}
		return depth, true
	case nVar > MaxVars || depth > MaxDepth:
		return 0, false
	}
	if _, _, pp := primePower(depth); pp {
		if _, ok := newField(depth); ok && nVar <= depth+1 {
			return depth * depth, true
		}
		return 0, false
	}
	if nVar <= 3 {
		return depth * depth, true
	}
	return 0, false
}

// Generate returns the array for (nVar, depth), entries in [0, depth).
func (oa OrthogonalArray) Generate(nVar, depth int) ([][]int, bool) {
	if _, ok := oa.Exists(nVar, depth); !ok {
		return nil, false
	}
	if nVar == 1 {
		out := make([][]int, depth)
		for i := range out {
			out[i] = []int{i}
		}
		return out, true
	}
	if f, ok := newField(depth); ok {
		return bose(f, nVar), true
	}
	return latinSquare(depth, nVar), true
}

func bose(f *field, nVar int) [][]int {
	q := f.q
	out := make([][]int, 0, q*q)
	for a := 0; a < q; a++ {
		for b := 0; b < q; b++ {
			row := make([]int, nVar)
			row[0] = a
			for c := 0; c+1 < nVar; c++ {
				row[c+1] = f.add[b][f.mul[c][a]]
			}
			out = append(out, row)
		}
	}
	return out
}

func latinSquare(q, nVar int) [][]int {
	out := make([][]int, 0, q*q)
	for a := 0; a < q; a++ {
		for b := 0; b < q; b++ {
			row := []int{a, b, (a + b) % q}
			out = append(out, row[:nVar])
		}
	}
	return out
}
