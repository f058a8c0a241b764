package sampling

// field is a finite field GF(p^m) with elements encoded as base-p digit
// vectors (coefficient of x^i is digit i).
type field struct {
	p, m, q int
	mul     [][]int
	add     [][]int
}

// irreducible holds a monic irreducible polynomial for each supported
// extension field, lowest coefficient first, leading 1 omitted.
var irreducible = map[int][]int{
	4: {1, 1},    // x^2 + x + 1 over GF(2)
	8: {1, 1, 0}, // x^3 + x + 1 over GF(2)
	9: {1, 0},    // x^2 + 1 over GF(3)
}

// primePower returns (p, m) with q = p^m, or ok=false.
func primePower(q int) (p, m int, ok bool) {
	if q < 2 {
		return 0, 0, false
	}
	for p = 2; p*p <= q; p++ {
		if q%p == 0 {
			break
		}
	}
	if q%p != 0 {
		p = q
	}
	for n := q; n > 1; n /= p {
		if n%p != 0 {
			return 0, 0, false
		}
		m++
	}
	return p, m, true
}

func newField(q int) (*field, bool) {
	p, m, ok := primePower(q)
	if !ok {
		return nil, false
	}
	var poly []int
	if m > 1 {
		poly, ok = irreducible[q]
		if !ok {
			return nil, false
		}
	}
	f := &field{p: p, m: m, q: q}
	f.add = make([][]int, q)
	f.mul = make([][]int, q)
	for a := 0; a < q; a++ {
		f.add[a] = make([]int, q)
		f.mul[a] = make([]int, q)
		for b := 0; b < q; b++ {
			f.add[a][b] = f.addDigits(a, b)
			if m == 1 {
				f.mul[a][b] = (a * b) % p
			} else {
				f.mul[a][b] = f.mulPoly(a, b, poly)
			}
		}
	}
	return f, true
}

func (f *field) digits(a int) []int {
	d := make([]int, f.m)
	for i := 0; i < f.m; i++ {
		d[i] = a % f.p
		a /= f.p
	}
	return d
}

func (f *field) encode(d []int) int {
	v := 0
	for i := len(d) - 1; i >= 0; i-- {
		v = v*f.p + d[i]
	}
	return v
}

func (f *field) addDigits(a, b int) int {
	da, db := f.digits(a), f.digits(b)
	for i := range da {
		da[i] = (da[i] + db[i]) % f.p
	}
	return f.encode(da)
}

// mulPoly multiplies two elements and reduces modulo x^m + poly(x).
func (f *field) mulPoly(a, b int, poly []int) int {
	da, db := f.digits(a), f.digits(b)
	prod := make([]int, 2*f.m-1)
	for i, x := range da {
		for j, y := range db {
			prod[i+j] = (prod[i+j] + x*y) % f.p
		}
	}
	// x^m == -poly(x)
	for deg := len(prod) - 1; deg >= f.m; deg-- {
		c := prod[deg]
		if c == 0 {
			continue
		}
		prod[deg] = 0
		for i, pc := range poly {
			idx := deg - f.m + i
			prod[idx] = ((prod[idx]-c*pc)%f.p + f.p) % f.p
		}
	}
	return f.encode(prod[:f.m])
}
