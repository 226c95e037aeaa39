package ring

// BiasedId views an Id with its origin shifted by Bias, so that two ids
// can be compared in ring order starting at a chosen point rather than at
// zero. This is used when the natural comparison origin is "self" rather
// than the ring's absolute zero.
type BiasedId struct {
	Bias Id
	Val  Id
}

// NewBiasedId constructs a BiasedId for val as seen from origin bias.
func NewBiasedId(bias, val Id) BiasedId {
	return BiasedId{Bias: bias, Val: val}
}

// rebias returns the same ring position expressed relative to newBias.
func (b BiasedId) rebias(newBias Id) BiasedId {
	if b.Bias == newBias {
		return b
	}
	// Position relative to absolute zero is Bias + Val (mod 2^160); the
	// same absolute position relative to newBias is that minus newBias.
	abs := Add(b.Bias, b.Val)
	return BiasedId{Bias: newBias, Val: Sub(abs, newBias)}
}

// Compare orders two BiasedId values: if their biases differ, the
// right-hand operand is rebiased to the left-hand bias first, then their
// raw positions are compared.
func (b BiasedId) Compare(o BiasedId) int {
	o = o.rebias(b.Bias)
	return b.Val.Cmp(o.Val)
}
