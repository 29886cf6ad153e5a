package algorithm

// XOR16Algorithm is the 16-byte reference algorithm used by the test
// fixtures: leaf(e) = 0x00 || e[:15], node(l, r, h) = 0x01 || (l XOR r)[:15].
// It is not cryptographically meaningful; it exists purely so tree shape
// and proof correctness can be checked against hand-computed values.
type XOR16Algorithm struct {
	running [16]byte
}

var _ Algorithm = (*XOR16Algorithm)(nil)

// NewXOR16 returns a fresh XOR16Algorithm.
func NewXOR16() *XOR16Algorithm { return &XOR16Algorithm{} }

func (a *XOR16Algorithm) ElementSize() int { return 16 }

func (a *XOR16Algorithm) Leaf(data []byte) ([]byte, error) {
	out := make([]byte, 16)
	out[0] = 0x00
	n := len(data)
	if n > 15 {
		n = 15
	}
	copy(out[1:], data[:n])
	return out, nil
}

func (a *XOR16Algorithm) Node(left, right []byte, level int) ([]byte, error) {
	if len(left) != 16 || len(right) != 16 {
		return nil, errWrongWidth
	}
	out := make([]byte, 16)
	out[0] = 0x01
	// (l XOR r)[..15]: the first 15 bytes of the full 16-byte XOR, shifted
	// one position to follow the prefix byte. Byte 15 of the XOR is dropped.
	for i := 0; i < 15; i++ {
		out[i+1] = left[i] ^ right[i]
	}
	return out, nil
}

func (a *XOR16Algorithm) Reset() {
	a.running = [16]byte{}
}

func (a *XOR16Algorithm) Hash() []byte {
	out := make([]byte, 16)
	copy(out, a.running[:])
	return out
}
