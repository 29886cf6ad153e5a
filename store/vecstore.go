package store

// VecStore is the in-memory, slice-backed Store. It is the reference
// implementation every other variant is cross-checked against: WriteRange
// goes through per-element copies rather than a single block memmove, which
// is an acceptable slowdown for a reference store.
type VecStore struct {
	data        [][]byte
	elementSize int
	cap         int
}

var _ Store = (*VecStore)(nil)

// NewVecStore returns an empty store reserved for cap elements of the given
// width.
func NewVecStore(cap, elementSize int) *VecStore {
	return &VecStore{
		data:        make([][]byte, 0, cap),
		elementSize: elementSize,
		cap:         cap,
	}
}

// NewVecStoreFromSlice returns a store prefilled from raw bytes, a multiple
// of elementSize in length.
func NewVecStoreFromSlice(cap, elementSize int, raw []byte) (*VecStore, error) {
	n, err := elementCount(raw, elementSize)
	if err != nil {
		return nil, err
	}
	if cap < n {
		cap = n
	}
	s := NewVecStore(cap, elementSize)
	for i := 0; i < n; i++ {
		e := make([]byte, elementSize)
		copy(e, raw[i*elementSize:(i+1)*elementSize])
		s.data = append(s.data, e)
	}
	return s, nil
}

func (s *VecStore) ElementSize() int { return s.elementSize }
func (s *VecStore) Len() int         { return len(s.data) }
func (s *VecStore) IsEmpty() bool    { return len(s.data) == 0 }
func (s *VecStore) Cap() int         { return s.cap }

func (s *VecStore) Push(e []byte) error {
	if err := checkElementWidth(e, s.elementSize); err != nil {
		return err
	}
	if len(s.data) >= s.cap {
		return errInsufficientCapacity(len(s.data)+1, s.cap)
	}
	cp := make([]byte, s.elementSize)
	copy(cp, e)
	s.data = append(s.data, cp)
	return nil
}

func (s *VecStore) WriteAt(e []byte, i int) error {
	if err := checkElementWidth(e, s.elementSize); err != nil {
		return err
	}
	if i > len(s.data) {
		return errOutOfBounds(i, len(s.data))
	}
	if i == len(s.data) {
		return s.Push(e)
	}
	copy(s.data[i], e)
	return nil
}

func (s *VecStore) WriteRange(data []byte, start int) error {
	n, err := elementCount(data, s.elementSize)
	if err != nil {
		return err
	}
	if start+n > s.cap {
		return errInsufficientCapacity(start+n, s.cap)
	}
	// As with the mmap-backed stores, a range may start past Len: the gap is
	// zero-filled, so the chunks of one level can be written in any order.
	for len(s.data) < start {
		s.data = append(s.data, make([]byte, s.elementSize))
	}
	for i := 0; i < n; i++ {
		e := data[i*s.elementSize : (i+1)*s.elementSize]
		if err := s.WriteAt(e, start+i); err != nil {
			return err
		}
	}
	return nil
}

func (s *VecStore) ReadAt(i int) ([]byte, error) {
	if i < 0 || i >= len(s.data) {
		return nil, errOutOfBounds(i, len(s.data))
	}
	out := make([]byte, s.elementSize)
	copy(out, s.data[i])
	return out, nil
}

func (s *VecStore) ReadInto(i int, buf []byte) error {
	if i < 0 || i >= len(s.data) {
		return errOutOfBounds(i, len(s.data))
	}
	if err := checkElementWidth(buf, s.elementSize); err != nil {
		return err
	}
	copy(buf, s.data[i])
	return nil
}

func (s *VecStore) ReadRange(lo, hi int) ([][]byte, error) {
	if lo < 0 || hi > len(s.data) || lo > hi {
		return nil, errOutOfBounds(hi, len(s.data))
	}
	out := make([][]byte, hi-lo)
	for i := lo; i < hi; i++ {
		e := make([]byte, s.elementSize)
		copy(e, s.data[i])
		out[i-lo] = e
	}
	return out, nil
}

// TryOffload is a no-op for VecStore: in-memory variants are never offloaded.
func (s *VecStore) TryOffload() (bool, error) { return false, nil }
