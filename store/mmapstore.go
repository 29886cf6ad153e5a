package store

import (
	"github.com/edsrzf/mmap-go"
)

// MmapStore is a Store backed by an anonymous memory mapping. Its capacity
// is fixed at construction time; Push beyond capacity fails.
type MmapStore struct {
	mapping     mmap.MMap
	elementSize int
	cap         int
	len         int
}

var _ Store = (*MmapStore)(nil)

// NewMmapStore reserves an anonymous mapping for cap elements of the given
// width.
func NewMmapStore(cap, elementSize int) (*MmapStore, error) {
	size := cap * elementSize
	if size == 0 {
		size = elementSize
	}
	m, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, errIoFailure(err)
	}
	return &MmapStore{mapping: m, elementSize: elementSize, cap: cap}, nil
}

// NewMmapStoreFromSlice reserves an anonymous mapping of cap elements and
// prefills it from raw, a multiple of elementSize in length.
func NewMmapStoreFromSlice(cap, elementSize int, raw []byte) (*MmapStore, error) {
	n, err := elementCount(raw, elementSize)
	if err != nil {
		return nil, err
	}
	if cap < n {
		cap = n
	}
	s, err := NewMmapStore(cap, elementSize)
	if err != nil {
		return nil, err
	}
	copy(s.mapping, raw)
	s.len = n
	return s, nil
}

func (s *MmapStore) ElementSize() int { return s.elementSize }
func (s *MmapStore) Len() int         { return s.len }
func (s *MmapStore) IsEmpty() bool    { return s.len == 0 }
func (s *MmapStore) Cap() int         { return s.cap }

func (s *MmapStore) Push(e []byte) error {
	if err := checkElementWidth(e, s.elementSize); err != nil {
		return err
	}
	if s.len >= s.cap {
		return errInsufficientCapacity(s.len+1, s.cap)
	}
	off := s.len * s.elementSize
	copy(s.mapping[off:off+s.elementSize], e)
	s.len++
	return nil
}

func (s *MmapStore) WriteAt(e []byte, i int) error {
	if err := checkElementWidth(e, s.elementSize); err != nil {
		return err
	}
	if i > s.len {
		return errOutOfBounds(i, s.len)
	}
	if i >= s.cap {
		return errInsufficientCapacity(i+1, s.cap)
	}
	off := i * s.elementSize
	copy(s.mapping[off:off+s.elementSize], e)
	if i == s.len {
		s.len++
	}
	return nil
}

func (s *MmapStore) WriteRange(data []byte, start int) error {
	n, err := elementCount(data, s.elementSize)
	if err != nil {
		return err
	}
	if start+n > s.cap {
		return errInsufficientCapacity(start+n, s.cap)
	}
	off := start * s.elementSize
	copy(s.mapping[off:off+len(data)], data)
	if start+n > s.len {
		s.len = start + n
	}
	return nil
}

func (s *MmapStore) ReadAt(i int) ([]byte, error) {
	if i < 0 || i >= s.len {
		return nil, errOutOfBounds(i, s.len)
	}
	out := make([]byte, s.elementSize)
	off := i * s.elementSize
	copy(out, s.mapping[off:off+s.elementSize])
	return out, nil
}

func (s *MmapStore) ReadInto(i int, buf []byte) error {
	if i < 0 || i >= s.len {
		return errOutOfBounds(i, s.len)
	}
	if err := checkElementWidth(buf, s.elementSize); err != nil {
		return err
	}
	off := i * s.elementSize
	copy(buf, s.mapping[off:off+s.elementSize])
	return nil
}

func (s *MmapStore) ReadRange(lo, hi int) ([][]byte, error) {
	if lo < 0 || hi > s.len || lo > hi {
		return nil, errOutOfBounds(hi, s.len)
	}
	out := make([][]byte, hi-lo)
	for i := lo; i < hi; i++ {
		e := make([]byte, s.elementSize)
		off := i * s.elementSize
		copy(e, s.mapping[off:off+s.elementSize])
		out[i-lo] = e
	}
	return out, nil
}

// TryOffload always returns false: an anonymous mapping has no backing file
// to reload from, so releasing it would lose data.
func (s *MmapStore) TryOffload() (bool, error) { return false, nil }

// Close unmaps the anonymous region. Safe to call once the store is no
// longer needed.
func (s *MmapStore) Close() error {
	if s.mapping == nil {
		return nil
	}
	err := s.mapping.Unmap()
	s.mapping = nil
	return err
}
