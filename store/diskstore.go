package store

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/golang/glog"
)

// DiskStore is a Store backed by a file-backed memory mapping. It may be
// offloaded (the mapping released) and is transparently reloaded from its
// backing file on the next read or write. Offload/reload is modeled as
// optional occupancy: the mapping is a nullable slot guarded by a mutex, and
// every access path checks occupancy before touching bytes.
type DiskStore struct {
	mu          sync.Mutex
	path        string
	elementSize int
	cap         int
	len         int
	mapping     mmap.MMap // nil when offloaded
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates (or truncates) the file at path, sized for cap
// elements of the given width, and maps it.
func NewDiskStore(path string, cap, elementSize int) (*DiskStore, error) {
	s := &DiskStore{path: path, elementSize: elementSize, cap: cap}
	size := int64(cap) * int64(elementSize)
	if size == 0 {
		size = int64(elementSize)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errIoFailure(err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return nil, errIoFailure(err)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return nil, errIoFailure(err)
	}
	s.mapping = m
	return s, nil
}

// NewDiskStoreFromSlice creates the file at path, sized for cap elements,
// and prefills it from raw (a multiple of elementSize in length).
func NewDiskStoreFromSlice(path string, cap, elementSize int, raw []byte) (*DiskStore, error) {
	n, err := elementCount(raw, elementSize)
	if err != nil {
		return nil, err
	}
	if cap < n {
		cap = n
	}
	s, err := NewDiskStore(path, cap, elementSize)
	if err != nil {
		return nil, err
	}
	copy(s.mapping, raw)
	s.len = n
	return s, nil
}

// OpenDiskStore reopens an existing file at path as a store of cap elements
// (cap may be larger than the number of elements already on disk, to allow
// further writes up to the file's reserved size).
func OpenDiskStore(path string, cap, elementSize, storedLen int) (*DiskStore, error) {
	s := &DiskStore{path: path, elementSize: elementSize, cap: cap, len: storedLen}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// reload re-maps the backing file. Caller must hold s.mu.
func (s *DiskStore) reload() error {
	f, err := os.OpenFile(s.path, os.O_RDWR, 0o644)
	if err != nil {
		return errIoFailure(err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return errIoFailure(err)
	}
	want := int64(s.cap) * int64(s.elementSize)
	if info.Size() < want {
		if err := f.Truncate(want); err != nil {
			return errIoFailure(err)
		}
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return errIoFailure(err)
	}
	s.mapping = m
	glog.V(2).Infof("store: reloaded disk mapping for %s", s.path)
	return nil
}

// withMapping runs fn with the mapping guaranteed loaded, reloading it
// transparently if it was offloaded since the last access.
func (s *DiskStore) withMapping(fn func(m mmap.MMap) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping == nil {
		if err := s.reload(); err != nil {
			return err
		}
	}
	return fn(s.mapping)
}

func (s *DiskStore) ElementSize() int { return s.elementSize }
func (s *DiskStore) Cap() int         { return s.cap }

func (s *DiskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

func (s *DiskStore) IsEmpty() bool { return s.Len() == 0 }

func (s *DiskStore) Push(e []byte) error {
	if err := checkElementWidth(e, s.elementSize); err != nil {
		return err
	}
	return s.withMapping(func(m mmap.MMap) error {
		if s.len >= s.cap {
			return errInsufficientCapacity(s.len+1, s.cap)
		}
		off := s.len * s.elementSize
		copy(m[off:off+s.elementSize], e)
		s.len++
		return nil
	})
}

func (s *DiskStore) WriteAt(e []byte, i int) error {
	if err := checkElementWidth(e, s.elementSize); err != nil {
		return err
	}
	return s.withMapping(func(m mmap.MMap) error {
		if i > s.len {
			return errOutOfBounds(i, s.len)
		}
		if i >= s.cap {
			return errInsufficientCapacity(i+1, s.cap)
		}
		off := i * s.elementSize
		copy(m[off:off+s.elementSize], e)
		if i == s.len {
			s.len++
		}
		return nil
	})
}

func (s *DiskStore) WriteRange(data []byte, start int) error {
	n, err := elementCount(data, s.elementSize)
	if err != nil {
		return err
	}
	return s.withMapping(func(m mmap.MMap) error {
		if start+n > s.cap {
			return errInsufficientCapacity(start+n, s.cap)
		}
		off := start * s.elementSize
		copy(m[off:off+len(data)], data)
		if start+n > s.len {
			s.len = start + n
		}
		return nil
	})
}

func (s *DiskStore) ReadAt(i int) ([]byte, error) {
	out := make([]byte, s.elementSize)
	if err := s.ReadInto(i, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DiskStore) ReadInto(i int, buf []byte) error {
	if err := checkElementWidth(buf, s.elementSize); err != nil {
		return err
	}
	return s.withMapping(func(m mmap.MMap) error {
		if i < 0 || i >= s.len {
			return errOutOfBounds(i, s.len)
		}
		off := i * s.elementSize
		copy(buf, m[off:off+s.elementSize])
		return nil
	})
}

func (s *DiskStore) ReadRange(lo, hi int) ([][]byte, error) {
	var out [][]byte
	err := s.withMapping(func(m mmap.MMap) error {
		if lo < 0 || hi > s.len || lo > hi {
			return errOutOfBounds(hi, s.len)
		}
		out = make([][]byte, hi-lo)
		for i := lo; i < hi; i++ {
			e := make([]byte, s.elementSize)
			off := i * s.elementSize
			copy(e, m[off:off+s.elementSize])
			out[i-lo] = e
		}
		return nil
	})
	return out, err
}

// TryOffload releases the memory mapping. The next read or write
// transparently reloads it from path.
func (s *DiskStore) TryOffload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping == nil {
		return false, nil
	}
	if err := s.mapping.Unmap(); err != nil {
		return false, errIoFailure(err)
	}
	s.mapping = nil
	glog.V(2).Infof("store: offloaded disk mapping for %s", s.path)
	return true, nil
}

// Path returns the backing file path.
func (s *DiskStore) Path() string { return s.path }
