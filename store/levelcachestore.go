package store

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/golang/glog"
)

// DataVersion distinguishes the two persisted layouts a LevelCacheStore can
// use.
type DataVersion int

const (
	// V1 stores the base layer and the cached top levels in one file:
	// [ base layer | cached top levels ].
	V1 DataVersion = iota
	// V2 stores only the cached top levels; the base layer is served
	// through an ExternalReader at read time.
	V2
)

// LevelCacheConfig describes the shape of a LevelCacheStore being built or
// reopened: the full conceptual node array's per-level widths (leaves
// first), and how many of the top levels are materialized.
type LevelCacheConfig struct {
	Path         string
	ID           string
	ElementSize  int
	LevelWidths  []int // level 0 (leaves) .. height-1 (root)
	CachedLevels int    // k, levels cached above the base layer
	Version      DataVersion
	// ExternalReader is required when Version == V2.
	ExternalReader ExternalReader
}

// LevelCacheStore serves reads over the base layer and a cached band of top
// levels only; any other global index returns OutOfCachedRange. Indices are
// global, addressing the same conceptual array
// [L_0 .. L_leafs-1, I_0, .., root] the full tree uses.
type LevelCacheStore struct {
	mu          sync.Mutex
	path        string
	elementSize int
	leafs       int // width of level 0, i.e. the base layer
	totalLen    int // length of the full, uncompacted conceptual array
	// firstCachedGlobal is the global index where the cached top band
	// begins (the first index of the first cached level).
	firstCachedGlobal int
	cachedCount       int
	version           DataVersion
	mapping           mmap.MMap // nil when offloaded
	externalReader    *ExternalReader
}

var _ Store = (*LevelCacheStore)(nil)

// levelStarts returns the global starting index of each level, given the
// per-level widths (level 0 = leaves).
func levelStarts(widths []int) []int {
	starts := make([]int, len(widths)+1)
	for i, w := range widths {
		starts[i+1] = starts[i] + w
	}
	return starts
}

// NewLevelCacheStore builds a fresh LevelCacheStore file from base (the
// leaf-level elements, required for V1, ignored for V2) and cachedTop (the
// concatenated elements of the cached top levels, level-major, bottom to
// top).
func NewLevelCacheStore(cfg LevelCacheConfig, base, cachedTop [][]byte) (*LevelCacheStore, error) {
	height := len(cfg.LevelWidths)
	if cfg.CachedLevels < 0 || cfg.CachedLevels > height {
		return nil, errCompactionRefused("cached levels out of range")
	}
	starts := levelStarts(cfg.LevelWidths)
	totalLen := starts[height]
	firstCachedLevel := height - cfg.CachedLevels
	firstCachedGlobal := starts[firstCachedLevel]
	cachedCount := totalLen - firstCachedGlobal

	s := &LevelCacheStore{
		path:              DataPath(cfg.Path, cfg.ID),
		elementSize:       cfg.ElementSize,
		leafs:             cfg.LevelWidths[0],
		totalLen:          totalLen,
		firstCachedGlobal: firstCachedGlobal,
		cachedCount:       cachedCount,
		version:           cfg.Version,
	}

	fileLen := cachedCount
	if cfg.Version == V1 {
		fileLen += s.leafs
	} else {
		r := cfg.ExternalReader
		s.externalReader = &r
	}

	size := int64(fileLen) * int64(cfg.ElementSize)
	if size == 0 {
		size = int64(cfg.ElementSize)
	}
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errIoFailure(err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, errIoFailure(err)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	f.Close()
	if err != nil {
		return nil, errIoFailure(err)
	}
	s.mapping = m

	pos := 0
	if cfg.Version == V1 {
		if len(base) != s.leafs {
			return nil, errCompactionRefused("base layer element count mismatch")
		}
		for _, e := range base {
			copy(s.mapping[pos:pos+cfg.ElementSize], e)
			pos += cfg.ElementSize
		}
	}
	if len(cachedTop) != cachedCount {
		return nil, errCompactionRefused("cached top element count mismatch")
	}
	for _, e := range cachedTop {
		copy(s.mapping[pos:pos+cfg.ElementSize], e)
		pos += cfg.ElementSize
	}
	return s, nil
}

// OpenLevelCacheStore reopens a previously built LevelCacheStore file.
func OpenLevelCacheStore(cfg LevelCacheConfig) (*LevelCacheStore, error) {
	height := len(cfg.LevelWidths)
	starts := levelStarts(cfg.LevelWidths)
	totalLen := starts[height]
	firstCachedLevel := height - cfg.CachedLevels
	firstCachedGlobal := starts[firstCachedLevel]
	cachedCount := totalLen - firstCachedGlobal

	s := &LevelCacheStore{
		path:              DataPath(cfg.Path, cfg.ID),
		elementSize:       cfg.ElementSize,
		leafs:             cfg.LevelWidths[0],
		totalLen:          totalLen,
		firstCachedGlobal: firstCachedGlobal,
		cachedCount:       cachedCount,
		version:           cfg.Version,
	}
	if cfg.Version == V2 {
		r := cfg.ExternalReader
		s.externalReader = &r
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LevelCacheStore) reload() error {
	f, err := os.OpenFile(s.path, os.O_RDWR, 0o644)
	if err != nil {
		return errIoFailure(err)
	}
	defer f.Close()
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return errIoFailure(err)
	}
	s.mapping = m
	glog.V(2).Infof("store: reloaded level-cache mapping for %s", s.path)
	return nil
}

func (s *LevelCacheStore) withMapping(fn func(m mmap.MMap) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping == nil {
		if err := s.reload(); err != nil {
			return err
		}
	}
	return fn(s.mapping)
}

func (s *LevelCacheStore) ElementSize() int { return s.elementSize }
func (s *LevelCacheStore) Len() int         { return s.totalLen }
func (s *LevelCacheStore) IsEmpty() bool    { return s.totalLen == 0 }
func (s *LevelCacheStore) Cap() int         { return s.totalLen }

// Version reports whether this store uses the V1 (embedded base layer) or
// V2 (external-reader base layer) layout.
func (s *LevelCacheStore) Version() DataVersion { return s.version }

// Leafs returns the width of the base layer (level 0).
func (s *LevelCacheStore) Leafs() int { return s.leafs }

// FirstCachedIndex returns the global index where the cached top band
// begins.
func (s *LevelCacheStore) FirstCachedIndex() int { return s.firstCachedGlobal }

// inBase reports whether the global index i addresses the base layer.
func (s *LevelCacheStore) inBase(i int) bool { return i >= 0 && i < s.leafs }

// inCachedTop reports whether the global index i addresses the cached top
// band.
func (s *LevelCacheStore) inCachedTop(i int) bool {
	return i >= s.firstCachedGlobal && i < s.totalLen
}

// cachedLocalIndex maps a global cached-top index to its position within
// the mapped file.
func (s *LevelCacheStore) cachedLocalIndex(i int) int {
	local := i - s.firstCachedGlobal
	if s.version == V1 {
		local += s.leafs
	}
	return local
}

func (s *LevelCacheStore) ReadAt(i int) ([]byte, error) {
	out := make([]byte, s.elementSize)
	if err := s.ReadInto(i, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LevelCacheStore) ReadInto(i int, buf []byte) error {
	if err := checkElementWidth(buf, s.elementSize); err != nil {
		return err
	}
	if i < 0 || i >= s.totalLen {
		return errOutOfBounds(i, s.totalLen)
	}
	if s.inBase(i) && s.version == V2 {
		off := int64(i) * int64(s.elementSize)
		return s.externalReader.read(off, off+int64(s.elementSize), buf)
	}
	if s.inBase(i) || s.inCachedTop(i) {
		local := i
		if s.inCachedTop(i) && !s.inBase(i) {
			local = s.cachedLocalIndex(i)
		}
		return s.withMapping(func(m mmap.MMap) error {
			off := local * s.elementSize
			copy(buf, m[off:off+s.elementSize])
			return nil
		})
	}
	return errOutOfCachedRange(i, s.totalLen)
}

func (s *LevelCacheStore) ReadRange(lo, hi int) ([][]byte, error) {
	if lo < 0 || hi > s.totalLen || lo > hi {
		return nil, errOutOfBounds(hi, s.totalLen)
	}
	out := make([][]byte, hi-lo)
	for i := lo; i < hi; i++ {
		e, err := s.ReadAt(i)
		if err != nil {
			return nil, err
		}
		out[i-lo] = e
	}
	return out, nil
}

func (s *LevelCacheStore) Push(e []byte) error {
	return errCompactionRefused("level-cache stores do not support append")
}

func (s *LevelCacheStore) WriteAt(e []byte, i int) error {
	if err := checkElementWidth(e, s.elementSize); err != nil {
		return err
	}
	if i < 0 || i >= s.totalLen {
		return errOutOfBounds(i, s.totalLen)
	}
	if s.inBase(i) && s.version == V2 {
		return errOutOfCachedRange(i, s.totalLen)
	}
	if !s.inBase(i) && !s.inCachedTop(i) {
		return errOutOfCachedRange(i, s.totalLen)
	}
	local := i
	if s.inCachedTop(i) && !s.inBase(i) {
		local = s.cachedLocalIndex(i)
	}
	return s.withMapping(func(m mmap.MMap) error {
		off := local * s.elementSize
		copy(m[off:off+s.elementSize], e)
		return nil
	})
}

func (s *LevelCacheStore) WriteRange(data []byte, start int) error {
	n, err := elementCount(data, s.elementSize)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		e := data[i*s.elementSize : (i+1)*s.elementSize]
		if err := s.WriteAt(e, start+i); err != nil {
			return err
		}
	}
	return nil
}

// TryOffload releases the memory mapping. The next read or write
// transparently reloads it from path.
func (s *LevelCacheStore) TryOffload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping == nil {
		return false, nil
	}
	if err := s.mapping.Unmap(); err != nil {
		return false, errIoFailure(err)
	}
	s.mapping = nil
	glog.V(2).Infof("store: offloaded level-cache mapping for %s", s.path)
	return true, nil
}

// FileSize returns the current size, in bytes, of the backing file.
func (s *LevelCacheStore) FileSize() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, errIoFailure(err)
	}
	return info.Size(), nil
}

// Path returns the backing file path.
func (s *LevelCacheStore) Path() string { return s.path }
