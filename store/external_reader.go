package store

import "os"

// ExternalReader supplies base-layer bytes for a version-2 LevelCacheStore,
// whose base layer is not present in the store's own file. ReadFn must read
// the exact byte range [start, end) into buf and return the number of bytes
// read; a zero return on a non-empty request is treated as an error.
type ExternalReader struct {
	Source any
	ReadFn func(start, end int64, buf []byte, source any) (int, error)
}

func (r ExternalReader) read(start, end int64, buf []byte) error {
	n, err := r.ReadFn(start, end, buf, r.Source)
	if err != nil {
		return errIoFailure(err)
	}
	want := int(end - start)
	if n == 0 && want > 0 {
		return errIoFailure(errZeroRead)
	}
	if n != want {
		return errIoFailure(errShortRead)
	}
	return nil
}

// WriteReplicaFile writes elements (each exactly width bytes) to path,
// concatenated in order, truncating any previous contents. Used to carve
// the base layer out into its own file during V2 compaction.
func WriteReplicaFile(path string, elements [][]byte, width int) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errIoFailure(err)
	}
	defer f.Close()
	buf := make([]byte, width)
	for _, e := range elements {
		copy(buf, e)
		if _, err := f.Write(buf); err != nil {
			return errIoFailure(err)
		}
	}
	return nil
}

// FileExternalReader returns an ExternalReader backed by the file at path,
// the convenience default for a V2 LevelCacheStore whose base layer lives
// in its own replica file.
func FileExternalReader(path string) ExternalReader {
	return ExternalReader{
		Source: path,
		ReadFn: func(start, end int64, buf []byte, source any) (int, error) {
			p := source.(string)
			f, err := os.Open(p)
			if err != nil {
				return 0, err
			}
			defer f.Close()
			n, err := f.ReadAt(buf[:end-start], start)
			if err != nil && n == int(end-start) {
				err = nil
			}
			return n, err
		},
	}
}
