package report

import (
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/edsrzf/mmap-go"
)

// MinMMapSize is the file size from which content is hashed through mmap
const MinMMapSize = 4 * 1024 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 32*1024)
		return &b
	},
}

// Checksum returns the xxhash64 of the file content
func Checksum(path string, info os.FileInfo) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if info.Size() >= MinMMapSize {
		if sum, err := checksumMMap(f); err == nil {
			return sum, nil
		}
		// mmap is not available everywhere, fall back to reading
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
	}

	buf := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(buf)

	h := xxhash.New()
	if _, err := io.CopyBuffer(h, f, *buf); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func checksumMMap(f *os.File) (uint64, error) {
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return 0, err
	}
	defer data.Unmap()
	return xxhash.Sum64(data), nil
}
