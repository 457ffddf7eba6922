package bytesource

import (
	"io"
	"os"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/standardbeagle/bigline/internal/types"
	berrors "github.com/standardbeagle/bigline/internal/errors"
)

// chunkSize is the granularity of the UTF-8 shadow cache. Chunks are
// indexed by decoded-byte offset, not raw-file offset, since the two
// diverge once non-ASCII code points are present.
const chunkSize = 256 * 1024

// maxCachedChunks bounds the shadow cache's memory footprint. Any read
// of a chunk that is not cached (never decoded, or evicted past this
// ceiling) redecodes the file from its start up to that chunk - the
// documented non-O(1) cost for UTF-16 random access (SPEC_FULL.md §4.2).
const maxCachedChunks = 64

// transcodedByteSource decodes a UTF-16 file into a UTF-8 shadow on
// demand, caching a bounded set of decoded chunks rather than
// materializing the whole shadow in memory.
type transcodedByteSource struct {
	f   *os.File
	enc types.Encoding

	mu        sync.Mutex
	chunks    map[int64][]byte // decoded-offset chunk index -> decoded bytes
	lru       []int64          // most-recently-used chunk indices, back is newest
	totalLen  int64
	lenKnown  bool
}

func newTranscodedByteSource(f *os.File, enc types.Encoding) (*transcodedByteSource, error) {
	return &transcodedByteSource{
		f:      f,
		enc:    enc,
		chunks: make(map[int64][]byte),
	}, nil
}

func (s *transcodedByteSource) decoder() transform.Transformer {
	var e *unicode.Decoder
	switch s.enc {
	case types.EncodingUTF16LE:
		e = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	default:
		e = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	}
	return e
}

// decodeAll streams the entire raw file through the UTF-16 decoder,
// calling emit for each decoded byte chunk produced. This is the
// shared engine behind both Length (to find the total decoded size)
// and chunk population. It reads through ReadAt via a section reader
// rather than seeking the shared file, so concurrent callers (parallel
// Search workers) each get their own read position.
func (s *transcodedByteSource) decodeAll(emit func(offset int64, data []byte) bool) error {
	reader := transform.NewReader(io.NewSectionReader(s.f, 0, 1<<62), s.decoder())

	var offset int64
	buf := make([]byte, 64*1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			if !emit(offset, cp) {
				return nil
			}
			offset += int64(n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return berrors.IoError("transcode", err)
		}
	}
}

func (s *transcodedByteSource) Length() (int64, error) {
	s.mu.Lock()
	if s.lenKnown {
		defer s.mu.Unlock()
		return s.totalLen, nil
	}
	s.mu.Unlock()

	var total int64
	err := s.decodeAll(func(offset int64, data []byte) bool {
		total = offset + int64(len(data))
		return true
	})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.totalLen = total
	s.lenKnown = true
	s.mu.Unlock()
	return total, nil
}

func (s *transcodedByteSource) ReadRange(lo, hi int64) ([]byte, error) {
	if hi <= lo {
		return nil, nil
	}
	out := make([]byte, 0, hi-lo)

	firstChunk := lo - lo%chunkSize
	for chunkStart := firstChunk; chunkStart < hi; chunkStart += chunkSize {
		chunk, err := s.chunkAt(chunkStart)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break // past EOF
		}
		chunkEnd := chunkStart + int64(len(chunk))

		sliceLo := lo
		if sliceLo < chunkStart {
			sliceLo = chunkStart
		}
		sliceHi := hi
		if sliceHi > chunkEnd {
			sliceHi = chunkEnd
		}
		if sliceHi <= sliceLo {
			continue
		}
		out = append(out, chunk[sliceLo-chunkStart:sliceHi-chunkStart]...)
	}
	return out, nil
}

func (s *transcodedByteSource) ReadTailFrom(offset int64) ([]byte, error) {
	length, err := s.Length()
	if err != nil {
		return nil, err
	}
	return s.ReadRange(offset, length)
}

func (s *transcodedByteSource) PrefixFingerprint(n int64) (uint64, error) {
	return prefixFingerprint(s.f, n)
}

func (s *transcodedByteSource) Close() error {
	return s.f.Close()
}

// chunkAt returns the decoded chunk starting at the given aligned
// offset, decoding and caching it (and evicting an LRU entry) if not
// already cached.
func (s *transcodedByteSource) chunkAt(chunkStart int64) ([]byte, error) {
	s.mu.Lock()
	if c, ok := s.chunks[chunkStart]; ok {
		s.touch(chunkStart)
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	var found []byte
	err := s.decodeAll(func(offset int64, data []byte) bool {
		end := offset + int64(len(data))
		if end <= chunkStart {
			return true
		}
		if offset >= chunkStart+chunkSize {
			return false
		}
		// Collect the overlap of this decode window with [chunkStart, chunkStart+chunkSize).
		lo := chunkStart
		if offset > lo {
			lo = offset
		}
		hi := chunkStart + chunkSize
		if end < hi {
			hi = end
		}
		found = append(found, data[lo-offset:hi-offset]...)
		return true
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cacheChunk(chunkStart, found)
	s.mu.Unlock()
	return found, nil
}

func (s *transcodedByteSource) cacheChunk(chunkStart int64, data []byte) {
	if _, exists := s.chunks[chunkStart]; !exists && len(s.chunks) >= maxCachedChunks {
		oldest := s.lru[0]
		s.lru = s.lru[1:]
		delete(s.chunks, oldest)
	}
	s.chunks[chunkStart] = data
	s.touch(chunkStart)
}

func (s *transcodedByteSource) touch(chunkStart int64) {
	for i, v := range s.lru {
		if v == chunkStart {
			s.lru = append(s.lru[:i], s.lru[i+1:]...)
			break
		}
	}
	s.lru = append(s.lru, chunkStart)
}
