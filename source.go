package corrstream

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/golang/snappy"
)

// RecordSource abstracts where the upstream NDJSON record stream is read
// from. This allows the poller to tail a local file, an in-memory buffer in
// tests, or an object in S3-compatible storage.
type RecordSource interface {
	// Read returns the bytes appended after offset plus the new offset.
	// An empty slice with a nil error means no new data. Failures are
	// reported as *SourceError.
	Read(ctx context.Context, offset int64) ([]byte, int64, error)

	// Close releases any resources.
	Close() error
}

// Ensure interfaces are implemented.
var (
	_ RecordSource = (*FileSource)(nil)
	_ RecordSource = (*MemorySource)(nil)
	_ RecordSource = (*S3Source)(nil)
)

// FileSource tails a local NDJSON file. Paths ending in ".snappy" are
// treated as snappy-compressed segments: the whole segment is decompressed
// each read and the offset applies to the decompressed bytes.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading from the given path. The file may
// not exist yet; reads report SourceUnavailable until it does.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Read(ctx context.Context, offset int64) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, offset, err
	}

	if strings.HasSuffix(f.path, ".snappy") {
		return f.readCompressed(offset)
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, offset, newSourceError("cannot open record source", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, newSourceError("cannot stat record source", f.path, err)
	}
	size := info.Size()
	if size < offset {
		// The file was truncated or rotated; start over.
		offset = 0
	}
	if size == offset {
		return nil, offset, nil
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, newSourceError("cannot seek record source", f.path, err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, offset, newSourceError("cannot read record source", f.path, err)
	}
	return data, offset + int64(len(data)), nil
}

func (f *FileSource) readCompressed(offset int64) ([]byte, int64, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, offset, newSourceError("cannot read record segment", f.path, err)
	}
	data, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, offset, newSourceError("cannot decompress record segment", f.path, err)
	}
	if int64(len(data)) <= offset {
		return nil, offset, nil
	}
	return data[offset:], int64(len(data)), nil
}

func (f *FileSource) Close() error { return nil }

// MemorySource is an in-memory record source for tests and manual feeds.
type MemorySource struct {
	mu   sync.Mutex
	buf  []byte
	fail error
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// Append adds bytes to the stream.
func (m *MemorySource) Append(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = append(m.buf, data...)
}

// AppendLine adds one record line, terminating it with a newline.
func (m *MemorySource) AppendLine(line string) {
	m.Append(append([]byte(line), '\n'))
}

// SetError makes subsequent reads fail with a SourceError wrapping err;
// pass nil to restore normal reads.
func (m *MemorySource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *MemorySource) Read(_ context.Context, offset int64) ([]byte, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, offset, newSourceError("memory source read failed", "", m.fail)
	}
	if int64(len(m.buf)) <= offset {
		return nil, offset, nil
	}
	data := make([]byte, int64(len(m.buf))-offset)
	copy(data, m.buf[offset:])
	return data, int64(len(m.buf)), nil
}

func (m *MemorySource) Close() error { return nil }

// splitLines separates complete NDJSON lines from a chunk. consumed is the
// number of bytes covered by complete lines (including their newlines); any
// trailing partial line is left for the next cycle. Blank lines are skipped.
func splitLines(data []byte) (lines [][]byte, consumed int64) {
	start := 0
	for i, b := range data {
		if b != '\n' {
			continue
		}
		line := data[start:i]
		// Tolerate CRLF.
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if len(line) > 0 {
			lines = append(lines, line)
		}
		start = i + 1
	}
	return lines, int64(start)
}
