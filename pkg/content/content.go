// Package content normalizes upload payloads: text, byte slices, buffers and
// blob-like values. A Loader reports its byte length up front and only reads
// blob data into memory when Load is called.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	// TextContentType is the default type of string content.
	TextContentType = "text/plain; charset=utf-8"
	// BinaryContentType is the default type of everything else.
	BinaryContentType = "application/octet-stream"
)

// Blob is a sized value that can be opened for reading, like a file on disk.
type Blob interface {
	Size() int64
	Type() string
	Open() (io.ReadCloser, error)
}

// Loader wraps a payload of any supported representation.
type Loader struct {
	contentType string
	wasString   bool
	size        int64

	blob Blob

	mu     sync.Mutex
	loaded []byte
	done   bool
}

// New wraps data. An empty contentType picks the representation's default.
func New(data any, contentType string) (*Loader, error) {
	l := &Loader{contentType: contentType}
	switch v := data.(type) {
	case string:
		l.wasString = true
		l.setBytes([]byte(v))
		if l.contentType == "" {
			l.contentType = TextContentType
		}
	case []byte:
		l.setBytes(v)
	case *bytes.Buffer:
		if v == nil {
			return nil, fmt.Errorf("content: nil buffer")
		}
		l.setBytes(v.Bytes())
	case Blob:
		if v == nil {
			return nil, fmt.Errorf("content: nil blob")
		}
		l.blob = v
		l.size = v.Size()
		if l.contentType == "" {
			l.contentType = v.Type()
		}
	default:
		return nil, fmt.Errorf("content: unsupported type %T", data)
	}
	if l.contentType == "" {
		l.contentType = BinaryContentType
	}
	return l, nil
}

func (l *Loader) setBytes(b []byte) {
	l.loaded = b
	l.size = int64(len(b))
	l.done = true
}

// ByteLength is the payload size in bytes.
func (l *Loader) ByteLength() int64 { return l.size }

// WasString reports whether the payload was text.
func (l *Loader) WasString() bool { return l.wasString }

// ContentType is the explicit or default media type.
func (l *Loader) ContentType() string { return l.contentType }

// Load materializes the payload. The result is cached and later calls
// return the same bytes.
func (l *Loader) Load(ctx context.Context) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return l.loaded, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := l.blob.Open()
	if err != nil {
		return nil, fmt.Errorf("content: open blob: %w", err)
	}
	defer rc.Close()

	buf := bytes.NewBuffer(make([]byte, 0, l.size))
	if _, err := io.Copy(buf, readerWithContext{ctx: ctx, r: rc}); err != nil {
		return nil, fmt.Errorf("content: read blob: %w", err)
	}
	l.loaded = buf.Bytes()
	l.done = true
	return l.loaded, nil
}

// Open returns a fresh reader over the payload without loading blob data
// into memory.
func (l *Loader) Open() (io.ReadCloser, error) {
	l.mu.Lock()
	done, loaded := l.done, l.loaded
	l.mu.Unlock()
	if done {
		return io.NopCloser(bytes.NewReader(loaded)), nil
	}
	return l.blob.Open()
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

type fileBlob struct {
	path string
	size int64
	typ  string
}

// FileBlob stats path and returns a blob reading from it.
func FileBlob(path, contentType string) (Blob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("content: %s is a directory", path)
	}
	if contentType == "" {
		contentType = guessType(path)
	}
	return &fileBlob{path: path, size: info.Size(), typ: contentType}, nil
}

func (f *fileBlob) Size() int64                  { return f.size }
func (f *fileBlob) Type() string                 { return f.typ }
func (f *fileBlob) Open() (io.ReadCloser, error) { return os.Open(f.path) }

func guessType(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".txt"):
		return TextContentType
	default:
		return BinaryContentType
	}
}

// IsText reports whether a response of contentType should be decoded as
// text: absent, text/* or JSON.
func IsText(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text") || strings.HasPrefix(ct, "application/json")
}
