package cryptcodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Compressor compresses and decompresses opaque byte payloads.
// Implementations must be safe for concurrent use.
type Compressor interface {
	Compress(plaintext []byte) ([]byte, error)
	Decompress(compressed []byte) ([]byte, error)
}

// ZlibCompressor implements Compressor using klauspost/compress's
// drop-in, faster zlib codec rather than stdlib compress/zlib — the same
// library the teacher pulls in for its log/metric pipelines.
type ZlibCompressor struct {
	level int
}

// NewZlibCompressor returns a ZlibCompressor at the given compression
// level (see klauspost/compress/zlib level constants); 0 selects the
// library's default.
func NewZlibCompressor(level int) *ZlibCompressor {
	if level == 0 {
		level = zlib.DefaultCompression
	}
	return &ZlibCompressor{level: level}
}

// Compress zlib-deflates plaintext.
func (z *ZlibCompressor) Compress(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, z.level)
	if err != nil {
		return nil, fmt.Errorf("cryptcodec: creating zlib writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("cryptcodec: compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("cryptcodec: flushing compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. A corrupt or truncated stream surfaces as
// ErrDataIntegrity, matching the cipher's failure semantics — either way
// the stored state cannot be trusted.
func (z *ZlibCompressor) Decompress(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}
	return out, nil
}
