package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ralt/reposyncd/internal/models"
	"github.com/ulikunitz/xz"
)

// Compress compresses data with the given codec
func Compress(data []byte, c models.Compression) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, c)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// NewWriter returns a writer compressing into w. The caller must Close it
// to flush the stream.
func NewWriter(w io.Writer, c models.Compression) (io.WriteCloser, error) {
	switch c {
	case models.CompressionZstd:
		return zstd.NewWriter(w)
	case models.CompressionXz:
		return xz.NewWriter(w)
	case models.CompressionGzip:
		return gzip.NewWriter(w), nil
	case models.CompressionNone:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %q", c)
	}
}

// NewReader returns a reader decompressing r
func NewReader(r io.Reader, c models.Compression) (io.ReadCloser, error) {
	switch c {
	case models.CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case models.CompressionXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case models.CompressionGzip:
		return gzip.NewReader(r)
	case models.CompressionNone:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %q", c)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
