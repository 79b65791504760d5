package scanner

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/reposyncd/internal/models"
)

// Magic bytes for compression detection
var (
	xzMagic   = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	gzipMagic = []byte{0x1F, 0x8B}
)

// DetectCompression determines the compression of a tarball (package
// payload or repository database) from its magic bytes, falling back to
// the file extension when the header is inconclusive.
func DetectCompression(path string) (models.Compression, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.CompressionNone, err
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return models.CompressionNone, err
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, xzMagic):
		return models.CompressionXz, nil
	case bytes.HasPrefix(header, zstdMagic):
		return models.CompressionZstd, nil
	case bytes.HasPrefix(header, gzipMagic):
		return models.CompressionGzip, nil
	}

	return compressionFromName(filepath.Base(path)), nil
}

func compressionFromName(name string) models.Compression {
	switch {
	case strings.HasSuffix(name, ".tar.xz"):
		return models.CompressionXz
	case strings.HasSuffix(name, ".tar.zst"):
		return models.CompressionZstd
	case strings.HasSuffix(name, ".tar.gz"):
		return models.CompressionGzip
	default:
		return models.CompressionNone
	}
}
