package compress

import (
	"compress/gzip"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Algorithm string

const (
	Gzip Algorithm = "gzip"
	Lz4  Algorithm = "lz4"
	Zstd Algorithm = "zstd"
	None Algorithm = "none"
)

// Parse normalizes a user-supplied codec name. The empty string means Gzip,
// which is what every mysqldump-era backup tool defaults to.
func Parse(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gz", "gzip":
		return Gzip, nil
	case "lz4":
		return Lz4, nil
	case "zst", "zstd":
		return Zstd, nil
	case "none", "raw":
		return None, nil
	default:
		return "", ErrUnsupportedAlgo(s)
	}
}

// Extension returns the filename suffix for the algorithm, including the dot.
func Extension(algo Algorithm) string {
	switch algo {
	case Gzip:
		return ".gz"
	case Lz4:
		return ".lz4"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// DetectAlgorithm infers the codec from a filename suffix.
func DetectAlgorithm(name string) Algorithm {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return Gzip
	case strings.HasSuffix(name, ".lz4"):
		return Lz4
	case strings.HasSuffix(name, ".zst"):
		return Zstd
	default:
		return None
	}
}

// NewWriter wraps w with the streaming codec for algo. The caller must Close
// the returned writer to flush codec trailers; closing it does not close w.
func NewWriter(w io.Writer, algo Algorithm) (io.WriteCloser, error) {
	switch algo {
	case Gzip, "":
		return gzip.NewWriter(w), nil
	case Lz4:
		return lz4.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w)
	case None:
		return nopWriteCloser{w}, nil
	default:
		return nil, ErrUnsupportedAlgo(algo)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type ErrUnsupportedAlgo Algorithm

func (e ErrUnsupportedAlgo) Error() string {
	return "unsupported compression algorithm: " + string(e)
}
