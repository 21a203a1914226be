package adapters

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type Compression string

const (
	CompressionNone Compression = ""
	CompressionGZIP Compression = "gz"
	CompressionXZ   Compression = "xz"
	CompressionZSTD Compression = "zst"
)

// indexCompressions are written next to every uncompressed Packages file.
var indexCompressions = []Compression{CompressionGZIP, CompressionXZ}

func compressionForExtension(ext string) (Compression, bool) {
	switch ext {
	case "":
		return CompressionNone, true
	case ".gz":
		return CompressionGZIP, true
	case ".xz":
		return CompressionXZ, true
	case ".zst":
		return CompressionZSTD, true
	default:
		return CompressionNone, false
	}
}

func (c Compression) Extension() string {
	if c == CompressionNone {
		return ""
	}
	return "." + string(c)
}

// Compress encodes data. level applies to gzip only and falls back to
// gzip.DefaultCompression when out of range.
func (c Compression) Compress(data []byte, level int) ([]byte, error) {
	switch c {
	case CompressionGZIP:
		if level < gzip.HuffmanOnly || level > gzip.BestCompression {
			level = gzip.DefaultCompression
		}
		var buf bytes.Buffer
		compressor, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, err
		}
		if _, err := compressor.Write(data); err != nil {
			return nil, err
		}
		if err := compressor.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionXZ:
		var buf bytes.Buffer
		compressor, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := compressor.Write(data); err != nil {
			return nil, err
		}
		if err := compressor.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZSTD:
		var buf bytes.Buffer
		compressor, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := compressor.Write(data); err != nil {
			compressor.Close()
			return nil, err
		}
		if err := compressor.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

// Decompress wraps r in a decoder. The returned closer releases decoder
// resources and does not close r.
func (c Compression) Decompress(r io.Reader) (io.Reader, func(), error) {
	switch c {
	case CompressionGZIP:
		decoder, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return decoder, func() { decoder.Close() }, nil
	case CompressionXZ:
		decoder, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return decoder, func() {}, nil
	case CompressionZSTD:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return decoder, decoder.Close, nil
	case CompressionNone:
		return r, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown compression %q", c)
	}
}
