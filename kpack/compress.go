package kpack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compression is the algorithm applied to each block of a pack file. It is
// selected by the format tag at the start of the file.
type Compression uint8

const (
	UnknownCompression Compression = 0
	NoCompression      Compression = 1
	Zlib               Compression = 2
	Zstd               Compression = 3
)

// maxBlockLen bounds the decompressed size of a single block.
const maxBlockLen = 1 << 30

var formatTags = map[Compression]string{
	Zlib:          "kpack",
	Zstd:          "kpack.zst",
	NoCompression: "kpack.raw",
}

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompression maps a name accepted on the command line to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "raw":
		return NoCompression, nil
	case "zlib", "":
		return Zlib, nil
	case "zstd":
		return Zstd, nil
	}
	return UnknownCompression, fmt.Errorf("unknown compression %q", s)
}

func compressionFromTag(tag string) (Compression, bool) {
	for c, t := range formatTags {
		if t == tag {
			return c, true
		}
	}
	return UnknownCompression, false
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBlockLen))
)

func compressBlock(c Compression, raw []byte) ([]byte, error) {
	switch c {
	case NoCompression:
		return raw, nil
	case Zlib:
		var b bytes.Buffer
		w, err := zlib.NewWriterLevel(&b, zlib.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	case Zstd:
		return zstdEncoder.EncodeAll(raw, nil), nil
	}
	return nil, fmt.Errorf("%w: compression %d", ErrMisuse, c)
}

func decompressBlock(c Compression, data []byte, rawLen int) ([]byte, error) {
	var raw []byte
	switch c {
	case NoCompression:
		raw = data
	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		raw, err = io.ReadAll(io.LimitReader(r, int64(rawLen)+1))
		if err != nil {
			return nil, err
		}
	case Zstd:
		if len(data) == 0 {
			break
		}
		var err error
		raw, err = zstdDecoder.DecodeAll(data, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("compression %d", c)
	}
	if len(raw) != rawLen {
		return nil, fmt.Errorf("block holds %d bytes, header says %d", len(raw), rawLen)
	}
	return raw, nil
}

// blockHeaderLen is the size prefix of every block: compressed then raw length.
const blockHeaderLen = 8

// writeBlock compresses raw and writes it with its size prefix.
func writeBlock(w io.Writer, c Compression, raw []byte) error {
	data, err := compressBlock(c, raw)
	if err != nil {
		return err
	}
	var hdr [blockHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(raw)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	blockBytes.WithLabelValues("written").Add(float64(blockHeaderLen + len(data)))
	return err
}

// readBlockHeader parses a block size prefix, limiting the compressed length to limit.
func readBlockHeader(hdr []byte, limit int64) (int, int, error) {
	dataLen := binary.LittleEndian.Uint32(hdr[0:4])
	rawLen := binary.LittleEndian.Uint32(hdr[4:8])
	if int64(dataLen) > limit {
		return 0, 0, formatError("block of %d bytes overruns its section of %d", dataLen, limit)
	}
	if rawLen > maxBlockLen {
		return 0, 0, fmt.Errorf("%w: block claims %d uncompressed bytes", ErrCorruption, rawLen)
	}
	return int(dataLen), int(rawLen), nil
}

// readBlock reads one size-prefixed block from r and decompresses it.
// Truncation is a format error, bad contents are corruption.
func readBlock(r io.Reader, c Compression, limit int64) ([]byte, error) {
	var hdr [blockHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, readErr("block header", err)
	}
	dataLen, rawLen, err := readBlockHeader(hdr[:], limit)
	if err != nil {
		return nil, err
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, readErr("block", err)
	}
	blockBytes.WithLabelValues("read").Add(float64(blockHeaderLen + dataLen))
	raw, err := decompressBlock(c, data, rawLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	return raw, nil
}
