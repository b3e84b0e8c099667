package rasterwriter

import (
	"bytes"
	"compress/lzw"

	"github.com/klauspost/compress/flate"

	"github.com/pspoerri/demosaic/internal/demoerr"
)

// Compression is the --tif-compress CLI enum of spec.md §6.
type Compression int

const (
	CompressNone Compression = iota
	CompressLZW
	CompressDeflate
	CompressPackbits
)

// ParseCompression parses a --tif-compress value.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "None":
		return CompressNone, nil
	case "LZW":
		return CompressLZW, nil
	case "Deflate":
		return CompressDeflate, nil
	case "Packbits":
		return CompressPackbits, nil
	default:
		return 0, demoerr.Config("unknown --tif-compress value %q (supported: None, LZW, Deflate, Packbits)", s)
	}
}

// encode compresses a tile's raw sample bytes per the selected codec.
// Deflate is backed by klauspost/compress/flate (the DOMAIN STACK's
// pick, noticeably faster than the stdlib compress/flate it wraps);
// LZW stays on the standard library since no pack example wires its own
// TIFF-flavored LZW; Packbits has no library anywhere in the pack or the
// stdlib, so it is a small hand-rolled run-length encoder (see DESIGN.md).
func (c Compression) encode(data []byte) ([]byte, error) {
	switch c {
	case CompressNone:
		return data, nil
	case CompressLZW:
		var buf bytes.Buffer
		w := lzw.NewWriter(&buf, lzw.MSB, 8)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressDeflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressPackbits:
		return packbitsEncode(data), nil
	default:
		return nil, demoerr.Internal("unknown compression codec %d", c)
	}
}

// packbitsEncode is the classic TIFF PackBits run-length scheme: a literal
// run is a length byte 0..127 (n+1 following literal bytes), a repeat run
// is a length byte -1..-127 (257-n copies of the following byte), 128 is
// a no-op skipped here since we never emit it.
func packbitsEncode(data []byte) []byte {
	var out bytes.Buffer
	i := 0
	for i < len(data) {
		runLen := 1
		for i+runLen < len(data) && runLen < 128 && data[i+runLen] == data[i] {
			runLen++
		}
		if runLen >= 2 {
			out.WriteByte(byte(257 - runLen))
			out.WriteByte(data[i])
			i += runLen
			continue
		}

		litStart := i
		i++
		for i < len(data) && i-litStart < 128 {
			if i+1 < len(data) && data[i] == data[i+1] {
				break
			}
			i++
		}
		litLen := i - litStart
		out.WriteByte(byte(litLen - 1))
		out.Write(data[litStart:i])
	}
	return out.Bytes()
}
