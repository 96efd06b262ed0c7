package block

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/otree/internal/hash"
)

// Block file layout:
//
//	[magic:4]["OTB1"]
//	[version:2][compression:1][codecNameLen:1][codecName:N]
//	[rawLen:8][payloadLen:8][payload][payloadCRC32C:4]
//	[footer JSON][footerLen:4][tail magic:4 "OTBF"]
//
// The footer is the Tags JSON, locatable from the end of the file so
// that tags can be recovered from the physical file even when the
// metadata log lost them (legacy conversion fallback).
var (
	blockMagic   = [4]byte{'O', 'T', 'B', '1'}
	footerMagic  = [4]byte{'O', 'T', 'B', 'F'}
	blockVersion = uint16(1)
)

// ErrCorrupt is returned when a block fails checksum or structure
// validation.
var ErrCorrupt = errors.New("block: corrupt file")

// Compression selects the payload compression of a block file.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// String returns a stable name for the compression variant.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Incompressible; lz4 signals this with n == 0.
			return nil, errIncompressible
		}
		return buf[:n], nil
	default:
		return nil, fmt.Errorf("block: unknown compression %d", c)
	}
}

var errIncompressible = errors.New("block: incompressible payload")

func decompress(c Compression, data []byte, rawLen int64) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdDecoder.DecodeAll(data, make([]byte, 0, rawLen))
	case CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		return out[:n], nil
	default:
		return nil, fmt.Errorf("block: unknown compression %d", c)
	}
}

// encodeBlock assembles a full block file image.
func encodeBlock(codecName string, compression Compression, payload []byte, footer []byte) ([]byte, error) {
	raw := payload
	compressed, err := compress(compression, payload)
	if errors.Is(err, errIncompressible) {
		compression = CompressionNone
		compressed = raw
	} else if err != nil {
		return nil, err
	}

	size := 4 + 2 + 1 + 1 + len(codecName) + 8 + 8 + len(compressed) + 4 + len(footer) + 4 + 4
	buf := make([]byte, 0, size)

	buf = append(buf, blockMagic[:]...)
	var fixed [4]byte
	binary.LittleEndian.PutUint16(fixed[0:2], blockVersion)
	fixed[2] = byte(compression)
	fixed[3] = byte(len(codecName))
	buf = append(buf, fixed[:]...)
	buf = append(buf, codecName...)

	var lens [16]byte
	binary.LittleEndian.PutUint64(lens[0:8], uint64(len(raw)))
	binary.LittleEndian.PutUint64(lens[8:16], uint64(len(compressed)))
	buf = append(buf, lens[:]...)
	buf = append(buf, compressed...)

	var crc [4]byte
	binary.LittleEndian.PutUint32(crc[:], hash.CRC32C(compressed))
	buf = append(buf, crc[:]...)

	buf = append(buf, footer...)
	var tail [8]byte
	binary.LittleEndian.PutUint32(tail[0:4], uint32(len(footer)))
	copy(tail[4:8], footerMagic[:])
	buf = append(buf, tail[:]...)

	return buf, nil
}

// decodeBlock validates a block image and returns the raw payload, the
// codec name it was encoded with, and the footer bytes.
func decodeBlock(data []byte) (payload []byte, codecName string, footer []byte, err error) {
	if len(data) < 4+4+16+4+8 {
		return nil, "", nil, ErrCorrupt
	}
	if [4]byte(data[0:4]) != blockMagic {
		return nil, "", nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != blockVersion {
		return nil, "", nil, fmt.Errorf("block: unsupported version %d", v)
	}
	compression := Compression(data[6])
	nameLen := int(data[7])
	pos := 8
	if len(data) < pos+nameLen+16 {
		return nil, "", nil, ErrCorrupt
	}
	codecName = string(data[pos : pos+nameLen])
	pos += nameLen

	rawLen := int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
	payloadLen := int(binary.LittleEndian.Uint64(data[pos+8 : pos+16]))
	pos += 16
	if len(data) < pos+payloadLen+4 {
		return nil, "", nil, ErrCorrupt
	}
	compressed := data[pos : pos+payloadLen]
	pos += payloadLen

	wantCRC := binary.LittleEndian.Uint32(data[pos : pos+4])
	if hash.CRC32C(compressed) != wantCRC {
		return nil, "", nil, fmt.Errorf("%w: payload checksum mismatch", ErrCorrupt)
	}

	footer, err = decodeFooter(data)
	if err != nil {
		return nil, "", nil, err
	}

	payload, err = decompress(compression, compressed, rawLen)
	if err != nil {
		return nil, "", nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return payload, codecName, footer, nil
}

// decodeFooter extracts the footer bytes from the tail of a block image.
// It needs only the end of the file, which is what makes the tag
// fallback cheap on remote stores.
func decodeFooter(tail []byte) ([]byte, error) {
	if len(tail) < 8 {
		return nil, ErrCorrupt
	}
	if [4]byte(tail[len(tail)-4:]) != footerMagic {
		return nil, fmt.Errorf("%w: bad footer magic", ErrCorrupt)
	}
	footerLen := int(binary.LittleEndian.Uint32(tail[len(tail)-8 : len(tail)-4]))
	if footerLen < 0 || len(tail) < 8+footerLen {
		return nil, ErrCorrupt
	}
	return tail[len(tail)-8-footerLen : len(tail)-8], nil
}
