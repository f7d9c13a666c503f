package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compression applied to encoded records.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZSTD Compression = 2
)

var ErrCorruptBlock = errors.New("wire: corrupt block")

// ParseCompression maps a configuration value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("wire: unknown compression %q", s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "none"
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Block layout: [raw size uint32][packed size uint32][data]. A packed size of
// zero marks a block stored as is.
const blockHeaderSize = 8

// maxRatio is the packed/raw ratio above which a block is stored as is.
const maxRatio = 0.9

func compressBlock(data []byte, c Compression) ([]byte, error) {
	var (
		packed []byte
		err    error
	)
	switch c {
	case CompressionLZ4:
		packed = make([]byte, lz4.CompressBlockBound(len(data)))
		var n int
		n, err = lz4.CompressBlock(data, packed, nil)
		packed = packed[:n]
	case CompressionZSTD:
		var enc *zstd.Encoder
		if enc, err = getZstdEncoder(); err == nil {
			packed = enc.EncodeAll(data, nil)
			zstdEncoderPool.Put(enc)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("wire: compress %s: %w", c, err)
	}

	block := make([]byte, blockHeaderSize, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(block[0:], uint32(len(data)))
	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*maxRatio {
		return append(block, data...), nil
	}
	binary.LittleEndian.PutUint32(block[4:], uint32(len(packed)))
	return append(block, packed...), nil
}

func decompressBlock(block []byte, c Compression) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("block of %d bytes: %w", len(block), ErrCorruptBlock)
	}
	rawSize := binary.LittleEndian.Uint32(block[0:])
	packedSize := binary.LittleEndian.Uint32(block[4:])
	body := block[blockHeaderSize:]

	if packedSize == 0 {
		if uint32(len(body)) != rawSize {
			return nil, fmt.Errorf("stored block size %d, header %d: %w", len(body), rawSize, ErrCorruptBlock)
		}
		return body, nil
	}
	if uint32(len(body)) != packedSize {
		return nil, fmt.Errorf("packed block size %d, header %d: %w", len(body), packedSize, ErrCorruptBlock)
	}

	raw := make([]byte, rawSize)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, fmt.Errorf("wire: lz4: %w", err)
		}
		if uint32(n) != rawSize {
			return nil, fmt.Errorf("lz4 size %d, header %d: %w", n, rawSize, ErrCorruptBlock)
		}
		return raw, nil
	case CompressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("wire: zstd: %w", err)
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, raw[:0])
		if err != nil {
			return nil, fmt.Errorf("wire: zstd: %w", err)
		}
		if uint32(len(out)) != rawSize {
			return nil, fmt.Errorf("zstd size %d, header %d: %w", len(out), rawSize, ErrCorruptBlock)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("packed block without compression: %w", ErrCorruptBlock)
	}
}
