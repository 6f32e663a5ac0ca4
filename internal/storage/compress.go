package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
)

// zstdMagic is the frame header every zstd stream begins with.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// CompressedStore compresses logs with zstd before handing them to the
// wrapped Store. Reads accept both compressed and plain data, so logs
// written before compression was enabled stay readable.
type CompressedStore struct {
	Store

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// MaxDecodedSize caps the decompressed size of one log.
const MaxDecodedSize = 256 << 20

// NewCompressedStore wraps inner with zstd compression.
func NewCompressedStore(inner Store) (*CompressedStore, error) {
	return newCompressedStore(inner, MaxDecodedSize)
}

func newCompressedStore(inner Store, maxDecoded uint64) (*CompressedStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(maxDecoded),
		zstd.WithDecoderMaxWindow(maxDecoded),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &CompressedStore{Store: inner, encoder: enc, decoder: dec}, nil
}

func (s *CompressedStore) Read(ctx context.Context, location string) ([]byte, error) {
	data, err := s.Store.Read(ctx, location)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(data) {
		return data, nil
	}
	// The bytes were read fine; a frame that does not decode is a bad log.
	out, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, &fault.Error{
			Code: fault.MalformedLog,
			Op:   "storage.read",
			Err:  fmt.Errorf("decompressing %s: %w", location, err),
		}
	}
	return out, nil
}

func (s *CompressedStore) Write(ctx context.Context, location string, data []byte) error {
	return s.Store.Write(ctx, location, s.encoder.EncodeAll(data, nil))
}

func (s *CompressedStore) Close() error {
	s.decoder.Close()
	_ = s.encoder.Close()
	return s.Store.Close()
}

// IsCompressed reports whether data starts with a zstd frame header.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}
