// Package blob frames the persisted dataset, tile, meta and index files:
// a short header with a kind tag and an xxhash checksum, followed by a
// zstd-compressed gob payload.
package blob

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

type Kind byte

const (
	KindDataset  Kind = 1
	KindMeta     Kind = 2
	KindShortcut Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindDataset:
		return "dataset"
	case KindMeta:
		return "meta"
	case KindShortcut:
		return "shortcut"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

var magic = [4]byte{'T', 'Z', 'W', '1'}

const headerLen = len(magic) + 1 + 8

var (
	ErrShortBlob = errors.New("blob too short")
	ErrBadMagic  = errors.New("blob magic mismatch")
	ErrChecksum  = errors.New("blob checksum mismatch")
)

// Encoders are safe for concurrent use when only EncodeAll/DecodeAll are called.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Marshal gob-encodes v and frames it as kind.
func Marshal(kind Kind, v any) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(v); err != nil {
		return nil, fmt.Errorf("blob encode %s: %w", kind, err)
	}
	payload := encoder.EncodeAll(raw.Bytes(), nil)

	out := make([]byte, headerLen, headerLen+len(payload))
	copy(out, magic[:])
	out[len(magic)] = byte(kind)
	binary.BigEndian.PutUint64(out[len(magic)+1:], xxhash.Sum64(payload))
	return append(out, payload...), nil
}

// Unmarshal verifies the frame and decodes the payload into v.
func Unmarshal(kind Kind, data []byte, v any) error {
	if len(data) < headerLen {
		return fmt.Errorf("blob %s: %w (%d bytes)", kind, ErrShortBlob, len(data))
	}
	if !bytes.Equal(data[:len(magic)], magic[:]) {
		return fmt.Errorf("blob %s: %w", kind, ErrBadMagic)
	}
	if got := Kind(data[len(magic)]); got != kind {
		return fmt.Errorf("blob: expected %s, found %s", kind, got)
	}
	payload := data[headerLen:]
	if want := binary.BigEndian.Uint64(data[len(magic)+1 : headerLen]); xxhash.Sum64(payload) != want {
		return fmt.Errorf("blob %s: %w", kind, ErrChecksum)
	}
	raw, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return fmt.Errorf("blob %s decompress: %w", kind, err)
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("blob decode %s: %w", kind, err)
	}
	return nil
}
