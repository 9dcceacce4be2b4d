// Package codec implements OpenDB's stable, versioned binary encoding for
// records and edge lists, and the fixed-endianness packing used for raw
// vector blobs.
//
// Frame layout (grounded on the length-prefixed, CRC-checked WAL framing
// used elsewhere in the pack for durable log entries):
//
//	[version:1][crc32:4][payload...]
//
// The payload is the JSON encoding of the caller's value. JSON gives us
// forward-compatible decoding for free (unknown/added fields round-trip or
// are ignored) and is deterministic for a fixed Go struct: encoding/json
// sorts map keys and preserves struct field order, so EncodeJSON of equal
// inputs always produces identical bytes. Decoders never panic: malformed
// input is always reported as an error.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"math"

	"github.com/opendb-io/opendb/opendberr"
)

// CurrentVersion is the version tag written by EncodeJSON.
const CurrentVersion byte = 1

const frameHeaderSize = 1 + 4 // version + crc32

// EncodeJSON frames v's JSON encoding with a version tag and CRC32 checksum.
func EncodeJSON[T any](v T) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Codec, "codec.EncodeJSON", err)
	}
	return encodeFrame(CurrentVersion, payload), nil
}

// DecodeJSON validates the frame and unmarshals its payload into a T.
func DecodeJSON[T any](frame []byte) (T, error) {
	var zero T
	payload, _, err := decodeFrame(frame)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return zero, opendberr.Wrap(opendberr.Codec, "codec.DecodeJSON", err)
	}
	return v, nil
}

func encodeFrame(version byte, payload []byte) []byte {
	crc := crc32.ChecksumIEEE(payload)
	out := make([]byte, 0, frameHeaderSize+len(payload))
	out = append(out, version)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)
	out = append(out, payload...)
	return out
}

func decodeFrame(frame []byte) (payload []byte, version byte, err error) {
	if len(frame) < frameHeaderSize {
		return nil, 0, opendberr.New(opendberr.Codec, "codec.decodeFrame", "frame too short")
	}
	version = frame[0]
	if version != CurrentVersion {
		return nil, 0, opendberr.Newf(opendberr.Codec, "codec.decodeFrame", "unsupported frame version %d", version)
	}
	wantCRC := binary.BigEndian.Uint32(frame[1:5])
	payload = frame[frameHeaderSize:]
	gotCRC := crc32.ChecksumIEEE(payload)
	if gotCRC != wantCRC {
		return nil, 0, opendberr.New(opendberr.Codec, "codec.decodeFrame", "checksum mismatch: corrupted frame")
	}
	return payload, version, nil
}

// EncodeVector packs a float32 slice into a fixed-endianness byte blob.
func EncodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.BigEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// DecodeVector unpacks a byte blob produced by EncodeVector. Rejects blobs
// whose length isn't a multiple of 4.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, opendberr.New(opendberr.Codec, "codec.DecodeVector", "blob length not a multiple of 4")
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
