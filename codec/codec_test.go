package codec

import (
	"testing"

	"github.com/opendb-io/opendb/opendberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string
	N    int
}

func TestEncodeDecodeJSON_RoundTrip(t *testing.T) {
	in := sample{Name: "m1", N: 7}
	frame, err := EncodeJSON(in)
	require.NoError(t, err)

	out, err := DecodeJSON[sample](frame)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeJSON_Deterministic(t *testing.T) {
	in := sample{Name: "m1", N: 7}
	a, err := EncodeJSON(in)
	require.NoError(t, err)
	b, err := EncodeJSON(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeJSON_RejectsShortFrame(t *testing.T) {
	_, err := DecodeJSON[sample]([]byte{1, 2})
	assert.Error(t, err)
	assert.True(t, opendberr.Is(err, opendberr.Codec))
}

func TestDecodeJSON_RejectsCorruptedChecksum(t *testing.T) {
	frame, err := EncodeJSON(sample{Name: "m1", N: 7})
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xFF // corrupt a payload byte without touching the CRC

	_, err = DecodeJSON[sample](frame)
	assert.Error(t, err)
	assert.True(t, opendberr.Is(err, opendberr.Codec))
}

func TestDecodeJSON_RejectsUnsupportedVersion(t *testing.T) {
	frame, err := EncodeJSON(sample{Name: "m1", N: 7})
	require.NoError(t, err)
	frame[0] = 99

	_, err = DecodeJSON[sample](frame)
	assert.Error(t, err)
}

func TestEncodeDecodeVector_RoundTrip(t *testing.T) {
	in := []float32{0.1, -0.2, 3.5, 0}
	blob := EncodeVector(in)
	out, err := DecodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeVector_RejectsMisalignedLength(t *testing.T) {
	_, err := DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
	assert.True(t, opendberr.Is(err, opendberr.Codec))
}

func TestEncodeVector_Empty(t *testing.T) {
	assert.Empty(t, EncodeVector(nil))
	out, err := DecodeVector(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
