package opendberr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_NilErrReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(Storage, "op", nil))
}

func TestIs_MatchesWrappedCode(t *testing.T) {
	err := Wrap(Vector, "vector.Search", errors.New("dimension mismatch"))
	assert.True(t, Is(err, Vector))
	assert.False(t, Is(err, Codec))
}

func TestIs_FalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), Storage))
}

func TestCodeOf(t *testing.T) {
	err := New(Transaction, "txn.Commit", "conflict")
	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, Transaction, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestError_UnwrapsUnderlyingErr(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Storage, "storage.Put", cause)
	assert.ErrorIs(t, err, cause)
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf(InvalidInput, "records.Insert", "embedding length %d does not match %d", 3, 4)
	assert.Contains(t, err.Error(), "3")
	assert.Contains(t, err.Error(), "4")
}
