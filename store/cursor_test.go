package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &Cursor{T: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), ID: 42}
	encoded := EncodeCursor(in)
	require.NotEmpty(t, encoded)

	out, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.True(t, in.T.Equal(out.T))
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodeCursorEmpty(t *testing.T) {
	out, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, out)

	assert.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorGarbage(t *testing.T) {
	for _, bad := range []string{
		"not base64 at all!",
		"bm90IGpzb24=", // valid base64, not json
		"e30=",         // {} decodes to a zero cursor
		"W10=",         // []
	} {
		_, err := DecodeCursor(bad)
		assert.ErrorIs(t, err, ErrValidation, "input %q", bad)
	}
}
