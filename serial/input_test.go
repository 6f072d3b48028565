package serial

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputBufferDrainsThenReportsEOF(t *testing.T) {
	in := NewInputBuffer()
	in.Feed([]byte("ab"))

	b, err := in.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('a'), b)
	assert.Equal(t, 1, in.Buffered())

	b, err = in.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('b'), b)

	_, err = in.ReadByte()
	assert.ErrorIs(t, err, io.EOF)

	in.Feed([]byte("c"))
	buf := make([]byte, 4)
	n, err := in.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "c", string(buf[:n]))
}

func TestInputBufferClosed(t *testing.T) {
	in := NewInputBuffer()
	in.Feed([]byte("pending"))
	require.NoError(t, in.Close())

	_, err := in.ReadByte()
	assert.ErrorIs(t, err, ErrPortClosed)

	in.Feed([]byte("late"))
	assert.Equal(t, 0, in.Buffered())
}
