package audio

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOnPCMEmitsFixedChunksAndFlushesRemainder(t *testing.T) {
	c := newCapture(Device{ID: "elgato"})

	frame := bytes.Repeat([]byte{1}, chunkSizeBytes+100)
	n, err := c.onPCM(frame)
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
	require.Equal(t, int64(len(frame)), c.BytesCaptured())

	require.Len(t, <-c.Chunks(), chunkSizeBytes)

	require.NoError(t, c.Stop())
	require.Len(t, <-c.Chunks(), 100)

	_, open := <-c.Chunks()
	require.False(t, open)
}

func TestOnPCMAfterStopReturnsEOF(t *testing.T) {
	c := newCapture(Device{ID: "elgato"})
	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())

	_, err := c.onPCM([]byte{1, 2})
	require.ErrorIs(t, err, io.EOF)
}

func TestOnPCMIgnoresEmptyBuffer(t *testing.T) {
	c := newCapture(Device{ID: "elgato"})
	n, err := c.onPCM(nil)
	require.NoError(t, err)
	require.Zero(t, n)
}
