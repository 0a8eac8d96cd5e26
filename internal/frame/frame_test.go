package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := wire.NewChunkData(4, []byte("chunk payload"))

	require.NoError(t, WriteMessage(&buf, msg))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestReadMessageExactlyOneFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, wire.NewAck()))
	require.NoError(t, WriteMessage(&buf, wire.NewErrorMessage("boom")))

	first, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, wire.ControlAck, first.Header.Control)

	second, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, wire.ControlError, second.Header.Control)
	assert.Equal(t, "boom", second.Header.ErrorText)
}

func TestReadMessageEOFOnEmpty(t *testing.T) {
	_, err := ReadMessage(&bytes.Buffer{})
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	r := bytes.NewReader([]byte{0x7F, 0xFF, 0xFF, 0xFF})
	_, err := ReadMessage(r)
	assert.ErrorIs(t, err, wire.ErrSizeExceeded)
}
