package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hash(b byte) ChunkHash {
	var h ChunkHash
	h[0] = b
	return h
}

func TestCodecRoundTrip(t *testing.T) {
	hashes := []ChunkHash{hash(1), hash(2), hash(3)}
	peers := []PeerEndpoint{{Address: "10.0.0.1", Port: 9000}, {Address: "10.0.0.2", Port: 9001}}

	cases := map[string]Message{
		"register":      NewRegister("hello.bin", 9000, 3, hashes),
		"keepalive":     NewKeepalive(9000),
		"request":       NewRequest("hello.bin"),
		"get":           NewGet("hello.bin", 2),
		"get_count":     NewGetCount("hello.bin"),
		"ack":           NewAck(),
		"error":         NewErrorMessage("chunk_count conflict"),
		"peer_list":     NewPeerListMessage(peers),
		"peer_list_nil": NewPeerListMessage(nil),
		"chunk_count":   NewChunkCountMessage(3),
		"chunk_hashes":  NewChunkHashesMessage(hashes),
		"chunk_data":    NewChunkData(1, []byte("some chunk bytes")),
	}

	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			encoded, err := Encode(msg)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)

			assert.Equal(t, msg, decoded)
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	encoded, err := Encode(NewRegister("f.bin", 1, 1, []ChunkHash{hash(9)}))
	require.NoError(t, err)

	_, err = Decode(encoded[:len(encoded)-3])
	assert.ErrorIs(t, err, ErrParse)
}

func TestDecodeUnknownKind(t *testing.T) {
	encoded, err := Encode(NewAck())
	require.NoError(t, err)
	encoded[0] = 0xFF

	_, err = Decode(encoded)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeUnknownCommand(t *testing.T) {
	encoded, err := Encode(NewRequest("f.bin"))
	require.NoError(t, err)
	encoded[1] = 0xFF

	_, err = Decode(encoded)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEncodeSizeExceeded(t *testing.T) {
	msg := NewChunkData(0, make([]byte, MaxBodySize+1))
	_, err := Encode(msg)
	assert.ErrorIs(t, err, ErrSizeExceeded)
}

func TestDecodeSizeExceeded(t *testing.T) {
	msg := NewChunkData(0, make([]byte, 16))
	encoded, err := Encode(msg)
	require.NoError(t, err)

	// Corrupt the body-length prefix (last 4 bytes before the 16-byte
	// body) to claim an oversized body.
	lenOffset := len(encoded) - 16 - 4
	encoded[lenOffset] = 0xFF
	encoded[lenOffset+1] = 0xFF
	encoded[lenOffset+2] = 0xFF
	encoded[lenOffset+3] = 0xFF

	_, err = Decode(encoded)
	assert.ErrorIs(t, err, ErrSizeExceeded)
}
