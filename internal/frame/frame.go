// Package frame implements the stream transport's message framing: a
// 4-byte big-endian length prefix followed by one encoded wire.Message,
// so a reader can read exactly one frame at a time off a TCP
// connection. Grounded on the teacher's pkg/transport/tcp frame header
// (1-byte type + 4-byte length); the type byte is dropped here because
// wire.Message is already self-describing via its Kind/Command/Control
// triplet.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

// MaxFrameSize bounds a single frame: header plus the largest body
// wire.Decode will accept, plus slack for the header fields.
const MaxFrameSize = wire.MaxBodySize + 4096

const lengthPrefixSize = 4

// WriteMessage encodes msg and writes it to w as one length-prefixed
// frame.
func WriteMessage(w io.Writer, msg wire.Message) error {
	encoded, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("frame: encode: %w", err)
	}
	if len(encoded) > MaxFrameSize {
		return fmt.Errorf("frame: encoded message of %d bytes exceeds %d: %w", len(encoded), MaxFrameSize, wire.ErrSizeExceeded)
	}

	var prefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(encoded)))

	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("frame: write length prefix: %w", err)
	}
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("frame: write payload: %w", err)
	}
	return nil
}

// ReadMessage reads exactly one length-prefixed frame from r and
// decodes it.
func ReadMessage(r io.Reader) (wire.Message, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return wire.Message{}, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return wire.Message{}, fmt.Errorf("frame: frame length %d exceeds %d: %w", length, MaxFrameSize, wire.ErrSizeExceeded)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return wire.Message{}, fmt.Errorf("frame: read payload: %w", err)
	}

	msg, err := wire.Decode(payload)
	if err != nil {
		return wire.Message{}, err
	}
	return msg, nil
}
