package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Encode produces a single self-delimited frame for msg. The frame
// carries no outer length prefix; for stream transports that framing
// is added by package frame, while for datagram transports one frame
// is one packet.
//
// The set of fields written is determined entirely by
// (Header.Kind, Header.Command, Header.Control) — not by which struct
// fields happen to be non-zero — so Decode can reconstruct a Header
// byte-for-byte without an auxiliary presence bitmap.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(msg.Header.Kind))
	buf.WriteByte(byte(msg.Header.Command))
	buf.WriteByte(byte(msg.Header.Control))

	if err := writeFields(&buf, msg.Header); err != nil {
		return nil, err
	}

	if len(msg.Body) > MaxBodySize {
		return nil, fmt.Errorf("wire: encode body of %d bytes: %w", len(msg.Body), ErrSizeExceeded)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(msg.Body)))
	buf.Write(lenBuf[:])
	buf.Write(msg.Body)

	return buf.Bytes(), nil
}

// Decode reverses Encode. It fails with ErrParse on truncation,
// ErrUnknownKind on an unrecognised enum ordinal, and ErrSizeExceeded
// on an oversized body.
func Decode(data []byte) (Message, error) {
	r := bytes.NewReader(data)

	kindByte, err := r.ReadByte()
	if err != nil {
		return Message{}, fmt.Errorf("wire: read kind: %w", ErrParse)
	}
	cmdByte, err := r.ReadByte()
	if err != nil {
		return Message{}, fmt.Errorf("wire: read command: %w", ErrParse)
	}
	ctrlByte, err := r.ReadByte()
	if err != nil {
		return Message{}, fmt.Errorf("wire: read control: %w", ErrParse)
	}

	h := Header{
		Kind:    MessageKind(kindByte),
		Command: CommandKind(cmdByte),
		Control: ControlKind(ctrlByte),
	}
	if err := validateKinds(h); err != nil {
		return Message{}, err
	}

	if err := readFields(r, &h); err != nil {
		return Message{}, err
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, fmt.Errorf("wire: read body length: %w", ErrParse)
	}
	bodyLen := binary.BigEndian.Uint32(lenBuf[:])
	if bodyLen > MaxBodySize {
		return Message{}, fmt.Errorf("wire: body length %d: %w", bodyLen, ErrSizeExceeded)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("wire: read body: %w", ErrParse)
	}
	if bodyLen == 0 {
		body = nil
	}

	if r.Len() != 0 {
		return Message{}, fmt.Errorf("wire: %d trailing bytes: %w", r.Len(), ErrParse)
	}

	return Message{Header: h, Body: body}, nil
}

func validateKinds(h Header) error {
	switch h.Kind {
	case MessageCommand, MessageData, MessageControl:
	default:
		return fmt.Errorf("wire: message kind %d: %w", h.Kind, ErrUnknownKind)
	}
	if h.Kind == MessageCommand {
		switch h.Command {
		case CommandRegister, CommandKeepalive, CommandRequest, CommandGet, CommandGetCount, CommandBecomeSeeder:
		default:
			return fmt.Errorf("wire: command kind %d: %w", h.Command, ErrUnknownKind)
		}
	}
	if h.Kind == MessageControl {
		switch h.Control {
		case ControlAck, ControlError, ControlPeerList, ControlChunkData, ControlChunkCount, ControlChunkHashes:
		default:
			return fmt.Errorf("wire: control kind %d: %w", h.Control, ErrUnknownKind)
		}
	}
	return nil
}

// writeFields and readFields are the single source of truth for which
// named fields accompany each (Kind, Command|Control) combination.
func writeFields(buf *bytes.Buffer, h Header) error {
	switch h.Kind {
	case MessageCommand:
		switch h.Command {
		case CommandRegister, CommandBecomeSeeder:
			writeString(buf, h.FileName)
			writeUint16(buf, h.PeerPort)
			writeUint32(buf, h.ChunkCount)
			writeChunkHashes(buf, h.ChunkHashes)
		case CommandKeepalive:
			writeUint16(buf, h.PeerPort)
		case CommandRequest:
			writeString(buf, h.FileName)
		case CommandGet:
			writeString(buf, h.FileName)
			writeUint32(buf, h.ChunkIndex)
		case CommandGetCount:
			writeString(buf, h.FileName)
		}
	case MessageControl:
		switch h.Control {
		case ControlAck:
		case ControlError:
			writeString(buf, h.ErrorText)
		case ControlPeerList:
			writePeerList(buf, h.PeerList)
		case ControlChunkData:
			writeUint32(buf, h.ChunkIndex)
		case ControlChunkCount:
			writeUint32(buf, h.ChunkCount)
		case ControlChunkHashes:
			writeChunkHashes(buf, h.ChunkHashes)
		}
	case MessageData:
		writeString(buf, h.FileName)
		writeUint32(buf, h.ChunkIndex)
	}
	return nil
}

func readFields(r *bytes.Reader, h *Header) error {
	var err error
	switch h.Kind {
	case MessageCommand:
		switch h.Command {
		case CommandRegister, CommandBecomeSeeder:
			if h.FileName, err = readString(r); err != nil {
				return err
			}
			if h.PeerPort, err = readUint16(r); err != nil {
				return err
			}
			if h.ChunkCount, err = readUint32(r); err != nil {
				return err
			}
			if h.ChunkHashes, err = readChunkHashes(r); err != nil {
				return err
			}
		case CommandKeepalive:
			if h.PeerPort, err = readUint16(r); err != nil {
				return err
			}
		case CommandRequest:
			if h.FileName, err = readString(r); err != nil {
				return err
			}
		case CommandGet:
			if h.FileName, err = readString(r); err != nil {
				return err
			}
			if h.ChunkIndex, err = readUint32(r); err != nil {
				return err
			}
		case CommandGetCount:
			if h.FileName, err = readString(r); err != nil {
				return err
			}
		}
	case MessageControl:
		switch h.Control {
		case ControlAck:
		case ControlError:
			if h.ErrorText, err = readString(r); err != nil {
				return err
			}
		case ControlPeerList:
			if h.PeerList, err = readPeerList(r); err != nil {
				return err
			}
		case ControlChunkData:
			if h.ChunkIndex, err = readUint32(r); err != nil {
				return err
			}
		case ControlChunkCount:
			if h.ChunkCount, err = readUint32(r); err != nil {
				return err
			}
		case ControlChunkHashes:
			if h.ChunkHashes, err = readChunkHashes(r); err != nil {
				return err
			}
		}
	case MessageData:
		if h.FileName, err = readString(r); err != nil {
			return err
		}
		if h.ChunkIndex, err = readUint32(r); err != nil {
			return err
		}
	}
	return nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint16(buf, uint16(len(s)))
	buf.WriteString(s)
}

func writeChunkHashes(buf *bytes.Buffer, hashes []ChunkHash) {
	writeUint16(buf, uint16(len(hashes)))
	for _, h := range hashes {
		buf.Write(h[:])
	}
}

func writePeerList(buf *bytes.Buffer, peers []PeerEndpoint) {
	writeUint16(buf, uint16(len(peers)))
	for _, p := range peers {
		writeString(buf, p.Address)
		writeUint16(buf, p.Port)
	}
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("wire: read uint16: %w", ErrParse)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("wire: read uint32: %w", ErrParse)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("wire: read string body: %w", ErrParse)
	}
	return string(buf), nil
}

func readChunkHashes(r *bytes.Reader) ([]ChunkHash, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	hashes := make([]ChunkHash, n)
	for i := range hashes {
		if _, err := io.ReadFull(r, hashes[i][:]); err != nil {
			return nil, fmt.Errorf("wire: read chunk hash %d: %w", i, ErrParse)
		}
	}
	return hashes, nil
}

func readPeerList(r *bytes.Reader) ([]PeerEndpoint, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	peers := make([]PeerEndpoint, n)
	for i := range peers {
		addr, err := readString(r)
		if err != nil {
			return nil, err
		}
		port, err := readUint16(r)
		if err != nil {
			return nil, err
		}
		peers[i] = PeerEndpoint{Address: addr, Port: port}
	}
	return peers, nil
}
