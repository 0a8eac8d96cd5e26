package wire

import "errors"

// Sentinel errors returned by Decode. Callers can match with
// errors.Is; each corresponds to one of the PROTOCOL-class failures in
// the spec's error taxonomy.
var (
	// ErrParse means the frame was truncated or otherwise malformed.
	ErrParse = errors.New("wire: malformed frame")
	// ErrUnknownKind means an enum ordinal was not recognised.
	ErrUnknownKind = errors.New("wire: unknown kind")
	// ErrSizeExceeded means the body exceeded MaxBodySize.
	ErrSizeExceeded = errors.New("wire: body size exceeded")
)

// MaxBodySize is the largest body Decode will accept, per spec §4.1.
const MaxBodySize = 1 << 20 // 1 MiB

// MaxDatagramPayload is the recommended ceiling for an encoded message
// sent over the tracker's datagram transport.
const MaxDatagramPayload = 64 << 10 // 64 KiB
