package gelf

import (
	"errors"
	"fmt"
	"io"
)

// Used to control GELF chunking.  Should be less than (MTU - len(UDP
// header)).
//
// TODO: generate dynamically using Path MTU Discovery?
const (
	ChunkSize        = 1420
	chunkedHeaderLen = 12
	// maxChunkCount is limited by the protocol to a maximum of 128,
	// bounded by the single-byte sequence count field
	// https://docs.graylog.org/docs/gelf#gelf-via-udp
	maxChunkCount = 128
)

var (
	magicChunked = []byte{0x1e, 0x0f}
	magicZlib    = []byte{0x78}
	magicGzip    = []byte{0x1f, 0x8b}
)

// ErrTooManyChunks is returned when a payload would need more than
// 128 chunks.  The message is not sent in any form.
var ErrTooManyChunks = errors.New("gelf: message needs more than 128 chunks")

// numChunks returns the number of GELF chunks necessary to transmit
// the given compressed buffer with the given maximum datagram size.
func numChunks(b []byte, chunkSize int) int {
	if len(b) <= chunkSize {
		return 1
	}
	dataLen := chunkSize - chunkedHeaderLen
	return (len(b) + dataLen - 1) / dataLen
}

// messageID draws the random 8-byte id shared by all chunks of one
// message.  Colliding ids would make the receiver interleave
// fragments of concurrent messages, so every message draws fresh
// bytes from the source.
func messageID(r io.Reader) ([]byte, error) {
	id := make([]byte, 8)
	if _, err := io.ReadFull(r, id); err != nil {
		return nil, fmt.Errorf("gelf: draw message id: %w", err)
	}
	return id, nil
}
