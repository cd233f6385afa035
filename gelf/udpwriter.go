// Copyright 2012 SocialCode. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package gelf

import (
	"compress/flate"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"os"
	"path"
)

// UDPWriter sends each message as one or more UDP datagrams.  Sends
// are fire-and-forget; a datagram lost in flight is indistinguishable
// from success and is not retried.
type UDPWriter struct {
	GelfWriter
	CompressionLevel int // one of the consts from compress/flate
	CompressionType  CompressType
	// ChunkSize is the maximum datagram size; larger payloads are
	// split into chunks whose fragments fit under it.
	ChunkSize int
	// Rand supplies the 8 random bytes of chunked message ids.  Tests
	// inject a deterministic source here to assert exact wire bytes.
	Rand io.Reader
}

// NewUDPWriter returns a new GELF UDP Writer.  The UDP socket is
// dialed once here and reused for every send until Close.
func NewUDPWriter(addr string) (*UDPWriter, error) {
	var err error
	w := new(UDPWriter)
	w.CompressionLevel = flate.BestSpeed
	w.ChunkSize = ChunkSize
	w.Rand = rand.Reader

	if w.conn, err = net.Dial("udp", addr); err != nil {
		return nil, err
	}
	if w.hostname, err = os.Hostname(); err != nil {
		return nil, err
	}

	w.Facility = path.Base(os.Args[0])
	w.proto = "udp"
	w.addr = addr

	return w, nil
}

// WriteMessage encodes, compresses, chunks if necessary, and sends
// the message.  All failures surface here synchronously; nothing is
// buffered.
func (w *UDPWriter) WriteMessage(m *Message) (err error) {
	mBuf := newBuffer()
	defer bufPool.Put(mBuf)
	if err = m.MarshalJSONBuf(mBuf); err != nil {
		return err
	}
	return w.WriteRaw(mBuf.Bytes())
}

// WriteRaw compresses and sends an already-serialized payload.
func (w *UDPWriter) WriteRaw(p []byte) (err error) {
	zBuf := newBuffer()
	defer bufPool.Put(zBuf)
	if err = compressPayload(zBuf, p, w.CompressionType, w.CompressionLevel); err != nil {
		return err
	}
	zBytes := zBuf.Bytes()

	if numChunks(zBytes, w.ChunkSize) > 1 {
		return w.writeChunked(zBytes)
	}

	n, err := w.conn.Write(zBytes)
	if err != nil {
		return err
	}
	if n != len(zBytes) {
		return fmt.Errorf("bad write (%d/%d)", n, len(zBytes))
	}
	return nil
}

// writeChunked sends the payload as a sequence of chunked datagrams.
// The chunk count is checked against the protocol ceiling before any
// network I/O happens.
func (w *UDPWriter) writeChunked(zBytes []byte) (err error) {
	n := numChunks(zBytes, w.ChunkSize)
	if n > maxChunkCount {
		return fmt.Errorf("%w: payload of %d bytes needs %d chunks", ErrTooManyChunks, len(zBytes), n)
	}

	id, err := messageID(w.Rand)
	if err != nil {
		return err
	}

	buf := newBuffer()
	defer bufPool.Put(buf)

	dataLen := w.ChunkSize - chunkedHeaderLen
	for i := 0; i < n; i++ {
		off := i * dataLen
		end := off + dataLen
		if end > len(zBytes) {
			end = len(zBytes)
		}

		buf.Reset()
		buf.Write(magicChunked)
		buf.Write(id)
		buf.WriteByte(uint8(i))
		buf.WriteByte(uint8(n))
		buf.Write(zBytes[off:end])

		nw, err := w.conn.Write(buf.Bytes())
		if err != nil {
			return fmt.Errorf("write chunk %d/%d: %w", i, n, err)
		}
		if nw != buf.Len() {
			return fmt.Errorf("write chunk %d/%d: bad write (%d/%d)", i, n, nw, buf.Len())
		}
	}

	return nil
}

// Write encodes the given string in a GELF message and sends it to
// the server.  This lets a UDPWriter be used as an io.Writer with the
// standard log package.
func (w *UDPWriter) Write(p []byte) (n int, err error) {
	// 1 for the function that called us.
	file, line := getCallerIgnoringLogMulti(1)

	m := constructMessage(p, w.hostname, w.Facility, file, line)

	if err = w.WriteMessage(m); err != nil {
		return 0, err
	}

	return len(p), nil
}
