// Copyright 2012 SocialCode. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package gelf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// reader is a test-only UDP collector stand-in.  It reassembles
// chunked datagrams and transparently decompresses payloads, which is
// exactly what a Graylog input does on the receiving side.
type reader struct {
	conn net.Conn
}

func newReader(addr string) (*reader, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ResolveUDPAddr('%s'): %s", addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("ListenUDP: %s", err)
	}

	return &reader{conn: conn}, nil
}

func (r *reader) Addr() string {
	return r.conn.LocalAddr().String()
}

func (r *reader) Close() error {
	return r.conn.Close()
}

// Read returns the message text of the next GELF message: Full if it
// is set, Short otherwise.
func (r *reader) Read(p []byte) (int, error) {
	msg, err := r.ReadMessage()
	if err != nil {
		return -1, err
	}

	data := msg.Short
	if msg.Full != "" {
		data = msg.Full
	}

	return copy(p, data), nil
}

func (r *reader) ReadMessage() (*Message, error) {
	payload, err := r.readPayload()
	if err != nil {
		return nil, err
	}

	payload, err = maybeDecompress(payload)
	if err != nil {
		return nil, err
	}

	msg := new(Message)
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %s", err)
	}
	return msg, nil
}

// readPayload reads datagrams until it has one whole transport
// payload, reassembling chunks in sequence-number order.
func (r *reader) readPayload() ([]byte, error) {
	first, err := r.readDatagram()
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(first, magicChunked) {
		return first, nil
	}

	id := string(first[2:10])
	total := int(first[11])
	frags := make(map[int][]byte, total)
	frags[int(first[10])] = first[chunkedHeaderLen:]

	for len(frags) < total {
		b, err := r.readDatagram()
		if err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(b, magicChunked) || string(b[2:10]) != id {
			return nil, fmt.Errorf("unexpected datagram while reading chunks of %x", id)
		}
		frags[int(b[10])] = b[chunkedHeaderLen:]
	}

	var payload []byte
	for i := 0; i < total; i++ {
		frag, ok := frags[i]
		if !ok {
			return nil, fmt.Errorf("missing chunk %d/%d", i, total)
		}
		payload = append(payload, frag...)
	}
	return payload, nil
}

func (r *reader) readDatagram() ([]byte, error) {
	buf := make([]byte, 64*1024)
	n, err := r.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// maybeDecompress inspects the payload's leading magic bytes and
// undoes gzip or zlib compression; plain JSON passes through.
func maybeDecompress(b []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(b, magicGzip):
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case bytes.HasPrefix(b, magicZlib):
		zr, err := zlib.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return b, nil
	}
}
