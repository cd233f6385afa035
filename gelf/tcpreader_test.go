// Copyright 2012 SocialCode. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package gelf

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// TCPReader is a test-only TCP collector stand-in reading
// NUL-delimited GELF JSON frames.
type TCPReader struct {
	listener *net.TCPListener
	messages chan []byte
	handlers sync.WaitGroup
}

func newTCPReader(addr string) (*TCPReader, chan string, chan string, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ResolveTCPAddr('%s'): %s", addr, err)
	}

	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ListenTCP: %s", err)
	}

	r := &TCPReader{
		listener: listener,
		messages: make(chan []byte, 100),
	}

	closeSignal := make(chan string, 1)
	doneSignal := make(chan string, 1)

	go r.listenUntilCloseSignal(closeSignal, doneSignal)

	return r, closeSignal, doneSignal, nil
}

func (r *TCPReader) accepter(connections chan net.Conn) {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}
		connections <- conn
	}
}

// listenUntilCloseSignal accepts connections and reads frames off
// them until told to stop.  A "drop" signal drains and closes the
// current connections but keeps listening; "stop" shuts everything
// down.  Both reply "done" on doneSignal once the drain is complete.
func (r *TCPReader) listenUntilCloseSignal(closeSignal chan string, doneSignal chan string) {
	defer r.listener.Close()

	connections := make(chan net.Conn, 1)
	go r.accepter(connections)

	var conns []net.Conn
	for {
		select {
		case conn := <-connections:
			// covers an idle connection; drainAndClose shortens
			// it on shutdown
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			conns = append(conns, conn)
			r.handlers.Add(1)
			go r.handleConnection(conn)
		case sig := <-closeSignal:
			r.drainAndClose(conns)
			conns = nil
			doneSignal <- "done"
			if sig == "stop" {
				return
			}
			// "drop": keep accepting new connections
		}
	}
}

// drainAndClose gives every handler a short window to read frames
// still in flight, waits for them to finish, and only then closes the
// connections.  Closing first would discard anything the kernel has
// buffered but the handler has not read yet.
func (r *TCPReader) drainAndClose(conns []net.Conn) {
	deadline := time.Now().Add(200 * time.Millisecond)
	for _, conn := range conns {
		conn.SetReadDeadline(deadline)
	}
	r.handlers.Wait()
	for _, conn := range conns {
		conn.Close()
	}
}

func (r *TCPReader) handleConnection(conn net.Conn) {
	defer r.handlers.Done()

	reader := bufio.NewReader(conn)
	for {
		b, err := reader.ReadBytes(0)
		if err != nil {
			// connection closed or timed out mid-frame; keep
			// whatever arrived whole
			if len(b) > 0 && b[len(b)-1] == 0 {
				r.messages <- b[:len(b)-1]
			}
			return
		}
		r.messages <- b[:len(b)-1]
	}
}

func (r *TCPReader) readMessage() (*Message, error) {
	select {
	case b := <-r.messages:
		msg := new(Message)
		if err := json.Unmarshal(b, msg); err != nil {
			return nil, fmt.Errorf("json.Unmarshal: %s", err)
		}
		return msg, nil
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("timed out waiting for a message")
	}
}

func (r *TCPReader) addr() string {
	return r.listener.Addr().String()
}
