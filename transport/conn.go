/*
Copyright 2026 The Plan Engine Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameLen bounds a single packet's encoded length, guarding against
// a corrupt or hostile length prefix driving an unbounded allocation.
const maxFrameLen = 64 << 20 // 64 MiB

// Conn frames Packets over an io.ReadWriter with a 4-byte big-endian
// length prefix (spec.md §6: "a length-prefixed packet protocol over a
// stream channel"). It is safe for one reader and one writer goroutine
// to operate concurrently, but not for concurrent writers among
// themselves (matching the engine's single-outbound-queue-drainer
// model in spec.md §5).
type Conn struct {
	rw io.ReadWriter
}

// NewConn wraps rw (a socket or pipe) for framed Packet exchange.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw}
}

// Send encodes p with msgpack and writes it as one length-prefixed
// frame.
func (c *Conn) Send(p Packet) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	body, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("transport: marshal packet: %w", err)
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := c.rw.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("transport: write length prefix: %w", err)
	}
	if _, err := c.rw.Write(body); err != nil {
		return fmt.Errorf("transport: write packet body: %w", err)
	}
	return nil
}

// Recv reads one length-prefixed frame and decodes it as a Packet.
func (c *Conn) Recv() (Packet, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(c.rw, lenPrefix[:]); err != nil {
		return Packet{}, fmt.Errorf("transport: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > maxFrameLen {
		return Packet{}, fmt.Errorf("transport: frame length %d exceeds max %d", n, maxFrameLen)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.rw, body); err != nil {
		return Packet{}, fmt.Errorf("transport: read packet body: %w", err)
	}
	var p Packet
	if err := msgpack.Unmarshal(body, &p); err != nil {
		return Packet{}, fmt.Errorf("transport: unmarshal packet: %w", err)
	}
	return p, nil
}
