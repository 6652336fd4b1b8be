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
	"fmt"
	"reflect"
)

// ProtocolVersion is the version this package's Conn/Packet encoding
// speaks. A peer requesting a version this package doesn't support
// fails the handshake rather than silently degrading.
const ProtocolVersion = 1

// Handshake is the first exchange on a new connection: `(version,
// requested_commands) → map(command → handle)` (spec.md §6). handle is
// left as an opaque string (a routing token the command-dispatch layer
// above transport interprets) since transport itself has no command
// table to resolve against.
type Handshake struct {
	Version           int
	RequestedCommands []string
	CommandHandles    map[string]string
}

// ErrVersionMismatch is returned by PerformHandshake when the peer's
// requested version isn't ProtocolVersion.
var ErrVersionMismatch = fmt.Errorf("transport: unsupported protocol version")

// PerformHandshake runs the handshake's server side: it reads the
// client's (version, requested_commands) call, resolves each requested
// command to a handle via resolve, and replies. On success it Opens
// bus, so only after a completed handshake do notifications posted to
// bus reach registered listeners (spec.md §9: "notifications never sent
// before the first handshake completes; queued notifications generated
// earlier must be discarded, not buffered" — resolved by notify.Bus's
// drop-before-open behavior rather than buffering).
func PerformHandshake(conn *Conn, resolve func(command string) (handle string, ok bool), open func()) (*Handshake, error) {
	req, err := conn.Recv()
	if err != nil {
		return nil, fmt.Errorf("transport: handshake: recv request: %w", err)
	}
	if req.Kind != KindCall || req.Call == nil || req.Call.Method != "handshake" {
		return nil, fmt.Errorf("transport: handshake: expected a handshake call, got kind %q", req.Kind)
	}

	var version int
	switch rv := reflect.ValueOf(req.Call.Args["version"]); {
	case rv.CanInt():
		version = int(rv.Int())
	case rv.CanUint():
		version = int(rv.Uint())
	}
	var requested []string
	if raw, ok := req.Call.Args["requested_commands"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				requested = append(requested, s)
			}
		}
	}

	if version != ProtocolVersion {
		_ = conn.Send(Packet{Kind: KindProtocolError, ProtocolErr: &ProtocolErrPayload{
			Error: fmt.Sprintf("unsupported version %d, want %d", version, ProtocolVersion),
		}})
		return nil, fmt.Errorf("%w: peer requested %d, want %d", ErrVersionMismatch, version, ProtocolVersion)
	}

	handles := map[string]string{}
	for _, cmd := range requested {
		if h, ok := resolve(cmd); ok {
			handles[cmd] = h
		}
	}

	handleValues := make(map[string]any, len(handles))
	for k, v := range handles {
		handleValues[k] = v
	}
	if err := conn.Send(Packet{Kind: KindReply, Reply: &ReplyPayload{Value: handleValues}}); err != nil {
		return nil, fmt.Errorf("transport: handshake: send reply: %w", err)
	}

	if open != nil {
		open()
	}
	return &Handshake{Version: version, RequestedCommands: requested, CommandHandles: handles}, nil
}
