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

// Package transport implements the sketch-depth external interface of
// spec.md §6: a length-prefixed, msgpack-encoded packet protocol over a
// stream connection, gated by a version handshake. It is not a full RPC
// framework — no dispatch table, no method routing — just the wire
// shapes and the framing/handshake mechanics a real remote-client
// collaborator would sit on top of.
//
// Grounded on `github.com/vmihailenco/msgpack/v5` (present in this
// retrieval pack's `opentofu` dependency set) for the codec, and on
// spec.md §6's own description of 4-byte length-prefixed framing for
// `transport.Conn`.
package transport

import "fmt"

// Kind tags the shape of a Packet's payload (spec.md §6's named tuple
// shapes).
type Kind string

const (
	KindCall          Kind = "call"
	KindReply         Kind = "reply"
	KindBadCall       Kind = "bad_call"
	KindProcessBatch  Kind = "process_batch"
	KindNotification  Kind = "notification"
	KindCycleEnd      Kind = "cycle_end"
	KindUIEvent       Kind = "ui_event"
	KindProtocolError Kind = "protocol_error"
)

// Packet is the tagged union wire type of spec.md §6: exactly one of
// the typed payload fields is populated, selected by Kind. A struct of
// optional fields (rather than an `any` payload) keeps the shape
// msgpack-stable across the interface{}-typed Args/Value fields each
// payload carries.
type Packet struct {
	Kind Kind `msgpack:"kind"`

	Call         *CallPayload         `msgpack:"call,omitempty"`
	Reply        *ReplyPayload        `msgpack:"reply,omitempty"`
	BadCall      *BadCallPayload      `msgpack:"bad_call,omitempty"`
	ProcessBatch *ProcessBatchPayload `msgpack:"process_batch,omitempty"`
	Notification *NotificationPayload `msgpack:"notification,omitempty"`
	CycleEnd     *CycleEndPayload     `msgpack:"cycle_end,omitempty"`
	UIEvent      *UIEventPayload      `msgpack:"ui_event,omitempty"`
	ProtocolErr  *ProtocolErrPayload  `msgpack:"protocol_error,omitempty"`
}

// CallPayload is `(path, method, args)`: invoke method at subpath path.
type CallPayload struct {
	Path   string         `msgpack:"path"`
	Method string         `msgpack:"method"`
	Args   map[string]any `msgpack:"args"`
}

// ReplyPayload is `(reply, value)`.
type ReplyPayload struct {
	Value any `msgpack:"value"`
}

// BadCallPayload is `(bad_call, error)`: the call itself was malformed
// or targeted an unknown path/method, as distinct from a call that ran
// and failed (which replies normally with an error-shaped Value).
type BadCallPayload struct {
	Error string `msgpack:"error"`
}

// ProcessBatchPayload is `(process_batch, [call, ...])`: an
// atomic-per-cycle batch of calls, answered by a single Reply packet
// whose Value is a []ReplyPayload in submission order (spec.md §6:
// "replies returned in a single list").
type ProcessBatchPayload struct {
	Calls []CallPayload `msgpack:"calls"`
}

// NotificationPayload is `(notification, source, level, message)`.
type NotificationPayload struct {
	Source  string `msgpack:"source"`
	Level   string `msgpack:"level"`
	Message string `msgpack:"message"`
}

// CycleEndPayload is `(cycle_end, stats)`: stats is left as an `any` map
// since its shape tracks engine.CycleStats without this package
// importing engine (transport sits below the engine in the dependency
// graph, per spec.md §6's framing as an external-interface sketch).
type CycleEndPayload struct {
	Stats map[string]any `msgpack:"stats"`
}

// UIEventPayload is `(ui_event, name, args)`.
type UIEventPayload struct {
	Name string         `msgpack:"name"`
	Args map[string]any `msgpack:"args"`
}

// ProtocolErrPayload is `(protocol_error, error)`: a peer-visible
// marshaling failure, distinct from BadCall (a well-formed packet whose
// call target was invalid) and from Reply carrying an application error
// (a call that ran and failed on its own terms).
type ProtocolErrPayload struct {
	Error string `msgpack:"error"`
}

// ErrUnknownKind is returned by Validate for a Packet whose Kind has no
// matching populated payload field.
var ErrUnknownKind = fmt.Errorf("transport: unknown packet kind")

// Validate reports whether p's Kind matches a non-nil payload field,
// catching a packet assembled with the wrong field set before it's
// encoded and sent.
func (p Packet) Validate() error {
	present := map[Kind]bool{
		KindCall:          p.Call != nil,
		KindReply:         p.Reply != nil,
		KindBadCall:       p.BadCall != nil,
		KindProcessBatch:  p.ProcessBatch != nil,
		KindNotification:  p.Notification != nil,
		KindCycleEnd:      p.CycleEnd != nil,
		KindUIEvent:       p.UIEvent != nil,
		KindProtocolError: p.ProtocolErr != nil,
	}
	ok, known := present[p.Kind]
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
	if !ok {
		return fmt.Errorf("transport: packet kind %q has no matching payload set", p.Kind)
	}
	return nil
}
