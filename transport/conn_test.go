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
	"bytes"
	"testing"
)

func TestConnSendRecvRoundTripsEveryPacketShape(t *testing.T) {
	cases := []Packet{
		{Kind: KindCall, Call: &CallPayload{Path: "/jobs", Method: "start_job", Args: map[string]any{"action": "deploy"}}},
		{Kind: KindReply, Reply: &ReplyPayload{Value: "job-123"}},
		{Kind: KindBadCall, BadCall: &BadCallPayload{Error: "unknown path"}},
		{Kind: KindProcessBatch, ProcessBatch: &ProcessBatchPayload{Calls: []CallPayload{{Path: "/jobs", Method: "drop_job"}}}},
		{Kind: KindNotification, Notification: &NotificationPayload{Source: "engine", Level: "info", Message: "cycle ran"}},
		{Kind: KindCycleEnd, CycleEnd: &CycleEndPayload{Stats: map[string]any{"events_emitted": 3}}},
		{Kind: KindUIEvent, UIEvent: &UIEventPayload{Name: "highlight", Args: map[string]any{"id": "t1"}}},
		{Kind: KindProtocolError, ProtocolErr: &ProtocolErrPayload{Error: "bad frame"}},
	}

	var buf bytes.Buffer
	conn := NewConn(&buf)

	for _, p := range cases {
		if err := conn.Send(p); err != nil {
			t.Fatalf("Send(%v): %v", p.Kind, err)
		}
	}
	for _, want := range cases {
		got, err := conn.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if got.Kind != want.Kind {
			t.Errorf("Kind = %q, want %q", got.Kind, want.Kind)
		}
	}
}

func TestConnSendRejectsInvalidPacket(t *testing.T) {
	var buf bytes.Buffer
	conn := NewConn(&buf)
	if err := conn.Send(Packet{Kind: KindReply}); err == nil {
		t.Fatal("expected Send to reject a Reply packet with no Reply payload")
	}
}

func TestConnRecvRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, 4)
	// 0xFFFFFFFF as a length prefix is far beyond maxFrameLen.
	oversized[0], oversized[1], oversized[2], oversized[3] = 0xFF, 0xFF, 0xFF, 0xFF
	buf.Write(oversized)
	conn := NewConn(&buf)
	if _, err := conn.Recv(); err == nil {
		t.Fatal("expected Recv to reject an oversized frame")
	}
}
