package chat

import (
	"encoding/json"
	"testing"
)

func TestElementType_UnknownValuesDecode(t *testing.T) {
	body := `{
		"id": "r-7", "source": "bot",
		"elements": [
			{"type": "text", "payload": {"text": "hi"}},
			{"type": "hologram", "payload": {"url": "https://example.com/h"}}
		]
	}`
	var r Response
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("a new element type must not fail envelope decoding: %v", err)
	}
	if got := r.Elements[0].Type; got != ElementTypeText {
		t.Errorf("known type = %q", got)
	}
	if got := r.Elements[1].Type; got != ElementTypeUnknown {
		t.Errorf("unknown type = %q, want %q", got, ElementTypeUnknown)
	}
	if got := r.Elements[1].Payload.URL; got != "https://example.com/h" {
		t.Errorf("payload of unknown element should still decode, got %q", got)
	}
}

func TestChatStatus_IsHuman(t *testing.T) {
	if ChatStatusVirtualAgent.IsHuman() {
		t.Error("virtual_agent is not human")
	}
	if !ChatStatusInHumanChatQueue.IsHuman() {
		t.Error("in_human_chat_queue is human")
	}
	if !ChatStatusAssignedToHuman.IsHuman() {
		t.Error("assigned_to_human is human")
	}
}

func TestAPIMessage_EventsExtraction(t *testing.T) {
	body := `{
		"responses": [
			{"id": "a", "source": "bot", "elements": [
				{"type": "json", "payload": {"json": {"emitEvent": {"type": "first"}}}}
			]},
			{"id": "b", "source": "bot", "elements": [
				{"type": "json", "payload": {"json": {"genericCard": {"title": "no event"}}}},
				{"type": "text", "payload": {"text": "plain"}}
			]}
		],
		"response": {"id": "c", "source": "bot", "elements": [
			{"type": "json", "payload": {"json": {"emitEvent": {"type": "second", "detail": {"n": 1}}}}}
		]}
	}`
	var msg APIMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}

	events := msg.events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != "first" || events[1].Type != "second" {
		t.Errorf("event order = %s, %s", events[0].Type, events[1].Type)
	}
	if string(events[1].Detail) != `{"n": 1}` {
		t.Errorf("detail = %s", events[1].Detail)
	}
}

func TestLatestResponseID(t *testing.T) {
	single := &APIMessage{Response: &Response{ID: "x"}}
	if got := latestResponseID(single); got != "x" {
		t.Errorf("single response id = %q", got)
	}
	many := &APIMessage{Responses: []Response{{ID: "a"}, {ID: "b"}}}
	if got := latestResponseID(many); got != "b" {
		t.Errorf("latest of responses = %q, want b", got)
	}
	if got := latestResponseID(&APIMessage{}); got != "" {
		t.Errorf("empty envelope id = %q", got)
	}
}

func TestCommandWire_NoLocalFieldsLeak(t *testing.T) {
	cmd := NewPostCommand(PostTypeText)
	cmd.ConversationID = "c"
	cmd.Value = json.RawMessage(`"hi"`)
	raw, err := json.Marshal(cmd)
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["command"] != "POST" || wire["type"] != "text" {
		t.Fatalf("wire = %v", wire)
	}
	for _, forbidden := range []string{"IsTempID", "is_temp_id", "Download"} {
		if _, ok := wire[forbidden]; ok {
			t.Errorf("local-only field %q leaked onto the wire", forbidden)
		}
	}
}
