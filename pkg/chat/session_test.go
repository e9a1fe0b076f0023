package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vanchat/vanchat/pkg/panel"
)

// chatServer is a scripted chat backend. Every command body is recorded;
// the respond hook picks the reply per command.
type chatServer struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	commands   []map[string]any
	configHits int

	respond    func(cmd map[string]any) (int, string)
	configBody string
}

func newChatServer(t *testing.T, respond func(cmd map[string]any) (int, string)) *chatServer {
	cs := &chatServer{t: t, respond: respond, configBody: `{}`}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cmd map[string]any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command body: %v", err)
		}
		cs.mu.Lock()
		if r.URL.Path == "/config" {
			cs.configHits++
			body := cs.configBody
			cs.mu.Unlock()
			fmt.Fprint(w, body)
			return
		}
		cs.commands = append(cs.commands, cmd)
		cs.mu.Unlock()

		status, body := cs.respond(cmd)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *chatServer) commandNames() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	names := make([]string, len(cs.commands))
	for i, cmd := range cs.commands {
		names[i], _ = cmd["command"].(string)
	}
	return names
}

func (cs *chatServer) command(i int) map[string]any {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if i < 0 {
		i += len(cs.commands)
	}
	if i < 0 || i >= len(cs.commands) {
		cs.t.Fatalf("no command at index %d (have %d)", i, len(cs.commands))
	}
	return cs.commands[i]
}

func (cs *chatServer) commandCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.commands)
}

func (cs *chatServer) configHitCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.configHits
}

func newTestSession(t *testing.T, cs *chatServer, opts Options) *Session {
	opts.ChatURL = cs.srv.URL + "/chat"
	opts.ConfigURL = cs.srv.URL + "/config"
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := NewSession(opts)
	t.Cleanup(s.Close)
	return s
}

// fakeClock drives Typing rate limiting and the poll loop deterministically.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch chan time.Time
}

func (ft *fakeTicker) Chan() <-chan time.Time { return ft.ch }
func (ft *fakeTicker) Stop()                  {}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	ft := &fakeTicker{ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers = append(c.tickers, ft)
	c.mu.Unlock()
	return ft
}

// tick fires the most recently created ticker, waiting for the poll loop
// goroutine to create it first.
func (c *fakeClock) tick(t *testing.T) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		n := len(c.tickers)
		var ft *fakeTicker
		if n > 0 {
			ft = c.tickers[n-1]
		}
		c.mu.Unlock()
		if ft != nil {
			ft.ch <- c.Now()
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no ticker created")
		}
		time.Sleep(time.Millisecond)
	}
}

// recordingObserver funnels observer callbacks into channels the test can
// wait on.
type recordingObserver struct {
	msgs   chan *APIMessage
	errs   chan error
	cfgs   chan *panel.Config
	events chan string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		msgs:   make(chan *APIMessage, 16),
		errs:   make(chan error, 16),
		cfgs:   make(chan *panel.Config, 16),
		events: make(chan string, 16),
	}
}

func (o *recordingObserver) OnMessageReceived(msg *APIMessage)   { o.msgs <- msg }
func (o *recordingObserver) OnFailure(err error)                 { o.errs <- err }
func (o *recordingObserver) OnConfigReceived(cfg *panel.Config)  { o.cfgs <- cfg }
func (o *recordingObserver) OnBackendEventReceived(eventType string, detail json.RawMessage) {
	o.events <- eventType
}

func waitMsg(t *testing.T, ch chan *APIMessage) *APIMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func waitErr(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure")
		return nil
	}
}

const startEnvelope = `{
	"conversation": {
		"id": "conv-1",
		"reference": "ref-1",
		"state": {
			"chat_status": "virtual_agent",
			"max_input_chars": 130,
			"allow_delete_conversation": true,
			"privacy_policy_url": "https://example.com/privacy"
		}
	},
	"response": {
		"id": "r-1",
		"source": "bot",
		"language": "en-US",
		"elements": [{"type": "text", "payload": {"text": "Hi!"}}]
	}
}`

func vaEnvelope(id, text string) string {
	return fmt.Sprintf(`{
		"conversation": {"id": "conv-1", "state": {"chat_status": "virtual_agent"}},
		"response": {
			"id": %q, "source": "bot", "language": "en-US",
			"elements": [{"type": "text", "payload": {"text": %q}}]
		}
	}`, id, text)
}

func humanEnvelope(id string) string {
	return fmt.Sprintf(`{
		"conversation": {"id": "conv-1", "state": {"chat_status": "assigned_to_human", "poll": true}},
		"responses": [{
			"id": %q, "source": "bot", "language": "en-US",
			"elements": [{"type": "text", "payload": {"text": "agent here"}}]
		}]
	}`, id)
}

func staticResponder(bodies map[string]string) func(map[string]any) (int, string) {
	return func(cmd map[string]any) (int, string) {
		name, _ := cmd["command"].(string)
		if body, ok := bodies[name]; ok {
			return 200, body
		}
		return 200, vaEnvelope("r-x", "ok")
	}
}

func TestStart_AppliesConversationState(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	s := newTestSession(t, cs, Options{})

	msg, err := s.Start(context.Background(), nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if msg.Conversation == nil || msg.Conversation.ID != "conv-1" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}

	if got := s.ConversationID(); got != "conv-1" {
		t.Errorf("ConversationID = %q, want conv-1", got)
	}
	if got := s.Reference(); got != "ref-1" {
		t.Errorf("Reference = %q, want ref-1", got)
	}
	if got := s.ChatStatus(); got != ChatStatusVirtualAgent {
		t.Errorf("ChatStatus = %q", got)
	}
	if got := s.MaxInputChars(); got != 130 {
		t.Errorf("MaxInputChars = %d, want 130", got)
	}
	if !s.AllowDeleteConversation() {
		t.Error("AllowDeleteConversation should be true")
	}
	if got := s.PrivacyPolicyURL(); got != "https://example.com/privacy" {
		t.Errorf("PrivacyPolicyURL = %q", got)
	}
	if s.IsPolling() {
		t.Error("poll loop should be disarmed for virtual_agent")
	}
	if got := s.PollValue(); got != "" {
		t.Errorf("PollValue = %q, want empty while disarmed", got)
	}

	cmd := cs.command(0)
	if cmd["command"] != "START" {
		t.Errorf("wire command = %v, want START", cmd["command"])
	}
	if cmd["language"] != "en-US" {
		t.Errorf("default language not filled in: %v", cmd["language"])
	}
}

func TestStart_MissingConversationEnvelope(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": `{"response":{"id":"r-1","source":"bot","elements":[]}}`}))
	s := newTestSession(t, cs, Options{})

	obs := newRecordingObserver()
	sub := s.AddMessageObserver(obs)
	defer sub.Cancel()

	_, err := s.Start(context.Background(), nil)
	if !errors.Is(err, ErrNoConversation) {
		t.Fatalf("err = %v, want ErrNoConversation", err)
	}
	if got := waitErr(t, obs.errs); !errors.Is(got, ErrNoConversation) {
		t.Fatalf("observer err = %v, want ErrNoConversation", got)
	}
}

func TestMessage_PublishesClientEchoFirst(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	s := newTestSession(t, cs, Options{})

	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	obs := newRecordingObserver()
	sub := s.AddMessageObserver(obs)
	defer sub.Cancel()

	if _, err := s.Message(context.Background(), "hello"); err != nil {
		t.Fatalf("Message failed: %v", err)
	}

	echo := waitMsg(t, obs.msgs)
	if echo.Response == nil || echo.Response.Source != SourceClient {
		t.Fatalf("first published message should be the client echo, got %+v", echo)
	}
	if !echo.Response.IsTempID {
		t.Error("client echo should carry a temp id")
	}
	if got := echo.Response.Elements[0].Payload.Text; got != "hello" {
		t.Errorf("echo text = %q", got)
	}

	reply := waitMsg(t, obs.msgs)
	if reply.Response == nil || reply.Response.Source != SourceBot {
		t.Fatalf("second published message should be the server reply, got %+v", reply)
	}

	// history: start envelope, echo, reply
	if got := len(s.Messages()); got != 3 {
		t.Errorf("history length = %d, want 3", got)
	}
}

func TestMessage_EchoSurvivesSendFailure(t *testing.T) {
	cs := newChatServer(t, func(cmd map[string]any) (int, string) {
		if cmd["command"] == "POST" {
			return 500, `{"error":"backend down"}`
		}
		return 200, startEnvelope
	})
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	obs := newRecordingObserver()
	sub := s.AddMessageObserver(obs)
	defer sub.Cancel()

	_, err := s.Message(context.Background(), "hello")
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
	if serverErr.StatusCode != 500 || serverErr.Message != "backend down" {
		t.Errorf("server error = %+v", serverErr)
	}

	echo := waitMsg(t, obs.msgs)
	if echo.Response == nil || !echo.Response.IsTempID {
		t.Fatal("client echo should be published before the send fails")
	}
	if got := waitErr(t, obs.errs); !errors.As(got, &serverErr) {
		t.Fatalf("observer should receive the server error, got %v", got)
	}
}

func TestPartialStateUpdate_KeepsPreviousValues(t *testing.T) {
	blocked := `{
		"conversation": {"id": "conv-1", "state": {"chat_status": "virtual_agent", "is_blocked": true}},
		"response": {"id": "r-2", "source": "bot", "elements": []}
	}`
	bare := `{
		"conversation": {"id": "conv-1", "state": {"chat_status": "virtual_agent"}},
		"response": {"id": "r-3", "source": "bot", "elements": []}
	}`
	step := 0
	cs := newChatServer(t, func(cmd map[string]any) (int, string) {
		if cmd["command"] == "START" {
			return 200, startEnvelope
		}
		step++
		if step == 1 {
			return 200, blocked
		}
		return 200, bare
	})
	s := newTestSession(t, cs, Options{})

	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := s.Message(context.Background(), "a"); err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if !s.IsBlocked() {
		t.Error("is_blocked=true should block the session")
	}
	if got := s.MaxInputChars(); got != 130 {
		t.Errorf("MaxInputChars = %d, absent field should keep previous 130", got)
	}

	if _, err := s.Message(context.Background(), "b"); err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if s.IsBlocked() {
		t.Error("absent is_blocked should reset to false")
	}
	if got := s.PrivacyPolicyURL(); got != "https://example.com/privacy" {
		t.Errorf("PrivacyPolicyURL = %q, should keep previous value", got)
	}
}

func TestPollLifecycle(t *testing.T) {
	clock := newFakeClock()
	var handoff atomic.Bool
	cs := newChatServer(t, func(cmd map[string]any) (int, string) {
		switch cmd["command"] {
		case "START":
			return 200, startEnvelope
		case "POST":
			handoff.Store(true)
			return 200, humanEnvelope("h-1")
		case "POLL":
			if handoff.Load() {
				return 200, humanEnvelope("h-2")
			}
			return 200, vaEnvelope("r-9", "done")
		default:
			return 200, vaEnvelope("r-x", "ok")
		}
	})
	s := newTestSession(t, cs, Options{Clock: clock})

	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := s.Message(context.Background(), "human please"); err != nil {
		t.Fatalf("Message failed: %v", err)
	}

	if !s.IsPolling() {
		t.Fatal("poll=true with human status should arm the poll loop")
	}
	if got := s.PollValue(); got != "h-1" {
		t.Fatalf("PollValue = %q, want h-1", got)
	}
	if got := s.ChatStatus(); !got.IsHuman() {
		t.Fatalf("ChatStatus = %q, want human", got)
	}

	before := cs.commandCount()
	clock.tick(t)
	deadline := time.Now().Add(2 * time.Second)
	for cs.commandCount() == before {
		if time.Now().After(deadline) {
			t.Fatal("poll tick never issued a POLL command")
		}
		time.Sleep(time.Millisecond)
	}

	poll := cs.command(-1)
	if poll["command"] != "POLL" {
		t.Fatalf("expected POLL command, got %v", poll["command"])
	}
	if poll["value"] != "h-1" {
		t.Errorf("POLL cursor = %v, want h-1", poll["value"])
	}

	// cursor advances from the poll response, loop stays armed
	deadline = time.Now().Add(2 * time.Second)
	for s.PollValue() != "h-2" {
		if time.Now().After(deadline) {
			t.Fatalf("PollValue = %q, want h-2", s.PollValue())
		}
		time.Sleep(time.Millisecond)
	}
	if !s.IsPolling() {
		t.Fatal("poll loop should stay armed while handoff continues")
	}

	// conversation returns to the virtual agent: loop disarms, cursor clears
	handoff.Store(false)
	clock.tick(t)
	deadline = time.Now().Add(2 * time.Second)
	for s.IsPolling() {
		if time.Now().After(deadline) {
			t.Fatal("poll loop should disarm when poll is no longer requested")
		}
		time.Sleep(time.Millisecond)
	}
	if got := s.PollValue(); got != "" {
		t.Errorf("PollValue = %q, want empty after disarm", got)
	}
}

func TestHumanChatPost_PostedIDAdvancesCursor(t *testing.T) {
	posted := `{
		"posted_id": 77,
		"conversation": {"id": "conv-1", "state": {"chat_status": "assigned_to_human", "poll": true}}
	}`
	cs := newChatServer(t, staticResponder(map[string]string{
		"START":         humanEnvelope("h-1"),
		"HUMANCHATPOST": posted,
	}))
	s := newTestSession(t, cs, Options{Clock: newFakeClock()})

	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := s.HumanChatPost(context.Background(), "hello operator"); err != nil {
		t.Fatalf("HumanChatPost failed: %v", err)
	}
	if got := s.PollValue(); got != "77" {
		t.Errorf("PollValue = %q, want 77 from posted_id", got)
	}
}

func TestResume_StartsNewOnServerRejection(t *testing.T) {
	cs := newChatServer(t, func(cmd map[string]any) (int, string) {
		if cmd["command"] == "RESUME" {
			return 400, `{"error":"conversation expired"}`
		}
		return 200, startEnvelope
	})
	s := newTestSession(t, cs, Options{})
	s.SetConversationID("stale-conv")

	msg, err := s.Resume(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resume should fall back to Start: %v", err)
	}
	if msg.Conversation.ID != "conv-1" {
		t.Fatalf("fallback start envelope not applied: %+v", msg)
	}
	if names := cs.commandNames(); len(names) != 2 || names[0] != "RESUME" || names[1] != "START" {
		t.Fatalf("commands = %v, want [RESUME START]", names)
	}
}

func TestResume_NoFallbackWhenDisabled(t *testing.T) {
	off := false
	cs := newChatServer(t, func(cmd map[string]any) (int, string) {
		return 400, `{"error":"conversation expired"}`
	})
	s := newTestSession(t, cs, Options{StartNewConversationOnResumeFailure: &off})

	_, err := s.Resume(context.Background(), nil)
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
	if names := cs.commandNames(); len(names) != 1 {
		t.Fatalf("commands = %v, fallback should not fire", names)
	}
}

func TestResume_TransportErrorNotMasked(t *testing.T) {
	cs := newChatServer(t, staticResponder(nil))
	s := newTestSession(t, cs, Options{})
	cs.srv.Close()

	_, err := s.Resume(context.Background(), nil)
	if err == nil {
		t.Fatal("expected transport error")
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		t.Fatalf("transport failure misclassified as server rejection: %v", err)
	}
}

func TestFeedback_SecondSameValueTogglesRemove(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := s.Feedback(context.Background(), "r-1", FeedbackPositive); err != nil {
		t.Fatalf("Feedback failed: %v", err)
	}
	if got := cs.command(-1)["value"]; got != "positive" {
		t.Fatalf("first feedback value = %v", got)
	}

	if _, err := s.Feedback(context.Background(), "r-1", FeedbackPositive); err != nil {
		t.Fatalf("Feedback failed: %v", err)
	}
	if got := cs.command(-1)["value"]; got != "remove-positive" {
		t.Fatalf("repeated feedback value = %v, want remove-positive", got)
	}

	// toggled off: a third press applies again
	if _, err := s.Feedback(context.Background(), "r-1", FeedbackPositive); err != nil {
		t.Fatalf("Feedback failed: %v", err)
	}
	if got := cs.command(-1)["value"]; got != "positive" {
		t.Fatalf("third feedback value = %v, want positive", got)
	}
}

func TestConversationFeedback_ClampsRating(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := s.ConversationFeedback(context.Background(), 5, "great"); err != nil {
		t.Fatalf("ConversationFeedback failed: %v", err)
	}
	cmd := cs.command(-1)
	rating, _ := cmd["value"].(map[string]any)
	if rating == nil {
		t.Fatalf("feedback payload missing: %v", cmd)
	}
	if got := rating["rating"]; got != float64(1) {
		t.Errorf("rating = %v, want 1", got)
	}
	if got := rating["text"]; got != "great" {
		t.Errorf("text = %v", got)
	}
}

func TestTyping_RateLimitAndVirtualAgentSuppression(t *testing.T) {
	clock := newFakeClock()
	human := `{
		"conversation": {"id": "conv-1", "state": {"chat_status": "assigned_to_human"}},
		"response": {"id": "h-1", "source": "bot", "elements": []}
	}`
	// TYPING responses must keep the human status or the session would
	// fall back to virtual-agent handling and suppress the next one.
	cs := newChatServer(t, staticResponder(map[string]string{"START": human, "TYPING": human}))
	s := newTestSession(t, cs, Options{Clock: clock})

	// pre-start: virtual agent handling, fully suppressed
	msg, err := s.Typing(context.Background())
	if err != nil || msg != nil {
		t.Fatalf("Typing while virtual agent should be a silent no-op, got %v, %v", msg, err)
	}

	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := s.Typing(context.Background()); err != nil {
		t.Fatalf("Typing failed: %v", err)
	}
	if got := cs.command(-1)["command"]; got != "TYPING" {
		t.Fatalf("expected TYPING command, got %v", got)
	}
	before := cs.commandCount()

	// within 5s: suppressed
	clock.Advance(2 * time.Second)
	if msg, err := s.Typing(context.Background()); err != nil || msg != nil {
		t.Fatalf("rate limited Typing should be a silent no-op, got %v, %v", msg, err)
	}
	if cs.commandCount() != before {
		t.Fatal("suppressed Typing must not reach the wire")
	}

	clock.Advance(3 * time.Second)
	if _, err := s.Typing(context.Background()); err != nil {
		t.Fatalf("Typing after interval failed: %v", err)
	}
	if cs.commandCount() != before+1 {
		t.Fatal("Typing after the interval should reach the wire")
	}
}

func TestClientTyping_BlockedReturnsZeroes(t *testing.T) {
	blocked := `{
		"conversation": {"id": "conv-1", "state": {"chat_status": "virtual_agent", "is_blocked": true, "max_input_chars": 50}},
		"response": {"id": "r-1", "source": "bot", "elements": []}
	}`
	cs := newChatServer(t, staticResponder(map[string]string{"START": blocked}))
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ct := s.ClientTyping(context.Background(), "draft")
	if ct.Length != 0 || ct.MaxLength != 0 {
		t.Fatalf("blocked ClientTyping = %+v, want zeroes", ct)
	}
}

func TestClientTyping_CountsRunes(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ct := s.ClientTyping(context.Background(), "héllo")
	if ct.Length != 5 {
		t.Errorf("Length = %d, want 5 runes", ct.Length)
	}
	if ct.MaxLength != 130 {
		t.Errorf("MaxLength = %d, want 130", ct.MaxLength)
	}
}

func TestVanChange_RefetchesConfigOnce(t *testing.T) {
	van2 := `{
		"conversation": {"id": "conv-1", "state": {"chat_status": "virtual_agent"}},
		"response": {"id": "r-2", "source": "bot", "van_id": 2, "elements": []}
	}`
	cs := newChatServer(t, staticResponder(map[string]string{
		"START": startEnvelope,
		"POST":  van2,
	}))
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := s.Message(context.Background(), "route me"); err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if got := cs.configHitCount(); got != 1 {
		t.Fatalf("config hits = %d, want 1 after van change", got)
	}
	if van := s.VanID(); van == nil || *van != 2 {
		t.Fatalf("VanID = %v, want 2", van)
	}

	if _, err := s.Message(context.Background(), "again"); err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if got := cs.configHitCount(); got != 1 {
		t.Fatalf("config hits = %d, unchanged van must not refetch", got)
	}
}

func TestStop_ResetsConversationState(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	s := newTestSession(t, cs, Options{UserToken: "tok-1"})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := s.Message(context.Background(), "hi"); err != nil {
		t.Fatalf("Message failed: %v", err)
	}

	if _, err := s.Stop(context.Background(), nil); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := s.ConversationID(); got != "" {
		t.Errorf("ConversationID = %q after stop", got)
	}
	if got := s.UserToken(); got != "" {
		t.Errorf("UserToken = %q after stop", got)
	}
	if got := len(s.Messages()); got != 0 {
		t.Errorf("history length = %d after stop", got)
	}
	if s.LastResponse() != nil {
		t.Error("LastResponse should be nil after stop")
	}

	// idempotent: a second stop still succeeds and leaves cleared state
	if _, err := s.Stop(context.Background(), nil); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if got := s.ConversationID(); got != "" {
		t.Errorf("ConversationID = %q after second stop", got)
	}
}

func TestDelete_ResetsConversationState(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := s.Delete(context.Background(), nil); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := s.ConversationID(); got != "" {
		t.Errorf("ConversationID = %q after delete", got)
	}
	if got := cs.command(-1)["conversation_id"]; got != "conv-1" {
		t.Errorf("DELETE conversation_id = %v, want conv-1", got)
	}
}

func TestDownload_ReturnsRawTranscript(t *testing.T) {
	transcript := "You: hi\nBot: hello there"
	cs := newChatServer(t, func(cmd map[string]any) (int, string) {
		if cmd["command"] == "DOWNLOAD" {
			return 200, transcript
		}
		return 200, startEnvelope
	})
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	obs := newRecordingObserver()
	sub := s.AddMessageObserver(obs)
	defer sub.Cancel()

	msg, err := s.Download(context.Background(), "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if msg.Download != transcript {
		t.Fatalf("Download = %q, want raw transcript", msg.Download)
	}

	// downloads do not enter history or fan out
	select {
	case got := <-obs.msgs:
		t.Fatalf("download should not be published to observers, got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGetConfig_ConvertsLegacySchema(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	cs.configBody = `{
		"primaryColor": "#552a55",
		"pace": "fast",
		"fileUploadServiceEndpointUrl": "https://files.example.com/upload",
		"messages": {"en-US": {"compose.placeholder": "Ask me"}}
	}`
	s := newTestSession(t, cs, Options{})

	obs := newRecordingObserver()
	sub := s.AddConfigObserver(obs)
	defer sub.Cancel()

	cfg, err := s.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if cfg.ChatPanel == nil || cfg.ChatPanel.Styling == nil {
		t.Fatalf("converted config incomplete: %+v", cfg)
	}
	if got := cfg.ChatPanel.Styling.Pace; got != panel.PaceFast {
		t.Errorf("Pace = %q, want fast", got)
	}
	if got := cfg.ChatPanel.Styling.PrimaryColor; got != "#552a55" {
		t.Errorf("PrimaryColor = %q", got)
	}
	if got := cfg.Messages["en-US"].ComposePlaceholder; got != "Ask me" {
		t.Errorf("ComposePlaceholder = %q", got)
	}

	select {
	case published := <-obs.cfgs:
		if published != cfg {
			t.Error("observer should receive the converted config")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("config update never published")
	}

	if got := s.Config(); got != cfg {
		t.Error("Config should return the cached fetch")
	}
}

func TestSend_PublishesEmitEvents(t *testing.T) {
	withEvent := `{
		"conversation": {"id": "conv-1", "state": {"chat_status": "virtual_agent"}},
		"response": {
			"id": "r-5", "source": "bot",
			"elements": [{"type": "json", "payload": {"json": {"emitEvent": {"type": "order-shipped", "detail": {"order": 42}}}}}]
		}
	}`
	cs := newChatServer(t, staticResponder(map[string]string{
		"START": startEnvelope,
		"POST":  withEvent,
	}))
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	obs := newRecordingObserver()
	sub := s.AddEventObserver(obs)
	defer sub.Cancel()

	if _, err := s.Message(context.Background(), "where is my order"); err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	select {
	case eventType := <-obs.events:
		if eventType != "order-shipped" {
			t.Fatalf("event type = %q", eventType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("emitEvent never reached the event observer")
	}
}

func TestSendFiles_EchoCarriesAttachmentLinks(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	obs := newRecordingObserver()
	sub := s.AddMessageObserver(obs)
	defer sub.Cancel()

	files := []File{{Filename: "Invoice.PDF", MimeType: "application/pdf", URL: "https://files.example.com/1"}}
	if _, err := s.SendFiles(context.Background(), files, ""); err != nil {
		t.Fatalf("SendFiles failed: %v", err)
	}

	echo := waitMsg(t, obs.msgs)
	if echo.Response == nil || len(echo.Response.Elements) != 2 {
		t.Fatalf("echo should carry text and links elements: %+v", echo)
	}
	if got := echo.Response.Elements[0].Payload.Text; got != "file.pdf" {
		t.Errorf("echo text = %q, want lowercased extension placeholder", got)
	}
	link := echo.Response.Elements[1].Payload.Links[0]
	if !link.IsAttachment || link.URL != "https://files.example.com/1" {
		t.Errorf("attachment link = %+v", link)
	}

	var decoded []map[string]any
	raw, _ := json.Marshal(cs.command(-1)["value"])
	if err := json.Unmarshal(raw, &decoded); err != nil || len(decoded) != 1 {
		t.Fatalf("wire files payload: %v (%v)", cs.command(-1)["value"], err)
	}
	if _, ok := decoded[0]["mimetype"]; !ok {
		t.Error("wire file must use lowercase mimetype key")
	}
}

func TestUserActionMessage_LocalOnly(t *testing.T) {
	cs := newChatServer(t, staticResponder(map[string]string{"START": startEnvelope}))
	s := newTestSession(t, cs, Options{})
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	before := cs.commandCount()

	obs := newRecordingObserver()
	sub := s.AddMessageObserver(obs)
	defer sub.Cancel()

	s.UserActionMessage("Show opening hours")

	msg := waitMsg(t, obs.msgs)
	if msg.Response == nil || msg.Response.Source != SourceClient {
		t.Fatalf("user action message should publish as client source: %+v", msg)
	}
	if msg.Response.IsTempID {
		t.Error("user action messages are not temp-id echoes")
	}
	if cs.commandCount() != before {
		t.Error("user action messages must not reach the wire")
	}
}
