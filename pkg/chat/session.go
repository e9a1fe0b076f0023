// Package chat implements the conversation session against a virtual-agent
// chat backend: typed commands in, tagged response envelopes out, with a
// self-correcting human-chat poll loop and serialized observer fan-out.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vanchat/vanchat/pkg/panel"
)

const (
	defaultLanguageCode  = "en-US"
	defaultMaxInputChars = 110
	defaultPollInterval  = 2500 * time.Millisecond

	// typingInterval is the minimum gap between two TYPING commands.
	typingInterval = 5 * time.Second
)

// Options configures a Session. Domain is the only required field unless
// ChatURL and ConfigURL are both set explicitly.
type Options struct {
	// Domain of the backend, e.g. "acme.chat.example.com". The chat and
	// config endpoints derive from it unless overridden below.
	Domain    string
	ChatURL   string
	ConfigURL string

	// FileUploadServiceEndpointURL enables UploadFiles. Usually taken
	// from the panel config's settings.
	FileUploadServiceEndpointURL string

	UserToken     string
	Skill         string
	LanguageCode  string
	CustomPayload json.RawMessage
	FilterValues  []string

	// Clean requests text instead of html payloads on commands that
	// support it.
	Clean bool

	PollInterval time.Duration

	// StartNewConversationOnResumeFailure controls the resume failure
	// policy; nil means true.
	StartNewConversationOnResumeFailure *bool

	// CertificatePins are base64 SPKI sha256 hashes used when
	// certificate pinning is enabled via SetCertificatePinning.
	CertificatePins []string

	// HTTPClient overrides the built-in client entirely.
	HTTPClient Doer

	Clock  Clock
	Logger *zap.Logger
}

// ClientTyping reports the composer bounds returned by Session.ClientTyping.
type ClientTyping struct {
	Length    int
	MaxLength int
}

// Session is the conversation state machine. All exported methods are safe
// for concurrent use; observer callbacks are serialized on one dispatch
// goroutine and never run concurrently with each other.
type Session struct {
	chatURL         string
	configURL       string
	certificatePins []string
	customClient    bool
	clock           Clock
	log             *zap.Logger
	notifier        *notifier

	startOnResumeFailure bool

	mu                           sync.Mutex
	httpClient                   Doer
	conversationID               string
	userToken                    string
	reference                    string
	skill                        string
	clean                        bool
	customPayload                json.RawMessage
	filterValues                 []string
	fileUploadServiceEndpointURL string

	languageCode             string
	vanID                    *int
	chatStatus               ChatStatus
	isBlocked                bool
	allowDeleteConversation  bool
	allowHumanChatFileUpload bool
	maxInputChars            int
	privacyPolicyURL         string

	poll         bool
	pollValue    string
	pollInterval time.Duration
	pollCancel   context.CancelFunc

	lastTyped time.Time

	messages     []APIMessage
	lastResponse *APIMessage

	config       *panel.Config
	customConfig *panel.Config

	// activeFeedback tracks the feedback value last given per response id
	// so a repeated thumbs up/down toggles into the matching remove.
	activeFeedback map[string]FeedbackValue
}

// NewSession builds a session from opts. Call Close when done to stop the
// poll loop and the observer dispatcher.
func NewSession(opts Options) *Session {
	chatURL := opts.ChatURL
	if chatURL == "" {
		chatURL = "https://" + opts.Domain + "/api/chat/v2"
	}
	configURL := opts.ConfigURL
	if configURL == "" {
		configURL = "https://" + opts.Domain + "/api/chat_panel/v2"
	}
	language := opts.LanguageCode
	if language == "" {
		language = defaultLanguageCode
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Session{
		chatURL:              chatURL,
		configURL:            configURL,
		certificatePins:      opts.CertificatePins,
		clock:                clock,
		log:                  log,
		notifier:             newNotifier(),
		startOnResumeFailure: opts.StartNewConversationOnResumeFailure == nil || *opts.StartNewConversationOnResumeFailure,

		userToken:                    opts.UserToken,
		skill:                        opts.Skill,
		clean:                        opts.Clean,
		customPayload:                opts.CustomPayload,
		filterValues:                 opts.FilterValues,
		fileUploadServiceEndpointURL: opts.FileUploadServiceEndpointURL,

		languageCode:   language,
		chatStatus:     ChatStatusVirtualAgent,
		maxInputChars:  defaultMaxInputChars,
		pollInterval:   interval,
		activeFeedback: make(map[string]FeedbackValue),
	}

	if opts.HTTPClient != nil {
		s.httpClient = opts.HTTPClient
		s.customClient = true
	} else {
		s.httpClient = newHTTPClient(nil)
	}

	return s
}

// Close disarms the poll loop and stops observer dispatch. The session
// must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.stopPollingLocked()
	s.mu.Unlock()
	s.notifier.close()
}

// Start begins a conversation. cmd may be nil; unset fields are filled
// with session defaults.
func (s *Session) Start(ctx context.Context, cmd *StartCommand) (*APIMessage, error) {
	if cmd == nil {
		cmd = NewStartCommand()
	}
	return s.send(ctx, cmd)
}

// Stop ends the conversation and resets local conversation state on
// success.
func (s *Session) Stop(ctx context.Context, cmd *StopCommand) (*APIMessage, error) {
	if cmd == nil {
		s.mu.Lock()
		cmd = NewStopCommand(s.conversationID, s.userToken)
		s.mu.Unlock()
	}
	msg, err := s.send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.resetConversationState()
	return msg, nil
}

// Resume continues an existing conversation and returns its history. When
// the server rejects the resume (for instance an expired conversation id)
// and StartNewConversationOnResumeFailure is enabled, a fresh Start is
// issued instead; transport failures are never masked this way.
func (s *Session) Resume(ctx context.Context, cmd *ResumeCommand) (*APIMessage, error) {
	if cmd == nil {
		cmd = NewResumeCommand()
	}
	msg, err := s.send(ctx, cmd)
	if err != nil {
		var serverErr *ServerError
		if s.startOnResumeFailure && errors.As(err, &serverErr) {
			s.log.Info("resume rejected, starting new conversation", zap.String("reason", serverErr.Message))
			return s.Start(ctx, nil)
		}
		return nil, err
	}
	return msg, nil
}

// Delete erases the conversation server-side and resets local conversation
// state on success.
func (s *Session) Delete(ctx context.Context, cmd *DeleteCommand) (*APIMessage, error) {
	if cmd == nil {
		s.mu.Lock()
		cmd = NewDeleteCommand(s.conversationID, s.userToken)
		s.mu.Unlock()
	}
	msg, err := s.send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.resetConversationState()
	return msg, nil
}

// Poll fetches human-chat messages newer than the current poll cursor.
// Mostly internal: the poll loop issues this on a timer, but a caller may
// poll explicitly as well.
func (s *Session) Poll(ctx context.Context, cmd *PollCommand) (*APIMessage, error) {
	if cmd == nil {
		s.mu.Lock()
		cmd = NewPollCommand(s.conversationID, s.userToken, s.pollValue)
		s.mu.Unlock()
	}
	return s.send(ctx, cmd)
}

// PollStop explicitly terminates a human poll sequence.
func (s *Session) PollStop(ctx context.Context, cmd *PollStopCommand) (*APIMessage, error) {
	if cmd == nil {
		s.mu.Lock()
		cmd = NewPollStopCommand(s.conversationID, s.userToken)
		s.mu.Unlock()
	}
	s.mu.Lock()
	s.stopPollingLocked()
	s.mu.Unlock()
	return s.send(ctx, cmd)
}

// Message sends a text chat message. A client echo with a temp id is
// appended to the local history and published before the network command
// is issued, so the message renders even when the send later fails.
func (s *Session) Message(ctx context.Context, value string) (*APIMessage, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		s.notifier.publishResponse(nil, err)
		return nil, err
	}
	cmd := NewPostCommand(PostTypeText)
	cmd.Value = encoded

	s.mu.Lock()
	echo := s.clientEchoLocked([]Element{{Payload: Payload{Text: value}, Type: ElementTypeText}})
	s.messages = append(s.messages, *echo)
	s.mu.Unlock()
	s.notifier.publishResponse(echo, nil)

	return s.send(ctx, cmd)
}

// SendFiles posts uploaded file descriptors; used to complete an
// awaiting_files entity extraction. A local echo with attachment links is
// published immediately.
func (s *Session) SendFiles(ctx context.Context, files []File, message string) (*APIMessage, error) {
	cmd := NewPostCommand(PostTypeFiles)
	cmd.Message = message

	// The upload service spells "mimeType" while the chat API expects all
	// lowercase "mimetype".
	type wireFile struct {
		Filename string `json:"filename"`
		MimeType string `json:"mimetype"`
		URL      string `json:"url"`
	}
	wire := make([]wireFile, 0, len(files))
	for _, f := range files {
		wire = append(wire, wireFile{Filename: f.Filename, MimeType: f.MimeType, URL: f.URL})
	}
	encoded, err := json.Marshal(wire)
	if err != nil {
		s.notifier.publishResponse(nil, err)
		return nil, err
	}
	cmd.Value = encoded

	text := message
	if text == "" {
		text = "file"
		if len(files) > 0 {
			if idx := strings.LastIndex(files[0].Filename, "."); idx >= 0 && idx < len(files[0].Filename)-1 {
				text = "file." + strings.ToLower(files[0].Filename[idx+1:])
			}
		}
	}
	elements := []Element{{Payload: Payload{Text: text}, Type: ElementTypeHTML}}
	if len(files) > 0 {
		links := make([]Link, 0, len(files))
		for _, f := range files {
			links = append(links, Link{Text: f.Filename, Type: LinkTypeExternalLink, URL: f.URL, IsAttachment: true})
		}
		elements = append(elements, Element{Payload: Payload{Links: links}, Type: ElementTypeLinks})
	}

	s.mu.Lock()
	echo := s.clientEchoLocked(elements)
	s.messages = append(s.messages, *echo)
	s.mu.Unlock()
	s.notifier.publishResponse(echo, nil)

	return s.send(ctx, cmd)
}

// Feedback gives thumbs up/down on a single response element. Giving the
// same value twice toggles it off by issuing the matching remove command.
func (s *Session) Feedback(ctx context.Context, id string, value FeedbackValue) (*APIMessage, error) {
	s.mu.Lock()
	switch value {
	case FeedbackPositive, FeedbackNegative:
		if s.activeFeedback[id] == value {
			if value == FeedbackPositive {
				value = FeedbackRemovePositive
			} else {
				value = FeedbackRemoveNegative
			}
			delete(s.activeFeedback, id)
		} else {
			s.activeFeedback[id] = value
		}
	default:
		delete(s.activeFeedback, id)
	}
	s.mu.Unlock()

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	cmd := NewPostCommand(PostTypeFeedback)
	cmd.ID = id
	cmd.Value = encoded
	return s.send(ctx, cmd)
}

// ConversationFeedback rates the conversation as a whole. Ratings above 1
// clamp to 1.
func (s *Session) ConversationFeedback(ctx context.Context, rating int, text string) (*APIMessage, error) {
	if rating > 1 {
		rating = 1
	}
	s.mu.Lock()
	cmd := NewFeedbackCommand(s.conversationID, s.userToken, FeedbackRating{Rating: rating, Text: text})
	s.mu.Unlock()
	return s.send(ctx, cmd)
}

// ActionButton triggers the action behind an action_link button.
func (s *Session) ActionButton(ctx context.Context, linkID string) (*APIMessage, error) {
	cmd := NewPostCommand(PostTypeActionLink)
	cmd.ID = linkID
	return s.send(ctx, cmd)
}

// URLButton logs a click on an external link; it does not trigger a
// server response.
func (s *Session) URLButton(ctx context.Context, linkID string) (*APIMessage, error) {
	cmd := NewPostCommand(PostTypeExternalLink)
	cmd.ID = linkID
	return s.send(ctx, cmd)
}

// TriggerAction triggers an action flow element directly by id.
func (s *Session) TriggerAction(ctx context.Context, actionID string) (*APIMessage, error) {
	cmd := NewPostCommand(PostTypeTriggerAction)
	cmd.ID = actionID
	return s.send(ctx, cmd)
}

// SmartReply requests reply suggestions for a draft message.
func (s *Session) SmartReply(ctx context.Context, value string) (*APIMessage, error) {
	s.mu.Lock()
	cmd := NewSmartReplyCommand(s.conversationID, s.userToken, value)
	s.mu.Unlock()
	return s.send(ctx, cmd)
}

// HumanChatPost posts a message directly to the human chat channel.
func (s *Session) HumanChatPost(ctx context.Context, value string) (*APIMessage, error) {
	s.mu.Lock()
	cmd := NewHumanChatPostCommand(s.conversationID, s.userToken, value)
	s.mu.Unlock()
	return s.send(ctx, cmd)
}

// LoginEvent reports a mid-conversation authentication with the given
// user token.
func (s *Session) LoginEvent(ctx context.Context, userToken string) (*APIMessage, error) {
	s.mu.Lock()
	cmd := NewLoginEventCommand(s.conversationID, userToken)
	s.mu.Unlock()
	return s.send(ctx, cmd)
}

// Typing tells the server the user is typing. Suppressed entirely while
// the virtual agent is handling the conversation, and rate limited to one
// command per 5s otherwise; suppressed calls return (nil, nil).
func (s *Session) Typing(ctx context.Context) (*APIMessage, error) {
	s.mu.Lock()
	if s.chatStatus == ChatStatusVirtualAgent {
		s.mu.Unlock()
		return nil, nil
	}
	now := s.clock.Now()
	if !s.lastTyped.IsZero() && now.Sub(s.lastTyped) < typingInterval {
		s.mu.Unlock()
		return nil, nil
	}
	s.lastTyped = now
	cmd := NewTypingCommand(s.conversationID, s.userToken)
	s.mu.Unlock()
	return s.send(ctx, cmd)
}

// ClientTyping reports composer bounds for the current draft and fires the
// rate-limited TYPING command as a side effect. Returns zeroes while the
// conversation is blocked.
func (s *Session) ClientTyping(ctx context.Context, text string) ClientTyping {
	s.mu.Lock()
	if s.isBlocked {
		s.mu.Unlock()
		return ClientTyping{}
	}
	ct := ClientTyping{Length: len([]rune(text)), MaxLength: s.maxInputChars}
	s.mu.Unlock()

	if _, err := s.Typing(ctx); err != nil {
		s.log.Debug("typing command failed", zap.Error(err))
	}
	return ct
}

// Download fetches the conversation transcript as text; the result is
// returned in APIMessage.Download. userToken overrides the session's token
// when non-empty.
func (s *Session) Download(ctx context.Context, userToken string) (*APIMessage, error) {
	s.mu.Lock()
	if userToken == "" {
		userToken = s.userToken
	}
	cmd := NewDownloadCommand(s.conversationID, userToken)
	url := s.chatURL
	s.mu.Unlock()

	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	raw, err := s.postRaw(ctx, url, body)
	if err != nil {
		return nil, err
	}
	return &APIMessage{Download: string(raw)}, nil
}

// UserActionMessage appends a local-only client message, used to display
// action link clicks as user chat bubbles. Nothing is sent to the server.
func (s *Session) UserActionMessage(text string) {
	s.mu.Lock()
	now := s.clock.Now()
	msg := &APIMessage{Response: &Response{
		ID:          uuid.NewString(),
		Source:      SourceClient,
		Language:    s.languageCode,
		Elements:    []Element{{Payload: Payload{Text: text}, Type: ElementTypeText}},
		DateCreated: &now,
	}}
	s.messages = append(s.messages, *msg)
	s.mu.Unlock()
	s.notifier.publishResponse(msg, nil)
}

// GetConfig fetches the chat panel configuration, converting the legacy
// schema to the current one, caches it and publishes it to config
// observers.
func (s *Session) GetConfig(ctx context.Context) (*panel.Config, error) {
	cmd := NewConfigCommand()
	s.mu.Lock()
	if s.vanID != nil {
		v := *s.vanID
		cmd.VanID = &v
	}
	url := s.configURL
	s.mu.Unlock()

	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	raw, err := s.postRaw(ctx, url, body)
	if err != nil {
		return nil, err
	}

	var legacy panel.LegacyConfig
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, &DecodeError{StatusCode: 200, Body: string(raw), Err: err}
	}
	cfg := panel.Convert(&legacy)

	s.mu.Lock()
	s.config = cfg
	if s.fileUploadServiceEndpointURL == "" && cfg.ChatPanel != nil && cfg.ChatPanel.Settings != nil {
		s.fileUploadServiceEndpointURL = cfg.ChatPanel.Settings.FileUploadServiceEndpointURL
	}
	s.mu.Unlock()

	s.notifier.publishConfigUpdate(cfg)
	return cfg, nil
}

// OnReady returns the cached config or fetches it when absent.
func (s *Session) OnReady(ctx context.Context) (*panel.Config, error) {
	s.mu.Lock()
	cfg := s.config
	s.mu.Unlock()
	if cfg != nil {
		return cfg, nil
	}
	return s.GetConfig(ctx)
}

// AddMessageObserver subscribes to every processed envelope and failure.
func (s *Session) AddMessageObserver(obs MessageObserver) *Subscription {
	return s.notifier.addMessageObserver(obs)
}

// AddConfigObserver subscribes to panel config updates.
func (s *Session) AddConfigObserver(obs ConfigObserver) *Subscription {
	return s.notifier.addConfigObserver(obs)
}

// AddEventObserver subscribes to server-emitted inline events.
func (s *Session) AddEventObserver(obs EventObserver) *Subscription {
	return s.notifier.addEventObserver(obs)
}

// send is the single command path: fill session defaults, POST, decode the
// envelope, reconcile session state, fan out.
func (s *Session) send(ctx context.Context, cmd any) (*APIMessage, error) {
	s.prepare(cmd)

	body, err := json.Marshal(cmd)
	if err != nil {
		err = fmt.Errorf("encode command: %w", err)
		s.notifier.publishResponse(nil, err)
		return nil, err
	}

	s.mu.Lock()
	url := s.chatURL
	s.mu.Unlock()

	raw, err := s.postRaw(ctx, url, body)
	if err != nil {
		s.notifier.publishResponse(nil, err)
		return nil, err
	}

	var msg APIMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		derr := &DecodeError{StatusCode: 200, Body: string(raw), Err: err}
		s.notifier.publishResponse(nil, derr)
		return nil, derr
	}

	s.mu.Lock()
	if msg.PostedID > 0 {
		s.pollValue = strconv.Itoa(msg.PostedID)
	}
	s.messages = append(s.messages, msg)
	refetchConfig, herr := s.handleAPIMessageLocked(&msg)
	s.mu.Unlock()

	if herr != nil {
		s.notifier.publishResponse(nil, herr)
		return nil, herr
	}

	s.notifier.publishResponse(&msg, nil)
	for _, ev := range msg.events() {
		s.notifier.publishEvent(ev.Type, ev.Detail)
	}

	if refetchConfig {
		if _, err := s.GetConfig(ctx); err != nil {
			s.log.Warn("config refetch after van change failed", zap.Error(err))
		}
	}

	return &msg, nil
}

// prepare fills session defaults into fields the caller left unset.
// Defaults are applied here, never by callers.
func (s *Session) prepare(cmd any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case *StartCommand:
		if c.Command == "" {
			c.Command = cmdStart
		}
		if c.UserToken == "" {
			c.UserToken = s.userToken
		}
		if c.Skill == "" {
			c.Skill = s.skill
		}
		if c.CustomPayload == nil {
			c.CustomPayload = s.customPayload
		}
		if c.Language == "" {
			c.Language = s.languageCode
		}
		if c.FilterValues == nil {
			c.FilterValues = s.filterValues
		}
		if c.Clean == nil && s.clean {
			clean := true
			c.Clean = &clean
		}
	case *ResumeCommand:
		if c.Command == "" {
			c.Command = cmdResume
		}
		if c.ConversationID == "" {
			c.ConversationID = s.conversationID
		}
		if c.UserToken == "" {
			c.UserToken = s.userToken
		}
		if c.Skill == "" {
			c.Skill = s.skill
		}
		if c.FilterValues == nil {
			c.FilterValues = s.filterValues
		}
		if c.Clean == nil && s.clean {
			clean := true
			c.Clean = &clean
		}
	case *PostCommand:
		if c.Command == "" {
			c.Command = cmdPost
		}
		if c.ConversationID == "" {
			c.ConversationID = s.conversationID
		}
		if c.UserToken == "" {
			c.UserToken = s.userToken
		}
		if c.Skill == "" {
			c.Skill = s.skill
		}
		if c.CustomPayload == nil {
			c.CustomPayload = s.customPayload
		}
		if c.Clean == nil && s.clean {
			clean := true
			c.Clean = &clean
		}
		if c.FilterValues == nil {
			c.FilterValues = s.filterValues
		}
	}
}

// handleAPIMessageLocked reconciles session state with a command response.
// Absent state fields keep their previous value (the server omits
// unchanged fields); the poll loop is rearmed or disarmed from the fresh
// poll/chat_status pair. Returns refetchConfig=true when the responding
// van differs from the session's, which implies a different bot
// configuration.
func (s *Session) handleAPIMessageLocked(msg *APIMessage) (refetchConfig bool, err error) {
	conv := msg.Conversation
	if conv == nil {
		return false, ErrNoConversation
	}

	s.conversationID = conv.ID
	if conv.Reference != "" {
		s.reference = conv.Reference
	}

	state := &conv.State
	if state.AllowDeleteConversation != nil {
		s.allowDeleteConversation = *state.AllowDeleteConversation
	}
	s.chatStatus = state.ChatStatus
	s.isBlocked = state.IsBlocked != nil && *state.IsBlocked
	if state.MaxInputChars != nil {
		s.maxInputChars = *state.MaxInputChars
	}
	if state.AllowHumanChatFileUpload != nil {
		s.allowHumanChatFileUpload = *state.AllowHumanChatFileUpload
	}
	if state.PrivacyPolicyURL != nil {
		s.privacyPolicyURL = *state.PrivacyPolicyURL
	}
	s.lastResponse = msg

	if id := latestResponseID(msg); id != "" {
		s.pollValue = id
	}

	if state.Poll != nil {
		s.poll = *state.Poll
	}
	if state.Poll != nil && *state.Poll && state.ChatStatus.IsHuman() {
		s.startPollingLocked()
	} else {
		s.stopPollingLocked()
		s.pollValue = ""
	}

	if r := msg.Response; r != nil {
		if r.Language != "" {
			s.languageCode = r.Language
		}
		if !intPtrEqual(s.vanID, r.VanID) {
			s.vanID = copyIntPtr(r.VanID)
			refetchConfig = true
		}
	} else if n := len(msg.Responses); n > 0 {
		if lang := msg.Responses[n-1].Language; lang != "" {
			s.languageCode = lang
		}
	}

	return refetchConfig, nil
}

// startPollingLocked cancels any running loop and schedules a new one; the
// first tick fires one full interval from now.
func (s *Session) startPollingLocked() {
	if s.pollCancel != nil {
		s.pollCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	go s.pollLoop(ctx, s.pollInterval)
}

func (s *Session) stopPollingLocked() {
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
}

// pollLoop drives the human-chat poll. Tick failures are transient by
// design: the loop keeps running until cancelled, and each response it
// feeds through the command path may itself rearm or disarm the loop.
func (s *Session) pollLoop(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := s.Poll(ctx, nil); err != nil {
				s.log.Debug("poll tick failed", zap.Error(err))
			}
		}
	}
}

// resetConversationState clears conversation identity, history, token and
// cursor, and disarms the poll loop. The session stays usable for a new
// Start.
func (s *Session) resetConversationState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.conversationID = ""
	s.reference = ""
	s.userToken = ""
	s.lastResponse = nil
	s.pollValue = ""
	s.activeFeedback = make(map[string]FeedbackValue)
	s.stopPollingLocked()
}

func (s *Session) clientEchoLocked(elements []Element) *APIMessage {
	now := s.clock.Now()
	return &APIMessage{Response: &Response{
		ID:          "temp-" + uuid.NewString(),
		Source:      SourceClient,
		Language:    s.languageCode,
		Elements:    elements,
		DateCreated: &now,
		IsTempID:    true,
	}}
}

func latestResponseID(msg *APIMessage) string {
	if msg.Response != nil && msg.Response.ID != "" {
		return msg.Response.ID
	}
	if n := len(msg.Responses); n > 0 {
		return msg.Responses[n-1].ID
	}
	return ""
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
