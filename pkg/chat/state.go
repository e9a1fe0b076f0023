package chat

import (
	"encoding/json"

	"github.com/vanchat/vanchat/pkg/panel"
)

// ConversationID returns the active conversation id, or "" when no
// conversation has been started or it was stopped/deleted.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// SetConversationID primes the session with a stored conversation id so
// Resume can continue it without a prior Start.
func (s *Session) SetConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
}

// UserToken returns the session's user token; it takes precedence over the
// conversation id on resume when set.
func (s *Session) UserToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userToken
}

func (s *Session) SetUserToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userToken = token
}

// Reference returns the server's opaque correlation id.
func (s *Session) Reference() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference
}

// LanguageCode returns the current BCP-47 language of the bot.
func (s *Session) LanguageCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.languageCode
}

// ChatStatus returns who currently handles the conversation.
func (s *Session) ChatStatus() ChatStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatStatus
}

// IsBlocked reports whether message composition is disabled.
func (s *Session) IsBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isBlocked
}

func (s *Session) AllowDeleteConversation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowDeleteConversation
}

func (s *Session) AllowHumanChatFileUpload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowHumanChatFileUpload
}

func (s *Session) MaxInputChars() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInputChars
}

func (s *Session) PrivacyPolicyURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.privacyPolicyURL
}

// VanID returns the active virtual-agent-network node id, or nil.
func (s *Session) VanID() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIntPtr(s.vanID)
}

// PollValue returns the current poll cursor, or "" when the loop is
// disarmed.
func (s *Session) PollValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollValue
}

// IsPolling reports whether the poll loop is armed.
func (s *Session) IsPolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCancel != nil
}

// Messages returns a copy of the local history, locally synthesized
// client echoes included.
func (s *Session) Messages() []APIMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]APIMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastResponse returns the most recently applied envelope.
func (s *Session) LastResponse() *APIMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResponse
}

// Config returns the effective panel config: the caller-supplied custom
// config when present, else the last fetched one.
func (s *Session) Config() *panel.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customConfig != nil {
		return s.customConfig
	}
	return s.config
}

// CustomConfig returns the caller override, or nil.
func (s *Session) CustomConfig() *panel.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customConfig
}

// SetCustomConfig overrides the server-provided panel config.
func (s *Session) SetCustomConfig(cfg *panel.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customConfig = cfg
}

func (s *Session) SetSkill(skill string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skill = skill
}

func (s *Session) SetCustomPayload(payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customPayload = payload
}

// SetFilterValues sets the segmentation tags forwarded on start/resume.
func (s *Session) SetFilterValues(values []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filterValues = values
}

func (s *Session) SetFileUploadServiceEndpointURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileUploadServiceEndpointURL = url
}
