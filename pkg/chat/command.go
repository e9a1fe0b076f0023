package chat

import "encoding/json"

// Wire values of the "command" field. The field is part of the protocol
// itself; no client-local discriminator is ever added to the payload.
const (
	cmdStart         = "START"
	cmdStop          = "STOP"
	cmdResume        = "RESUME"
	cmdDelete        = "DELETE"
	cmdPoll          = "POLL"
	cmdPollStop      = "POLLSTOP"
	cmdPost          = "POST"
	cmdTyping        = "TYPING"
	cmdFeedback      = "FEEDBACK"
	cmdSmartReply    = "SMARTREPLY"
	cmdHumanChatPost = "HUMANCHATPOST"
	cmdLoginEvent    = "LOGINEVENT"
	cmdDownload      = "DOWNLOAD"
	cmdConfig        = "CONFIG"
)

// PostType selects the POST command variant.
type PostType string

const (
	PostTypeText          PostType = "text"
	PostTypeFeedback      PostType = "feedback"
	PostTypeFiles         PostType = "files"
	PostTypeActionLink    PostType = "action_link"
	PostTypeExternalLink  PostType = "external_link"
	PostTypeTriggerAction PostType = "trigger_action"
)

// FeedbackValue is the value of a message feedback POST.
type FeedbackValue string

const (
	FeedbackPositive       FeedbackValue = "positive"
	FeedbackNegative       FeedbackValue = "negative"
	FeedbackRemovePositive FeedbackValue = "remove-positive"
	FeedbackRemoveNegative FeedbackValue = "remove-negative"
)

// StartCommand begins a new conversation. Fields the caller leaves unset
// are filled with session defaults before sending.
type StartCommand struct {
	Command            string          `json:"command"`
	UserToken          string          `json:"user_token,omitempty"`
	Skill              string          `json:"skill,omitempty"`
	CustomPayload      json.RawMessage `json:"custom_payload,omitempty"`
	Language           string          `json:"language,omitempty"`
	FilterValues       []string        `json:"filter_values,omitempty"`
	ContextIntentID    *int            `json:"context_intent_id,omitempty"`
	TriggerAction      *int            `json:"trigger_action,omitempty"`
	AuthTriggerAction  *int            `json:"auth_trigger_action,omitempty"`
	SkipWelcomeMessage *bool           `json:"skip_welcome_message,omitempty"`
	Clean              *bool           `json:"clean,omitempty"`
}

func NewStartCommand() *StartCommand { return &StartCommand{Command: cmdStart} }

// StopCommand ends the conversation; the session resets its local state
// when the server acknowledges it.
type StopCommand struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserToken      string `json:"user_token,omitempty"`
}

func NewStopCommand(conversationID, userToken string) *StopCommand {
	return &StopCommand{Command: cmdStop, ConversationID: conversationID, UserToken: userToken}
}

// ResumeCommand continues an existing conversation and returns its history.
type ResumeCommand struct {
	Command        string          `json:"command"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserToken      string          `json:"user_token,omitempty"`
	Skill          string          `json:"skill,omitempty"`
	Language       string          `json:"language,omitempty"`
	CustomPayload  json.RawMessage `json:"custom_payload,omitempty"`
	FilterValues   []string        `json:"filter_values,omitempty"`
	Clean          *bool           `json:"clean,omitempty"`
}

func NewResumeCommand() *ResumeCommand { return &ResumeCommand{Command: cmdResume} }

// DeleteCommand erases the conversation server-side.
type DeleteCommand struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserToken      string `json:"user_token,omitempty"`
}

func NewDeleteCommand(conversationID, userToken string) *DeleteCommand {
	return &DeleteCommand{Command: cmdDelete, ConversationID: conversationID, UserToken: userToken}
}

// PollCommand fetches human-chat messages newer than Value (the cursor).
type PollCommand struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserToken      string `json:"user_token,omitempty"`
	Value          string `json:"value"`
}

func NewPollCommand(conversationID, userToken, value string) *PollCommand {
	return &PollCommand{Command: cmdPoll, ConversationID: conversationID, UserToken: userToken, Value: value}
}

// PollStopCommand terminates a human poll sequence explicitly.
type PollStopCommand struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserToken      string `json:"user_token,omitempty"`
}

func NewPollStopCommand(conversationID, userToken string) *PollStopCommand {
	return &PollStopCommand{Command: cmdPollStop, ConversationID: conversationID, UserToken: userToken}
}

// PostCommand is the shared shape of all POST variants.
type PostCommand struct {
	Command        string          `json:"command"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserToken      string          `json:"user_token,omitempty"`
	Type           PostType        `json:"type"`
	ID             string          `json:"id,omitempty"`
	Value          json.RawMessage `json:"value,omitempty"`
	Message        string          `json:"message,omitempty"`
	Skill          string          `json:"skill,omitempty"`
	CustomPayload  json.RawMessage `json:"custom_payload,omitempty"`
	Clean          *bool           `json:"clean,omitempty"`
	FilterValues   []string        `json:"filter_values,omitempty"`
}

func NewPostCommand(postType PostType) *PostCommand {
	return &PostCommand{Command: cmdPost, Type: postType}
}

// TypingCommand tells the server the client is typing. Only meaningful in
// human chat; the session suppresses it otherwise.
type TypingCommand struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserToken      string `json:"user_token,omitempty"`
}

func NewTypingCommand(conversationID, userToken string) *TypingCommand {
	return &TypingCommand{Command: cmdTyping, ConversationID: conversationID, UserToken: userToken}
}

// FeedbackRating carries conversation-level feedback.
type FeedbackRating struct {
	Rating int    `json:"rating"`
	Text   string `json:"text,omitempty"`
}

// FeedbackCommand submits conversation feedback.
type FeedbackCommand struct {
	Command        string         `json:"command"`
	ConversationID string         `json:"conversation_id,omitempty"`
	UserToken      string         `json:"user_token,omitempty"`
	Value          FeedbackRating `json:"value"`
}

func NewFeedbackCommand(conversationID, userToken string, value FeedbackRating) *FeedbackCommand {
	return &FeedbackCommand{Command: cmdFeedback, ConversationID: conversationID, UserToken: userToken, Value: value}
}

// SmartReplyCommand requests smart-reply suggestions for a draft message.
type SmartReplyCommand struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserToken      string `json:"user_token,omitempty"`
	Value          string `json:"value"`
}

func NewSmartReplyCommand(conversationID, userToken, value string) *SmartReplyCommand {
	return &SmartReplyCommand{Command: cmdSmartReply, ConversationID: conversationID, UserToken: userToken, Value: value}
}

// HumanChatPostCommand posts a message directly to a human operator.
type HumanChatPostCommand struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserToken      string `json:"user_token,omitempty"`
	Value          string `json:"value"`
}

func NewHumanChatPostCommand(conversationID, userToken, value string) *HumanChatPostCommand {
	return &HumanChatPostCommand{Command: cmdHumanChatPost, ConversationID: conversationID, UserToken: userToken, Value: value}
}

// LoginEventCommand reports that the user authenticated mid-conversation.
type LoginEventCommand struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserToken      string `json:"user_token,omitempty"`
}

func NewLoginEventCommand(conversationID, userToken string) *LoginEventCommand {
	return &LoginEventCommand{Command: cmdLoginEvent, ConversationID: conversationID, UserToken: userToken}
}

// DownloadCommand requests the conversation transcript as text.
type DownloadCommand struct {
	Command        string `json:"command"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserToken      string `json:"user_token,omitempty"`
}

func NewDownloadCommand(conversationID, userToken string) *DownloadCommand {
	return &DownloadCommand{Command: cmdDownload, ConversationID: conversationID, UserToken: userToken}
}

// ConfigCommand fetches the chat panel configuration.
type ConfigCommand struct {
	Command string `json:"command"`
	VanID   *int   `json:"van_id,omitempty"`
}

func NewConfigCommand() *ConfigCommand { return &ConfigCommand{Command: cmdConfig} }
