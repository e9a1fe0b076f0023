package chat

import (
	"encoding/json"
	"time"
)

// ChatStatus reports who is currently handling the conversation.
type ChatStatus string

const (
	ChatStatusVirtualAgent     ChatStatus = "virtual_agent"
	ChatStatusInHumanChatQueue ChatStatus = "in_human_chat_queue"
	ChatStatusAssignedToHuman  ChatStatus = "assigned_to_human"
)

// IsHuman reports whether the conversation is queued for or assigned to a
// human operator, i.e. whether the client should poll for new messages.
func (s ChatStatus) IsHuman() bool {
	return s == ChatStatusInHumanChatQueue || s == ChatStatusAssignedToHuman
}

// SourceType identifies the author of a response.
type SourceType string

const (
	SourceBot    SourceType = "bot"
	SourceClient SourceType = "client"
)

// ElementType indicates how a response element should be rendered.
type ElementType string

const (
	ElementTypeText    ElementType = "text"
	ElementTypeHTML    ElementType = "html"
	ElementTypeImage   ElementType = "image"
	ElementTypeVideo   ElementType = "video"
	ElementTypeJSON    ElementType = "json"
	ElementTypeLinks   ElementType = "links"
	ElementTypeUnknown ElementType = "unknown"
)

// UnmarshalJSON maps unrecognized type strings to ElementTypeUnknown so a
// new server-side element type never fails decoding of the whole envelope.
func (t *ElementType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = ElementTypeUnknown
		return nil
	}
	switch ElementType(s) {
	case ElementTypeText, ElementTypeHTML, ElementTypeImage, ElementTypeVideo, ElementTypeJSON, ElementTypeLinks:
		*t = ElementType(s)
	default:
		*t = ElementTypeUnknown
	}
	return nil
}

// LinkType distinguishes buttons that trigger a server action from plain
// external URLs.
type LinkType string

const (
	LinkTypeActionLink   LinkType = "action_link"
	LinkTypeExternalLink LinkType = "external_link"
)

// FunctionType is set on approval-style links.
type FunctionType string

const (
	FunctionApprove FunctionType = "APPROVE"
	FunctionDeny    FunctionType = "DENY"
)

// APIMessage is the envelope every chat endpoint response decodes into.
// Exactly one interpretation applies per envelope; conversation is present
// on every command response, response/responses on content-bearing ones.
type APIMessage struct {
	Conversation *ConversationResult `json:"conversation,omitempty"`
	Response     *Response           `json:"response,omitempty"`
	Responses    []Response          `json:"responses,omitempty"`
	SmartReplies *SmartReply         `json:"smart_reply,omitempty"`
	PostedID     int                 `json:"posted_id,omitempty"`

	// Download carries the conversation transcript returned by the
	// DOWNLOAD command. Filled locally, never decoded from JSON.
	Download string `json:"-"`
}

// Response is a single message in the conversation.
type Response struct {
	ID          string      `json:"id"`
	Source      SourceType  `json:"source"`
	Language    string      `json:"language"`
	Elements    []Element   `json:"elements"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
	DateCreated *time.Time  `json:"date_created,omitempty"`
	Feedback    string      `json:"feedback,omitempty"`
	SourceURL   string      `json:"source_url,omitempty"`
	LinkText    string      `json:"link_text,omitempty"`
	Error       string      `json:"error,omitempty"`
	VanID       *int        `json:"van_id,omitempty"`

	// IsTempID marks locally synthesized client echoes whose id has not
	// been reconciled with a server-assigned one.
	IsTempID bool `json:"-"`
}

// Element is one renderable part of a response.
type Element struct {
	Payload Payload     `json:"payload"`
	Type    ElementType `json:"type"`
}

// Payload is the per-type element data. Only the fields matching the
// element type are set; JSON carries arbitrary generic-card documents the
// core passes through opaquely.
type Payload struct {
	HTML       string          `json:"html,omitempty"`
	Text       string          `json:"text,omitempty"`
	URL        string          `json:"url,omitempty"`
	Source     string          `json:"source,omitempty"`
	FullScreen *bool           `json:"fullScreen,omitempty"`
	JSON       json.RawMessage `json:"json,omitempty"`
	Links      []Link          `json:"links,omitempty"`
}

// Link is a button or URL offered to the user.
type Link struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Type     LinkType     `json:"type"`
	Function FunctionType `json:"function,omitempty"`
	Question string       `json:"question,omitempty"`
	URL      string       `json:"url,omitempty"`

	VanBaseURL      string `json:"van_base_url,omitempty"`
	VanName         string `json:"van_name,omitempty"`
	VanOrganization string `json:"van_organization,omitempty"`

	// IsAttachment marks file links synthesized for local upload echoes.
	IsAttachment bool `json:"-"`
}

// ConversationResult identifies the conversation and carries its state.
type ConversationResult struct {
	ID        string            `json:"id,omitempty"`
	Reference string            `json:"reference,omitempty"`
	State     ConversationState `json:"state"`
}

// ConversationState is the server's view of the session. Optional fields
// are pointers: the server omits unchanged fields and the session keeps its
// previous value (partial-update semantics).
type ConversationState struct {
	ChatStatus               ChatStatus     `json:"chat_status"`
	IsBlocked                *bool          `json:"is_blocked,omitempty"`
	AuthenticatedUserID      string         `json:"authenticated_user_id,omitempty"`
	UnauthConversationID     string         `json:"unauth_conversation_id,omitempty"`
	PrivacyPolicyURL         *string        `json:"privacy_policy_url,omitempty"`
	AllowDeleteConversation  *bool          `json:"allow_delete_conversation,omitempty"`
	AllowHumanChatFileUpload *bool          `json:"allow_human_chat_file_upload,omitempty"`
	Poll                     *bool          `json:"poll,omitempty"`
	HumanIsTyping            *bool          `json:"human_is_typing,omitempty"`
	MaxInputChars            *int           `json:"max_input_chars,omitempty"`
	Skill                    string         `json:"skill,omitempty"`
	AwaitingFiles            *AwaitingFiles `json:"awaiting_files,omitempty"`
}

// AwaitingFiles is present while a file upload entity extraction is active.
type AwaitingFiles struct {
	AcceptedTypes    []string `json:"accepted_types,omitempty"`
	MaxNumberOfFiles *int     `json:"max_number_of_files,omitempty"`
}

// SmartReply is the result of a SMARTREPLY command.
type SmartReply struct {
	ImportantWords SmartReplyWords `json:"important_words"`
	VA             []SmartReplyVA  `json:"va"`
}

type SmartReplyVA struct {
	Links    []Link   `json:"links"`
	Messages []string `json:"messages"`
	Score    int      `json:"score"`
	SubTitle string   `json:"subTitle"`
}

type SmartReplyWords struct {
	Original  []string `json:"original"`
	Processed []string `json:"processed"`
}

// File describes an uploaded file as the chat API expects it.
type File struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url"`
}

// uploadedFiles is the upload service's success body.
type uploadedFiles struct {
	Files []File `json:"files"`
}

// EmitEvent is the out-of-band signaling payload piggybacked on JSON
// elements: {"emitEvent": {"type": ..., "detail": ..., "emitOnResume": ...}}.
type EmitEvent struct {
	Type         string          `json:"type"`
	Detail       json.RawMessage `json:"detail,omitempty"`
	EmitOnResume bool            `json:"emitOnResume,omitempty"`
}

type emitEventEnvelope struct {
	EmitEvent *EmitEvent `json:"emitEvent"`
}

// events collects every emitEvent embedded in the envelope's responses, in
// order of appearance (historic responses first, single response last).
func (m *APIMessage) events() []EmitEvent {
	var out []EmitEvent
	collect := func(r *Response) {
		for _, el := range r.Elements {
			if el.Type != ElementTypeJSON || len(el.Payload.JSON) == 0 {
				continue
			}
			var env emitEventEnvelope
			if err := json.Unmarshal(el.Payload.JSON, &env); err != nil {
				continue
			}
			if env.EmitEvent != nil && env.EmitEvent.Type != "" {
				out = append(out, *env.EmitEvent)
			}
		}
	}
	for i := range m.Responses {
		collect(&m.Responses[i])
	}
	if m.Response != nil {
		collect(m.Response)
	}
	return out
}
