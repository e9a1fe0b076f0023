// Package panel holds the chat panel configuration schemas: the legacy
// flat v2 schema served by older backends and the nested v3 schema the SDK
// exposes. Colors are kept as CSS hex strings; the core passes all styling
// through opaquely and applies no defaults; defaulting happens at the
// point of use.
package panel

import "encoding/json"

// Pace configures the speed with which replies are shown to the user.
type Pace string

const (
	PaceGlacial    Pace = "glacial"
	PaceSlower     Pace = "slower"
	PaceSlow       Pace = "slow"
	PaceNormal     Pace = "normal"
	PaceFast       Pace = "fast"
	PaceFaster     Pace = "faster"
	PaceSupersonic Pace = "supersonic"
)

// AvatarShape is the agent avatar display shape.
type AvatarShape string

const (
	AvatarRounded AvatarShape = "rounded"
	AvatarSquared AvatarShape = "squared"
)

// ButtonType is the display variant of link buttons.
type ButtonType string

const (
	// ButtonTypeButton is the default button style.
	ButtonTypeButton ButtonType = "button"
	// ButtonTypeBullet renders links as an inline list with markers.
	ButtonTypeBullet ButtonType = "bullet"
)

// LinkDisplayStyle is the v2 ancestor of ButtonType.
type LinkDisplayStyle string

const (
	LinkDisplayBelow  LinkDisplayStyle = "below"
	LinkDisplayInside LinkDisplayStyle = "inside"
)

// Filter is one selectable user-group filter.
type Filter struct {
	ID     int      `json:"id"`
	Title  string   `json:"title"`
	Values []string `json:"values"`
}

// Messages holds the translatable panel strings for one language.
type Messages struct {
	Back                  string `json:"back,omitempty"`
	CloseWindow           string `json:"close.window,omitempty"`
	ComposeCharactersUsed string `json:"compose.characters.used,omitempty"`
	ComposePlaceholder    string `json:"compose.placeholder,omitempty"`
	DeleteConversation    string `json:"delete.conversation,omitempty"`
	DownloadConversation  string `json:"download.conversation,omitempty"`
	FeedbackPlaceholder   string `json:"feedback.placeholder,omitempty"`
	FeedbackPrompt        string `json:"feedback.prompt,omitempty"`
	FeedbackThumbsDown    string `json:"feedback.thumbs.down,omitempty"`
	FeedbackThumbsUp      string `json:"feedback.thumbs.up,omitempty"`
	FilterSelect          string `json:"filter.select,omitempty"`
	HeaderText            string `json:"header.text,omitempty"`
	LoggedIn              string `json:"logged.in,omitempty"`
	MessageThumbsDown     string `json:"message.thumbs.down,omitempty"`
	MessageThumbsUp       string `json:"message.thumbs.up,omitempty"`
	MinimizeWindow        string `json:"minimize.window,omitempty"`
	OpenMenu              string `json:"open.menu,omitempty"`
	OpensInNewTab         string `json:"opens.in.new.tab,omitempty"`
	PrivacyPolicy         string `json:"privacy.policy,omitempty"`
	SubmitFeedback        string `json:"submit.feedback,omitempty"`
	SubmitMessage         string `json:"submit.message,omitempty"`
	TextTooLong           string `json:"text.too.long,omitempty"`
	UploadFile            string `json:"upload.file,omitempty"`
	UploadFileError       string `json:"upload.file.error,omitempty"`
	UploadFileProgress    string `json:"upload.file.progress,omitempty"`
	UploadFileSuccess     string `json:"upload.file.success,omitempty"`
}

// DefaultMessages returns the built-in English strings used when a field
// is absent from the server config.
func DefaultMessages() Messages {
	return Messages{
		Back:                  "Back",
		CloseWindow:           "Close",
		ComposeCharactersUsed: "{0} out of {1} characters used",
		ComposePlaceholder:    "Type in here",
		DeleteConversation:    "Delete conversation",
		DownloadConversation:  "Download conversation",
		FeedbackPlaceholder:   "Write in your feedback here",
		FeedbackPrompt:        "Do you want to give me feedback?",
		FeedbackThumbsDown:    "Not satisfied with conversation",
		FeedbackThumbsUp:      "Satisfied with conversation",
		FilterSelect:          "Select user group",
		HeaderText:            "Conversational AI",
		LoggedIn:              "Secure chat",
		MessageThumbsDown:     "Not satisfied with answer",
		MessageThumbsUp:       "Satisfied with answer",
		MinimizeWindow:        "Minimize window",
		OpenMenu:              "Open menu",
		OpensInNewTab:         "Opens in new tab",
		PrivacyPolicy:         "Privacy policy",
		SubmitFeedback:        "Send",
		SubmitMessage:         "Send",
		TextTooLong:           "The message cannot be longer than {0} characters",
		UploadFile:            "Upload image",
		UploadFileError:       "Upload failed",
		UploadFileProgress:    "Uploading ...",
		UploadFileSuccess:     "Upload successful",
	}
}

// LegacyConfig is the flat v2 schema served by the configuration endpoint.
type LegacyConfig struct {
	PrimaryColor                 string              `json:"primaryColor,omitempty"`
	ContrastColor                string              `json:"contrastColor,omitempty"`
	ClientMessageBackground      string              `json:"clientMessageBackground,omitempty"`
	ClientMessageColor           string              `json:"clientMessageColor,omitempty"`
	ServerMessageBackground      string              `json:"serverMessageBackground,omitempty"`
	ServerMessageColor           string              `json:"serverMessageColor,omitempty"`
	LinkBelowBackground          string              `json:"linkBelowBackground,omitempty"`
	LinkBelowColor               string              `json:"linkBelowColor,omitempty"`
	AvatarStyle                  AvatarShape         `json:"avatarStyle,omitempty"`
	LinkDisplayStyle             LinkDisplayStyle    `json:"linkDisplayStyle,omitempty"`
	RequestConversationFeedback  *bool               `json:"requestConversationFeedback,omitempty"`
	RememberConversation         *bool               `json:"rememberConversation,omitempty"`
	FileUploadServiceEndpointURL string              `json:"fileUploadServiceEndpointUrl,omitempty"`
	FileExpirationSeconds        *int                `json:"fileExpirationSeconds,omitempty"`
	Filters                      []Filter            `json:"filters,omitempty"`
	Pace                         Pace                `json:"pace,omitempty"`
	Messages                     map[string]Messages `json:"messages,omitempty"`
}

// Config is the current (v3) schema consumed by session state and
// observers.
type Config struct {
	Messages  map[string]Messages `json:"messages,omitempty"`
	ChatPanel *ChatPanel          `json:"chatPanel,omitempty"`
}

type ChatPanel struct {
	Header   *Header   `json:"header,omitempty"`
	Styling  *Styling  `json:"styling,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
}

type Header struct {
	Filters            *Filters `json:"filters,omitempty"`
	Title              string   `json:"title,omitempty"`
	HideMinimizeButton *bool    `json:"hideMinimizeButton,omitempty"`
	HideMenuButton     *bool    `json:"hideMenuButton,omitempty"`
}

type Filters struct {
	FilterValues []string `json:"filterValues,omitempty"`
	Options      []Filter `json:"options,omitempty"`
}

type Styling struct {
	Pace                 Pace             `json:"pace,omitempty"`
	AvatarShape          AvatarShape      `json:"avatarShape,omitempty"`
	HideAvatar           *bool            `json:"hideAvatar,omitempty"`
	PrimaryColor         string           `json:"primaryColor,omitempty"`
	ContrastColor        string           `json:"contrastColor,omitempty"`
	PanelBackgroundColor string           `json:"panelBackgroundColor,omitempty"`
	ChatBubbles          *ChatBubbles     `json:"chatBubbles,omitempty"`
	Buttons              *Buttons         `json:"buttons,omitempty"`
	Composer             *Composer        `json:"composer,omitempty"`
	MessageFeedback      *MessageFeedback `json:"messageFeedback,omitempty"`
}

type ChatBubbles struct {
	UserBackgroundColor   string `json:"userBackgroundColor,omitempty"`
	UserTextColor         string `json:"userTextColor,omitempty"`
	VaBackgroundColor     string `json:"vaBackgroundColor,omitempty"`
	VaTextColor           string `json:"vaTextColor,omitempty"`
	TypingDotColor        string `json:"typingDotColor,omitempty"`
	TypingBackgroundColor string `json:"typingBackgroundColor,omitempty"`
}

type Buttons struct {
	BackgroundColor      string     `json:"backgroundColor,omitempty"`
	FocusBackgroundColor string     `json:"focusBackgroundColor,omitempty"`
	FocusTextColor       string     `json:"focusTextColor,omitempty"`
	Multiline            *bool      `json:"multiline,omitempty"`
	TextColor            string     `json:"textColor,omitempty"`
	Variant              ButtonType `json:"variant,omitempty"`
}

type Composer struct {
	Hide                      *bool  `json:"hide,omitempty"`
	ComposeLengthColor        string `json:"composeLengthColor,omitempty"`
	FileUploadButtonColor     string `json:"fileUploadButtonColor,omitempty"`
	FrameBackgroundColor      string `json:"frameBackgroundColor,omitempty"`
	SendButtonColor           string `json:"sendButtonColor,omitempty"`
	SendButtonDisabledColor   string `json:"sendButtonDisabledColor,omitempty"`
	TextareaBackgroundColor   string `json:"textareaBackgroundColor,omitempty"`
	TextareaBorderColor       string `json:"textareaBorderColor,omitempty"`
	TextareaFocusBorderColor  string `json:"textareaFocusBorderColor,omitempty"`
	TextareaFocusOutlineColor string `json:"textareaFocusOutlineColor,omitempty"`
	TextareaTextColor         string `json:"textareaTextColor,omitempty"`
	TextareaPlaceholderColor  string `json:"textareaPlaceholderTextColor,omitempty"`
	TopBorderColor            string `json:"topBorderColor,omitempty"`
	TopBorderFocusColor       string `json:"topBorderFocusColor,omitempty"`
}

type MessageFeedback struct {
	Hide          *bool  `json:"hide,omitempty"`
	OutlineColor  string `json:"outlineColor,omitempty"`
	SelectedColor string `json:"selectedColor,omitempty"`
}

type Settings struct {
	AuthStartTriggerActionID            *int            `json:"authStartTriggerActionId,omitempty"`
	ContextTopicIntentID                *int            `json:"contextTopicIntentId,omitempty"`
	ConversationID                      string          `json:"conversationId,omitempty"`
	CustomPayload                       json.RawMessage `json:"customPayload,omitempty"`
	FileUploadServiceEndpointURL        string          `json:"fileUploadServiceEndpointUrl,omitempty"`
	FileExpirationSeconds               *int            `json:"fileExpirationSeconds,omitempty"`
	MessageFeedbackOnFirstAction        *bool           `json:"messageFeedbackOnFirstAction,omitempty"`
	RememberConversation                *bool           `json:"rememberConversation,omitempty"`
	RequestFeedback                     *bool           `json:"requestFeedback,omitempty"`
	ShowLinkClickAsChatBubble           *bool           `json:"showLinkClickAsChatBubble,omitempty"`
	Skill                               string          `json:"skill,omitempty"`
	StartLanguage                       string          `json:"startLanguage,omitempty"`
	StartNewConversationOnResumeFailure *bool           `json:"startNewConversationOnResumeFailure,omitempty"`
	StartTriggerActionID                *int            `json:"startTriggerActionId,omitempty"`
	TriggerActionOnResume               *bool           `json:"triggerActionOnResume,omitempty"`
	UserToken                           string          `json:"userToken,omitempty"`
	SkipWelcomeMessage                  *bool           `json:"skipWelcomeMessage,omitempty"`
}

// Defaults applied at the point of use, never during conversion.
const (
	DefaultAvatarShape                  = AvatarRounded
	DefaultPace                         = PaceNormal
	DefaultButtonVariant                = ButtonTypeButton
	DefaultRequestFeedback              = true
	DefaultRememberConversation         = false
	DefaultShowLinkClickAsChatBubble    = false
	DefaultStartNewConversationOnResume = true
	DefaultTriggerActionOnResume        = false
)
