package panel

// Convert maps a legacy v2 config onto the v3 schema. It is pure and
// total: absent v2 fields map to absent v3 fields, never to defaults.
func Convert(legacy *LegacyConfig) *Config {
	if legacy == nil {
		return nil
	}

	return &Config{
		Messages: legacy.Messages,
		ChatPanel: &ChatPanel{
			Header: &Header{
				Filters: &Filters{
					Options: legacy.Filters,
				},
			},
			Styling: &Styling{
				AvatarShape:   legacy.AvatarStyle,
				PrimaryColor:  legacy.PrimaryColor,
				ContrastColor: legacy.ContrastColor,
				Pace:          legacy.Pace,
				ChatBubbles: &ChatBubbles{
					UserBackgroundColor: legacy.ClientMessageBackground,
					UserTextColor:       legacy.ClientMessageColor,
					VaBackgroundColor:   legacy.ServerMessageBackground,
					VaTextColor:         legacy.ServerMessageColor,
				},
				Buttons: &Buttons{
					Variant:         convertButtonVariant(legacy.LinkDisplayStyle),
					BackgroundColor: legacy.LinkBelowBackground,
					TextColor:       legacy.LinkBelowColor,
				},
			},
			Settings: &Settings{
				FileUploadServiceEndpointURL: legacy.FileUploadServiceEndpointURL,
				FileExpirationSeconds:        legacy.FileExpirationSeconds,
				RequestFeedback:              legacy.RequestConversationFeedback,
				RememberConversation:         legacy.RememberConversation,
			},
		},
	}
}

func convertButtonVariant(style LinkDisplayStyle) ButtonType {
	if style == LinkDisplayInside {
		return ButtonTypeBullet
	}
	return ButtonTypeButton
}
