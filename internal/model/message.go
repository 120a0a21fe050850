package model

// InboundMessage is one text message delivered by a chat transport.
type InboundMessage struct {
	// Identity
	UserID      int64  `json:"user_id"`
	ChatID      int64  `json:"chat_id"`
	DisplayName string `json:"display_name,omitempty"`

	// Content
	Text string `json:"text"`
}

// Reply is one outbound chat message.
type Reply struct {
	Text string `json:"text"`

	// Quick-reply choices, one slice per row. Empty leaves the client
	// keyboard as it is.
	Keyboard        [][]string `json:"keyboard,omitempty"`
	OneTimeKeyboard bool       `json:"one_time_keyboard,omitempty"`
	RemoveKeyboard  bool       `json:"remove_keyboard,omitempty"`

	Link *Link `json:"link,omitempty"`
}

// Choices flattens the keyboard rows.
func (r Reply) Choices() []string {
	var out []string
	for _, row := range r.Keyboard {
		out = append(out, row...)
	}
	return out
}

// Link is a single actionable URL attached to a reply.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}
