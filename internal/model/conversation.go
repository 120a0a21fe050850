package model

// ChatRequest is the gateway request carrying one user message.
type ChatRequest struct {
	UserID      int64  `json:"user_id"`
	ChatID      int64  `json:"chat_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Text        string `json:"text"`
}

// Inbound converts the request into a transport-neutral message. The chat
// defaults to the user's private chat.
func (r ChatRequest) Inbound() InboundMessage {
	chatID := r.ChatID
	if chatID == 0 {
		chatID = r.UserID
	}
	return InboundMessage{
		UserID:      r.UserID,
		ChatID:      chatID,
		DisplayName: r.DisplayName,
		Text:        r.Text,
	}
}

// ChatResponse carries the bot replies for one message.
type ChatResponse struct {
	Replies []Reply `json:"replies"`
	Error   string  `json:"error,omitempty"`
}

// ListEventsResponse is the response for listing upcoming events.
type ListEventsResponse struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
}

// RefreshResponse is the response after an explicit refresh.
type RefreshResponse struct {
	Deleted int64   `json:"deleted"`
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
}
