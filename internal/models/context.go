package models

// IncomingMessage is the part of a Telegram update the bot acts on
type IncomingMessage struct {
	ChatID string
	Text   string
}

// SendMessageConfig describes an outbound text message
type SendMessageConfig struct {
	ChatID    string
	Text      string
	ParseMode string
}

// PendingLink binds an OAuth state nonce to the chat that requested it
type PendingLink struct {
	ChatID string
}
