package adapter

import "context"

// Document is an inbound file attachment (used by the restore flow).
type Document struct {
	FileID   string
	FileName string
	MimeType string
}

// Message is an inbound message event, already resolved to a domain user.
// Chat is the transport chat handle the reply goes to (Telegram chat id in
// decimal, WhatsApp phone number).
type Message struct {
	UserID    int64
	Chat      string
	Text      string
	MessageID string
	Document  *Document
}

// Messenger abstracts a bot transport's outbound side. Send returns the
// transport message id so flows can clean prompts up afterwards. Failures of
// Delete are swallowed by callers; not every transport supports deletion.
type Messenger interface {
	Send(ctx context.Context, chat string, text string) (string, error)
	Delete(ctx context.Context, chat string, messageID string) error
	// FetchDocument downloads an attachment's content by its transport file id.
	FetchDocument(ctx context.Context, fileID string) ([]byte, error)
}
