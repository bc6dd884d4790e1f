// Package channel defines the normalized chat message model and the adapter
// contracts that bind a concrete platform (Discord, Telegram) to the intake
// pipeline.
package channel

import (
	"strings"
	"time"
)

// Type identifies a chat platform.
type Type string

// Supported channel types.
const (
	TypeDiscord  Type = "discord"
	TypeTelegram Type = "telegram"
)

func (t Type) String() string { return string(t) }

// DirectContextID is the reserved persona context for direct messages, which
// carry no guild of their own.
const DirectContextID = "direct"

// Identity describes a message sender as known to the platform.
type Identity struct {
	ID       string
	Username string
}

// Conversation locates a message inside the platform: the channel (Target for
// replies), the owning guild if any, and whether it is a direct conversation.
type Conversation struct {
	ID      string
	GuildID string
	Name    string
	Direct  bool
}

// Attachment is a file carried by a message. URL is set on inbound
// attachments; Data is set when the service uploads generated bytes.
type Attachment struct {
	Type string
	URL  string
	Name string
	Mime string
	Data []byte
}

// Action is an interactive button offered with an outbound message.
type Action struct {
	ID    string
	Label string
	Style string
}

// Action styles understood by adapters that render buttons.
const (
	ActionStyleConfirm = "confirm"
	ActionStyleCancel  = "cancel"
)

// Message is the platform-neutral message payload.
type Message struct {
	ID          string
	Text        string
	Attachments []Attachment
	Actions     []Action
	ReplyTo     string
}

// FirstImage returns the first image attachment, or nil.
func (m Message) FirstImage() *Attachment {
	for i := range m.Attachments {
		att := &m.Attachments[i]
		if att.Type == "image" || strings.HasPrefix(att.Mime, "image/") {
			return att
		}
	}
	return nil
}

// InboundMessage is one normalized incoming message event.
type InboundMessage struct {
	Channel      Type
	Message      Message
	Sender       Identity
	Conversation Conversation
	Mentioned    bool
	ReplyToBot   bool
	ReceivedAt   time.Time
}

// ContextID returns the persona context for the message: the guild id, or
// the shared direct-message context.
func (m InboundMessage) ContextID() string {
	if m.Conversation.Direct || strings.TrimSpace(m.Conversation.GuildID) == "" {
		return DirectContextID
	}
	return m.Conversation.GuildID
}

// Target returns the destination to send a reply to.
func (m InboundMessage) Target() string {
	return m.Conversation.ID
}

// OutboundMessage is a reply addressed to a platform target.
type OutboundMessage struct {
	Target  string
	Message Message
}

// ActionEvent is a button click on a previously sent message.
type ActionEvent struct {
	Channel   Type
	ActionID  string
	Sender    Identity
	Target    string
	MessageID string
}
