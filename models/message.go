package models

import (
	"encoding/json"
	"time"
)

// Message is one platform message, already detached from the client library.
type Message struct {
	ID           int64
	ChannelID    int64
	Author       Author
	Content      string
	CleanContent string // mentions resolved to display names
	CreatedAt    time.Time
	EditedAt     *time.Time
	Attachments  []Attachment
	Embeds       []Embed
	Reactions    []Reaction
	Reference    *Reference
}

// Author identifies who sent a message.
type Author struct {
	ID            int64
	Name          string
	Discriminator string
	DisplayName   string
	Bot           bool
}

// Attachment is a remote file attached to a message.
type Attachment struct {
	ID       int64
	Filename string
	URL      string
	Size     int
}

// Embed keeps the fields the Markdown view needs plus the raw platform form
// for the structured record.
type Embed struct {
	Title       string
	Description string
	URL         string
	Raw         json.RawMessage
}

// Reaction is an emoji and how many users reacted with it.
type Reaction struct {
	Emoji string
	Count int
}

// Reference points at the message being replied to.
type Reference struct {
	MessageID int64
	ChannelID int64
	GuildID   int64
}

// MessageRecord is one line of messages.jsonl.
type MessageRecord struct {
	ID           int64             `json:"id"`
	Author       AuthorRecord      `json:"author"`
	Content      string            `json:"content"`
	CleanContent string            `json:"clean_content"`
	CreatedAt    string            `json:"created_at"`
	EditedAt     *string           `json:"edited_at"`
	Attachments  []string          `json:"attachments"`
	Embeds       []json.RawMessage `json:"embeds"`
	Reference    *ReferenceRecord  `json:"reference"`
	Reactions    []ReactionRecord  `json:"reactions"`
}

// AuthorRecord is the author block of a MessageRecord.
type AuthorRecord struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Discriminator string `json:"discriminator"`
	DisplayName   string `json:"display_name"`
	Bot           bool   `json:"bot"`
}

// ReferenceRecord is the reply target of a MessageRecord. IDs the
// platform left out are null.
type ReferenceRecord struct {
	MessageID *int64 `json:"message_id"`
	ChannelID *int64 `json:"channel_id"`
	GuildID   *int64 `json:"guild_id"`
}

// ReactionRecord is one reaction of a MessageRecord.
type ReactionRecord struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}
