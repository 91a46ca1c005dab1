package models

import (
	"strconv"
	"time"
)

// ConversationKind tells the orchestrator where to look for sub-conversations.
type ConversationKind int

const (
	KindText   ConversationKind = iota // a channel with its own message history
	KindForum                          // a channel whose messages live only in its threads (posts)
	KindThread                         // a thread or forum post
)

func (k ConversationKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindForum:
		return "forum"
	case KindThread:
		return "thread"
	default:
		return "unknown"
	}
}

// Conversation is a fetchable message stream: a channel, a forum or a thread.
type Conversation struct {
	ID         int64
	Name       string
	Kind       ConversationKind
	TypeTag    string // platform channel type, e.g. "text", "public_thread"
	ParentID   int64  // parent channel for threads, 0 otherwise
	CategoryID int64  // 0 when uncategorized
	CreatedAt  time.Time
	Topic      string
}

// IsThread reports whether the conversation nests under a parent channel.
func (c Conversation) IsThread() bool {
	return c.Kind == KindThread
}

// Key is the conversation's identity in the cursor store.
func (c Conversation) Key() string {
	return strconv.FormatInt(c.ID, 10)
}

// ChannelInfo is the write-once metadata file kept in every conversation directory.
type ChannelInfo struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	CreatedAt     *string `json:"created_at"`
	Topic         *string `json:"topic"`
	Category      string  `json:"category"`
	ParentChannel *string `json:"parent_channel"`
	IsThread      bool    `json:"is_thread"`
	FetchedAt     string  `json:"fetched_at"`
}
