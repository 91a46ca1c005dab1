package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	messagesDirName    = "messages"
	recordFileName     = "messages.jsonl"
	channelInfoName    = "channel_info.json"
	attachmentsDirName = "attachments"
)

// IsReserved reports whether name is one of the entries a conversation
// directory owns, so a nested thread directory must not use it.
func IsReserved(name string) bool {
	switch name {
	case messagesDirName, recordFileName, channelInfoName, attachmentsDirName:
		return true
	}
	return false
}

// Layout is the on-disk home of one conversation:
//
//	root/category/channel/[thread/]{messages/, messages.jsonl, channel_info.json, attachments/}
type Layout struct {
	Dir string
}

// NewLayout builds the layout of a conversation. Segments must already be
// sanitized; thread is empty for non-thread conversations.
func NewLayout(root, category, channel, thread string) Layout {
	dir := filepath.Join(root, category, channel)
	if thread != "" {
		dir = filepath.Join(dir, thread)
	}
	return Layout{Dir: dir}
}

// MessagesDir holds one Markdown file per calendar date.
func (l Layout) MessagesDir() string { return filepath.Join(l.Dir, messagesDirName) }

// RecordFile is the append-only JSONL log.
func (l Layout) RecordFile() string { return filepath.Join(l.Dir, recordFileName) }

// ChannelInfoFile is the write-once metadata file.
func (l Layout) ChannelInfoFile() string { return filepath.Join(l.Dir, channelInfoName) }

// AttachmentsDir holds downloaded attachments.
func (l Layout) AttachmentsDir() string { return filepath.Join(l.Dir, attachmentsDirName) }

// DateFile is the Markdown file of one date key (YYYY-MM-DD).
func (l Layout) DateFile(dateKey string) string {
	return filepath.Join(l.MessagesDir(), dateKey+".md")
}

// Ensure creates the conversation directory tree.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Dir, l.MessagesDir(), l.AttachmentsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
