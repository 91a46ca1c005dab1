package source

import (
	"encoding/json"
	"log"
	"strconv"

	"discord-indexer/models"

	"github.com/bwmarrin/discordgo"
)

// parseID converts a Discord snowflake to int64. Empty or malformed IDs become 0.
func parseID(id string) int64 {
	if id == "" {
		return 0
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		log.Printf("Error parsing snowflake %q: %v", id, err)
		return 0
	}
	return n
}

// typeTag names channel types the way the archive's metadata files do.
func typeTag(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeGuildNews:
		return "news"
	case discordgo.ChannelTypeGuildForum:
		return "forum"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	case discordgo.ChannelTypeGuildPublicThread:
		return "public_thread"
	case discordgo.ChannelTypeGuildPrivateThread:
		return "private_thread"
	case discordgo.ChannelTypeGuildNewsThread:
		return "news_thread"
	default:
		return strconv.Itoa(int(t))
	}
}

// kindOf maps a Discord channel type onto a conversation kind. ok is false
// for channels that are neither message streams nor thread containers.
func kindOf(t discordgo.ChannelType) (kind models.ConversationKind, ok bool) {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return models.KindText, true
	case discordgo.ChannelTypeGuildForum:
		return models.KindForum, true
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		return models.KindThread, true
	default:
		return 0, false
	}
}

// toConversation converts a channel or thread. Discord stores a channel's
// category and a thread's parent channel in the same ParentID field.
func toConversation(ch *discordgo.Channel, kind models.ConversationKind) models.Conversation {
	created, _ := discordgo.SnowflakeTimestamp(ch.ID)

	conv := models.Conversation{
		ID:        parseID(ch.ID),
		Name:      ch.Name,
		Kind:      kind,
		TypeTag:   typeTag(ch.Type),
		CreatedAt: created,
		Topic:     ch.Topic,
	}
	if kind == models.KindThread {
		conv.ParentID = parseID(ch.ParentID)
	} else {
		conv.CategoryID = parseID(ch.ParentID)
	}
	return conv
}

// displayName picks the guild nickname, then the global name, then the username.
func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author == nil {
		return ""
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// toMessage detaches a discordgo message from the client library.
func toMessage(m *discordgo.Message) *models.Message {
	msg := &models.Message{
		ID:           parseID(m.ID),
		ChannelID:    parseID(m.ChannelID),
		Content:      m.Content,
		CleanContent: m.ContentWithMentionsReplaced(),
		CreatedAt:    m.Timestamp,
		EditedAt:     m.EditedTimestamp,
	}

	if m.Author != nil {
		msg.Author = models.Author{
			ID:            parseID(m.Author.ID),
			Name:          m.Author.Username,
			Discriminator: m.Author.Discriminator,
			DisplayName:   displayName(m),
			Bot:           m.Author.Bot,
		}
	}

	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			ID:       parseID(a.ID),
			Filename: a.Filename,
			URL:      a.URL,
			Size:     a.Size,
		})
	}

	for _, e := range m.Embeds {
		raw, err := json.Marshal(e)
		if err != nil {
			log.Printf("Error marshalling embed of message %s: %v", m.ID, err)
			raw = nil
		}
		msg.Embeds = append(msg.Embeds, models.Embed{
			Title:       e.Title,
			Description: e.Description,
			URL:         e.URL,
			Raw:         raw,
		})
	}

	for _, r := range m.Reactions {
		if r == nil || r.Emoji == nil {
			continue
		}
		msg.Reactions = append(msg.Reactions, models.Reaction{
			Emoji: r.Emoji.MessageFormat(),
			Count: r.Count,
		})
	}

	if ref := m.MessageReference; ref != nil {
		msg.Reference = &models.Reference{
			MessageID: parseID(ref.MessageID),
			ChannelID: parseID(ref.ChannelID),
			GuildID:   parseID(ref.GuildID),
		}
	}

	return msg
}
