package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"discord-indexer/models"

	"github.com/bwmarrin/discordgo"
)

// pageSize is the largest page the Discord API serves for messages and archived threads.
const pageSize = 100

// DiscordSource reads one guild through a discordgo session.
type DiscordSource struct {
	session *discordgo.Session
	guildID string
}

// NewDiscordSource returns a source for guildID. The session must be open
// or at least carry a valid token; only REST endpoints are used.
func NewDiscordSource(s *discordgo.Session, guildID string) *DiscordSource {
	return &DiscordSource{session: s, guildID: guildID}
}

// Channels lists the guild's text and forum channels plus a category ID to
// name lookup.
func (d *DiscordSource) Channels(ctx context.Context) ([]models.Conversation, map[int64]string, error) {
	channels, err := d.session.GuildChannels(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, nil, wrap(err, "failed to get channels for guild %s", d.guildID)
	}

	categories := make(map[int64]string)
	var convs []models.Conversation
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory {
			categories[parseID(ch.ID)] = ch.Name
			continue
		}
		kind, ok := kindOf(ch.Type)
		if !ok || kind == models.KindThread {
			continue
		}
		convs = append(convs, toConversation(ch, kind))
	}

	// Visit channels in creation order so every run walks the guild the same way.
	sort.SliceStable(convs, func(i, j int) bool { return convs[i].ID < convs[j].ID })
	return convs, categories, nil
}

// ActiveThreads lists the active threads of one channel known to the
// session's state cache. The cache may lag behind or be empty right after
// connecting; GuildActiveThreads is the authoritative sweep.
func (d *DiscordSource) ActiveThreads(ctx context.Context, channel models.Conversation) ([]models.Conversation, error) {
	guild, err := d.session.State.Guild(d.guildID)
	if err != nil {
		// Not cached yet.
		return nil, nil
	}

	parentID := strconv.FormatInt(channel.ID, 10)

	d.session.State.RLock()
	defer d.session.State.RUnlock()

	var threads []models.Conversation
	for _, th := range guild.Threads {
		if th.ParentID == parentID {
			threads = append(threads, toConversation(th, models.KindThread))
		}
	}
	return threads, nil
}

// GuildActiveThreads lists every active thread of the guild through the API.
func (d *DiscordSource) GuildActiveThreads(ctx context.Context) ([]models.Conversation, error) {
	list, err := d.session.GuildThreadsActive(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "failed to get active threads for guild %s", d.guildID)
	}
	threads := make([]models.Conversation, 0, len(list.Threads))
	for _, th := range list.Threads {
		threads = append(threads, toConversation(th, models.KindThread))
	}
	return threads, nil
}

// ArchivedThreads lists the public archived threads of a channel, newest
// archive first, walking every page.
func (d *DiscordSource) ArchivedThreads(ctx context.Context, channel models.Conversation) ([]models.Conversation, error) {
	channelID := strconv.FormatInt(channel.ID, 10)

	var threads []models.Conversation
	var before *time.Time
	for {
		archived, err := d.session.ThreadsArchived(channelID, before, pageSize, discordgo.WithContext(ctx))
		if err != nil {
			return threads, wrap(err, "failed to get archived threads for channel %s", channelID)
		}
		if len(archived.Threads) == 0 {
			break
		}

		for _, th := range archived.Threads {
			threads = append(threads, toConversation(th, models.KindThread))
			if th.ThreadMetadata != nil {
				// The API paginates on the archive timestamp of the last thread seen.
				t := th.ThreadMetadata.ArchiveTimestamp
				before = &t
			}
		}

		if !archived.HasMore || before == nil {
			break
		}
	}
	return threads, nil
}

// StreamMessages calls fn for every message of conv newer than after,
// oldest first. It stops at the first error returned by fn or the API.
func (d *DiscordSource) StreamMessages(ctx context.Context, conv models.Conversation, after int64, fn func(*models.Message) error) error {
	channelID := strconv.FormatInt(conv.ID, 10)
	cursor := after

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := d.session.ChannelMessages(channelID, pageSize, "", strconv.FormatInt(cursor, 10), "", discordgo.WithContext(ctx))
		if err != nil {
			return wrap(err, "failed to get messages for channel %s after %d", channelID, cursor)
		}

		// Pages after a cursor arrive newest first.
		msgs := make([]*models.Message, 0, len(page))
		for _, m := range page {
			msgs = append(msgs, toMessage(m))
		}
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })

		start := cursor
		for _, msg := range msgs {
			if msg.ID <= cursor {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(msg); err != nil {
				return err
			}
			cursor = msg.ID
		}

		if len(page) < pageSize || cursor == start {
			return ctx.Err()
		}
	}
}

// DownloadAttachment copies the attachment's bytes into w.
func (d *DiscordSource) DownloadAttachment(ctx context.Context, att models.Attachment, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", att.Filename, err)
	}
	if d.session.UserAgent != "" {
		req.Header.Set("User-Agent", d.session.UserAgent)
	}

	client := d.session.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", att.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: unexpected status %s", att.Filename, resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read %s: %w", att.Filename, err)
	}
	return nil
}

// wrap annotates err and turns 403 responses into models.ErrForbidden.
func wrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w: %v", msg, models.ErrForbidden, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
