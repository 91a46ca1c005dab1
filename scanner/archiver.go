package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"discord-indexer/database"
	"discord-indexer/formatter"
	"discord-indexer/models"
	"discord-indexer/storage"
	"discord-indexer/utils"
)

// progressEvery is how often, in messages, progress is logged within one conversation.
const progressEvery = 100

// Source is the message source the archiver reads from.
type Source interface {
	// Channels lists the top-level text and forum channels and maps category IDs to names.
	Channels(ctx context.Context) ([]models.Conversation, map[int64]string, error)
	// ActiveThreads lists the active threads of one channel. It may under-report.
	ActiveThreads(ctx context.Context, channel models.Conversation) ([]models.Conversation, error)
	// GuildActiveThreads lists every active thread of the guild.
	GuildActiveThreads(ctx context.Context) ([]models.Conversation, error)
	// ArchivedThreads lists the archived threads of one channel.
	ArchivedThreads(ctx context.Context, channel models.Conversation) ([]models.Conversation, error)
	// StreamMessages yields the messages of conv with an ID above after, oldest first.
	StreamMessages(ctx context.Context, conv models.Conversation, after int64, fn func(*models.Message) error) error

	formatter.Downloader
}

// ExclusionList tells whether a conversation must be skipped.
type ExclusionList interface {
	IsExcluded(conversationID string) (bool, error)
}

// RunLedger records finished runs.
type RunLedger interface {
	RecordRun(summary models.RunSummary) error
}

// Options configures an Archiver.
type Options struct {
	Root              string   // knowledge base root directory
	AllowedCategories []string // see NewPolicy
	BatchSize         int      // messages per automatic flush

	Exclusions ExclusionList // optional
	Ledger     RunLedger     // optional
	Now        func() time.Time
}

// Archiver walks the guild and appends new messages of every eligible
// conversation to the knowledge base. Conversations are processed one at a
// time; an Archiver must not run concurrently with itself.
type Archiver struct {
	src      Source
	cursors  *database.CursorStore
	renderer *formatter.Renderer
	policy   Policy
	opts     Options
}

// placement locates a conversation in the output tree, before sanitizing.
type placement struct {
	category string
	channel  string
	thread   string // empty for non-thread conversations
}

// NewArchiver creates an archiver reading from src and resuming from cursors.
func NewArchiver(src Source, cursors *database.CursorStore, opts Options) *Archiver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = storage.DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Archiver{
		src:      src,
		cursors:  cursors,
		renderer: formatter.NewRenderer(src),
		policy:   NewPolicy(opts.AllowedCategories),
		opts:     opts,
	}
}

// Run performs one full incremental pass over the guild. Failures of single
// conversations are logged and counted; Run only fails when the channel list
// itself cannot be read, or returns the context error after an interrupt.
func (a *Archiver) Run(ctx context.Context) (models.RunSummary, error) {
	summary := models.RunSummary{StartedAt: a.opts.Now()}
	log.Println("Starting archive run...")

	channels, categories, err := a.src.Channels(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list channels: %w", err)
	}

	channelsByID := make(map[int64]models.Conversation, len(channels))
	for _, ch := range channels {
		channelsByID[ch.ID] = ch
	}

	processed := make(map[int64]bool)
	visit := func(conv models.Conversation, p placement) {
		if processed[conv.ID] || ctx.Err() != nil {
			return
		}
		processed[conv.ID] = true

		if a.excluded(conv) {
			log.Printf("Skipping excluded conversation %s (%d)", conv.Name, conv.ID)
			return
		}

		summary.Conversations++
		count, err := a.archive(ctx, conv, p)
		summary.Messages += count
		if count > 0 {
			summary.Updated++
		}
		if err != nil {
			a.reportStreamError(conv, p, err)
			if !errors.Is(err, context.Canceled) {
				summary.Failures++
			}
		}
	}

	for _, ch := range channels {
		if ctx.Err() != nil {
			break
		}

		category, ok := a.resolveCategory(ch, categories)
		if !ok {
			continue
		}
		channelName := utils.NormalizeHomoglyphs(ch.Name)
		log.Printf("Processing channel: %s (%d) category: %s", ch.Name, ch.ID, category)

		// 1. The channel's own history. Forums have none; only their posts do.
		if ch.Kind == models.KindText {
			visit(ch, placement{category: category, channel: channelName})
		}

		// 2. Active threads.
		threads, err := a.src.ActiveThreads(ctx, ch)
		if err != nil {
			utils.Warn("Archiver", "ActiveThreads", fmt.Sprintf("%s: %v", ch.Name, err))
		}
		for _, th := range threads {
			log.Printf("  Processing thread: %s", th.Name)
			visit(th, placement{category: category, channel: channelName, thread: utils.NormalizeHomoglyphs(th.Name)})
		}

		// 3. Archived threads.
		if ctx.Err() != nil {
			break
		}
		archived, err := a.src.ArchivedThreads(ctx, ch)
		if err != nil {
			utils.Warn("Archiver", "ArchivedThreads", fmt.Sprintf("%s: %v", ch.Name, err))
		}
		for _, th := range archived {
			log.Printf("  Processing archived thread: %s", th.Name)
			visit(th, placement{category: category, channel: channelName, thread: utils.NormalizeHomoglyphs(th.Name)})
		}
	}

	// 4. Guild-wide sweep for active threads the per-channel walk did not reach.
	log.Println("Checking guild-wide active threads...")
	var active []models.Conversation
	if ctx.Err() == nil {
		active, err = a.src.GuildActiveThreads(ctx)
		if err != nil {
			utils.Warn("Archiver", "GuildActiveThreads", err.Error())
		}
	}
	for _, th := range active {
		if ctx.Err() != nil {
			break
		}
		if processed[th.ID] {
			continue
		}
		parent, ok := channelsByID[th.ParentID]
		if !ok {
			continue
		}
		category, ok := a.resolveCategory(parent, categories)
		if !ok {
			continue
		}
		log.Printf("  Processing thread: %s (parent: %s category: %s)", th.Name, parent.Name, category)
		visit(th, placement{
			category: category,
			channel:  utils.NormalizeHomoglyphs(parent.Name),
			thread:   utils.NormalizeHomoglyphs(th.Name),
		})
	}

	a.saveCursors()

	summary.FinishedAt = a.opts.Now()
	if a.opts.Ledger != nil {
		if err := a.opts.Ledger.RecordRun(summary); err != nil {
			utils.Warn("Archiver", "RecordRun", err.Error())
		}
	}

	if summary.Updated > 0 {
		log.Printf("Archive updated: %d messages in %d conversations.", summary.Messages, summary.Updated)
	}
	log.Printf("Run finished: %d conversations visited, %d failed, took %s.",
		summary.Conversations, summary.Failures, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second))

	return summary, ctx.Err()
}

// resolveCategory applies the allow-list to a top-level channel.
func (a *Archiver) resolveCategory(ch models.Conversation, categories map[int64]string) (string, bool) {
	name, hasCategory := categories[ch.CategoryID]
	if ch.CategoryID == 0 {
		hasCategory = false
	}
	return a.policy.Resolve(name, hasCategory)
}

func (a *Archiver) excluded(conv models.Conversation) bool {
	if a.opts.Exclusions == nil {
		return false
	}
	excluded, err := a.opts.Exclusions.IsExcluded(conv.Key())
	if err != nil {
		utils.Warn("Archiver", "IsExcluded", err.Error())
		return false
	}
	return excluded
}

// archive fetches everything new in one conversation. It returns how many
// messages were archived and the error that ended the stream, if any.
// Whatever was buffered is flushed and the cursor persisted in every case.
func (a *Archiver) archive(ctx context.Context, conv models.Conversation, p placement) (int, error) {
	layout := a.layoutFor(conv, p)
	if err := layout.Ensure(); err != nil {
		return 0, err
	}

	if created, err := storage.WriteChannelInfo(layout, a.channelInfo(conv, p)); err != nil {
		utils.Warn("Archiver", "WriteChannelInfo", fmt.Sprintf("%s: %v", layout.Dir, err))
	} else if created {
		log.Printf("    Wrote channel info for %s", layout.Dir)
	}

	key := conv.Key()
	after, _ := a.cursors.Get(key)
	buf := storage.NewBuffer(layout, a.opts.BatchSize)
	count := 0

	streamErr := a.src.StreamMessages(ctx, conv, after, func(msg *models.Message) error {
		out, err := a.renderer.Render(ctx, msg, layout.AttachmentsDir())
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Downloads were cut short; leave the message for the next run.
			return ctxErr
		}
		if err != nil {
			utils.Error("Archiver", "Render", err.Error())
		}
		if err := buf.Append(out.DateKey, out.Markdown, out.Record); err != nil {
			utils.Error("Archiver", "Flush", err.Error())
		}
		a.cursors.Update(key, msg.ID)

		count++
		if count%progressEvery == 0 {
			log.Printf("    ... %d messages processed so far", count)
		}
		return nil
	})

	// Flush the remainder even when the stream failed.
	if err := buf.Flush(); err != nil {
		utils.Error("Archiver", "Flush", err.Error())
	}
	if count > 0 {
		log.Printf("    Fetched %d new messages.", count)
		a.saveCursors()
	}

	return count, streamErr
}

func (a *Archiver) reportStreamError(conv models.Conversation, p placement, err error) {
	where := p.channel
	if p.thread != "" {
		where += "/" + p.thread
	}
	switch {
	case errors.Is(err, context.Canceled):
		log.Printf("    Interrupted while fetching %s", where)
	case errors.Is(err, models.ErrForbidden):
		utils.Warn("Archiver", "StreamMessages", fmt.Sprintf("access denied: %s (%d)", where, conv.ID))
	default:
		utils.Error("Archiver", "StreamMessages", fmt.Sprintf("%s (%d): %v", where, conv.ID, err))
	}
}

// layoutFor sanitizes the placement into a directory. A segment that
// sanitizes to nothing falls back to the owning ID so it never collapses
// into its parent directory; so does a thread named like one of the
// parent's own entries.
func (a *Archiver) layoutFor(conv models.Conversation, p placement) storage.Layout {
	channelID := conv.ID
	thread := ""
	if conv.IsThread() {
		channelID = conv.ParentID
		thread = utils.SafePathSegment(p.thread, conv.Key())
		if storage.IsReserved(thread) {
			thread = conv.Key()
		}
	}
	return storage.NewLayout(
		a.opts.Root,
		utils.SafePathSegment(p.category, UncategorizedName),
		utils.SafePathSegment(p.channel, strconv.FormatInt(channelID, 10)),
		thread,
	)
}

func (a *Archiver) channelInfo(conv models.Conversation, p placement) models.ChannelInfo {
	info := models.ChannelInfo{
		ID:        conv.ID,
		Name:      conv.Name,
		Type:      conv.TypeTag,
		Category:  p.category,
		IsThread:  conv.IsThread(),
		FetchedAt: a.opts.Now().Format(time.RFC3339),
	}
	if !conv.CreatedAt.IsZero() {
		created := conv.CreatedAt.UTC().Format(time.RFC3339)
		info.CreatedAt = &created
	}
	if conv.Topic != "" {
		topic := conv.Topic
		info.Topic = &topic
	}
	if conv.IsThread() {
		parent := p.channel
		info.ParentChannel = &parent
	}
	return info
}

func (a *Archiver) saveCursors() {
	if !a.cursors.Dirty() {
		return
	}
	if err := a.cursors.Save(); err != nil {
		utils.Error("Archiver", "SaveState", err.Error())
	}
}
