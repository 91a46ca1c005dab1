package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"discord-indexer/database"
	"discord-indexer/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	generalID int64 = 1
	secretID  int64 = 2
)

// fakeSource is an in-memory guild.
type fakeSource struct {
	channels   []models.Conversation
	categories map[int64]string
	active     map[int64][]models.Conversation // per-channel view, may under-report
	guildWide  []models.Conversation
	archived   map[int64][]models.Conversation
	messages   map[int64][]*models.Message
	streamErr  map[int64]error // returned after all messages were yielded
	files      map[string]string
	failURLs   map[string]bool

	cancelOnDownload context.CancelFunc // simulates Ctrl-C during a transfer

	streams   map[int64]int     // StreamMessages calls per conversation
	afters    map[int64][]int64 // cursors requested per conversation
	downloads int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		categories: map[int64]string{generalID: "General", secretID: "Secret"},
		active:     map[int64][]models.Conversation{},
		archived:   map[int64][]models.Conversation{},
		messages:   map[int64][]*models.Message{},
		streamErr:  map[int64]error{},
		files:      map[string]string{},
		failURLs:   map[string]bool{},
		streams:    map[int64]int{},
		afters:     map[int64][]int64{},
	}
}

func (f *fakeSource) Channels(ctx context.Context) ([]models.Conversation, map[int64]string, error) {
	return f.channels, f.categories, nil
}

func (f *fakeSource) ActiveThreads(ctx context.Context, channel models.Conversation) ([]models.Conversation, error) {
	return f.active[channel.ID], nil
}

func (f *fakeSource) GuildActiveThreads(ctx context.Context) ([]models.Conversation, error) {
	return f.guildWide, nil
}

func (f *fakeSource) ArchivedThreads(ctx context.Context, channel models.Conversation) ([]models.Conversation, error) {
	return f.archived[channel.ID], nil
}

func (f *fakeSource) StreamMessages(ctx context.Context, conv models.Conversation, after int64, fn func(*models.Message) error) error {
	f.streams[conv.ID]++
	f.afters[conv.ID] = append(f.afters[conv.ID], after)

	msgs := append([]*models.Message(nil), f.messages[conv.ID]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	for _, m := range msgs {
		if m.ID <= after {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.streamErr[conv.ID]
}

func (f *fakeSource) DownloadAttachment(ctx context.Context, att models.Attachment, w io.Writer) error {
	f.downloads++
	if f.cancelOnDownload != nil {
		io.WriteString(w, "partial")
		f.cancelOnDownload()
		return ctx.Err()
	}
	if f.failURLs[att.URL] {
		return errors.New("download failed")
	}
	_, err := io.WriteString(w, f.files[att.URL])
	return err
}

func (f *fakeSource) addMessage(convID, id int64, author, text string, at time.Time) *models.Message {
	m := &models.Message{
		ID:           id,
		ChannelID:    convID,
		Author:       models.Author{ID: 1, Name: strings.ToLower(author), DisplayName: author},
		Content:      text,
		CleanContent: text,
		CreatedAt:    at,
	}
	f.messages[convID] = append(f.messages[convID], m)
	return m
}

func textChannel(id int64, name string, category int64) models.Conversation {
	return models.Conversation{ID: id, Name: name, Kind: models.KindText, TypeTag: "text", CategoryID: category}
}

func thread(id int64, name string, parent int64) models.Conversation {
	return models.Conversation{ID: id, Name: name, Kind: models.KindThread, TypeTag: "public_thread", ParentID: parent}
}

type fixture struct {
	root    string
	state   string
	src     *fakeSource
	cursors *database.CursorStore
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		root:  filepath.Join(dir, "kb"),
		state: filepath.Join(dir, "fetch_state.json"),
		src:   newFakeSource(),
		now:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// run loads the cursor store from disk like a fresh process would and performs one pass.
func (fx *fixture) run(t *testing.T, opts Options) models.RunSummary {
	t.Helper()
	fx.cursors = database.NewCursorStore(fx.state)
	fx.cursors.Load()

	opts.Root = fx.root
	if opts.AllowedCategories == nil {
		opts.AllowedCategories = []string{"General"}
	}
	opts.Now = func() time.Time { return fx.now }

	summary, err := NewArchiver(fx.src, fx.cursors, opts).Run(context.Background())
	require.NoError(t, err)
	return summary
}

func readRecords(t *testing.T, path string) []models.MessageRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var recs []models.MessageRecord
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		var rec models.MessageRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		recs = append(recs, rec)
	}
	return recs
}

func recordIDs(recs []models.MessageRecord) []int64 {
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}

// snapshot maps every file under root to its content.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			files[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		files[rel] = string(data)
		return err
	})
	require.NoError(t, err)
	return files
}

func TestRunArchivesTwoMessages(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID)}
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fx.src.addMessage(100, 11, "Bob", "second", day.Add(time.Minute))
	fx.src.addMessage(100, 10, "Alice", "first", day)

	summary := fx.run(t, Options{})
	assert.Equal(t, 1, summary.Conversations)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 2, summary.Messages)
	assert.Zero(t, summary.Failures)

	dir := filepath.Join(fx.root, "General", "chat")

	var info models.ChannelInfo
	data, err := os.ReadFile(filepath.Join(dir, "channel_info.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, int64(100), info.ID)
	assert.Equal(t, "General", info.Category)
	assert.False(t, info.IsThread)
	assert.Nil(t, info.ParentChannel)

	md, err := os.ReadFile(filepath.Join(dir, "messages", "2024-05-01.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# 2024-05-01\n"))
	assert.Equal(t, 2, strings.Count(string(md), "### "))
	assert.Less(t, strings.Index(string(md), "### Alice (09:00)"), strings.Index(string(md), "### Bob (09:01)"))

	assert.Equal(t, []int64{10, 11}, recordIDs(readRecords(t, filepath.Join(dir, "messages.jsonl"))))

	id, ok := fx.cursors.Get("100")
	require.True(t, ok)
	assert.Equal(t, int64(11), id)

	state, err := os.ReadFile(fx.state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"100": 11}`, string(state))
}

func TestRunIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID)}
	fx.src.addMessage(100, 10, "Alice", "first", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	fx.src.addMessage(100, 11, "Bob", "second", time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC))

	fx.run(t, Options{})
	before := snapshot(t, fx.root)
	stateBefore, err := os.ReadFile(fx.state)
	require.NoError(t, err)

	fx.now = fx.now.Add(24 * time.Hour)
	summary := fx.run(t, Options{})
	assert.Zero(t, summary.Updated)
	assert.Zero(t, summary.Messages)

	assert.Equal(t, before, snapshot(t, fx.root))
	stateAfter, err := os.ReadFile(fx.state)
	require.NoError(t, err)
	assert.Equal(t, string(stateBefore), string(stateAfter))
}

func TestRunResumesAfterCursor(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID)}
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fx.src.addMessage(100, 10, "Alice", "first", day)
	fx.src.addMessage(100, 11, "Bob", "second", day)

	fx.run(t, Options{})
	fx.src.addMessage(100, 12, "Alice", "third", day.Add(time.Hour))
	summary := fx.run(t, Options{})

	assert.Equal(t, 1, summary.Messages)
	assert.Equal(t, []int64{0, 11}, fx.src.afters[100])

	dir := filepath.Join(fx.root, "General", "chat")
	assert.Equal(t, []int64{10, 11, 12}, recordIDs(readRecords(t, filepath.Join(dir, "messages.jsonl"))))

	md, err := os.ReadFile(filepath.Join(dir, "messages", "2024-05-01.md"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(md), "# 2024-05-01\n"))
	assert.Equal(t, 3, strings.Count(string(md), "### "))
}

func TestRunSkipsCategoryNotAllowed(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(300, "plans", secretID)}
	fx.src.addMessage(300, 10, "Eve", "hidden", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	fx.src.archived[300] = []models.Conversation{thread(301, "more plans", 300)}
	fx.src.guildWide = []models.Conversation{thread(302, "active plans", 300)}

	summary := fx.run(t, Options{})
	assert.Zero(t, summary.Conversations)
	assert.Empty(t, fx.src.streams)

	_, err := os.Stat(fx.root)
	assert.True(t, os.IsNotExist(err), "no output tree expected")
	_, err = os.Stat(fx.state)
	assert.True(t, os.IsNotExist(err), "no state file expected")
	assert.Zero(t, fx.cursors.Len())
}

func TestRunUncategorizedChannels(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "lobby", 0)}
	fx.src.addMessage(100, 10, "Alice", "hi", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	summary := fx.run(t, Options{AllowedCategories: []string{"General"}})
	assert.Zero(t, summary.Conversations)

	summary = fx.run(t, Options{AllowedCategories: []string{""}})
	assert.Equal(t, 1, summary.Updated)
	_, err := os.Stat(filepath.Join(fx.root, UncategorizedName, "lobby", "messages.jsonl"))
	assert.NoError(t, err)
}

func TestRunFailedAttachmentDownload(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID)}
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m := fx.src.addMessage(100, 10, "Alice", "look at this", day)
	m.Attachments = []models.Attachment{{Filename: "broken.png", URL: "https://cdn/broken"}}
	fx.src.failURLs["https://cdn/broken"] = true
	fx.src.addMessage(100, 11, "Bob", "nice", day)

	summary := fx.run(t, Options{})
	assert.Equal(t, 2, summary.Messages)

	dir := filepath.Join(fx.root, "General", "chat")
	md, err := os.ReadFile(filepath.Join(dir, "messages", "2024-05-01.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "### Alice (09:00)\nlook at this\n")
	assert.NotContains(t, string(md), "broken.png")
	assert.Contains(t, string(md), "### Bob (09:00)\nnice\n")

	recs := readRecords(t, filepath.Join(dir, "messages.jsonl"))
	require.Len(t, recs, 2)
	assert.Empty(t, recs[0].Attachments)

	entries, err := os.ReadDir(filepath.Join(dir, "attachments"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunDownloadsAttachmentsOnce(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID)}
	m := fx.src.addMessage(100, 10, "Alice", "pic", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	m.Attachments = []models.Attachment{{Filename: "cat.png", URL: "https://cdn/cat"}}
	fx.src.files["https://cdn/cat"] = "meow"

	fx.run(t, Options{})
	require.Equal(t, 1, fx.src.downloads)

	// Losing the cursor re-fetches the message; the file on disk is reused.
	require.NoError(t, os.Remove(fx.state))
	fx.run(t, Options{})
	assert.Equal(t, 1, fx.src.downloads)

	data, err := os.ReadFile(filepath.Join(fx.root, "General", "chat", "attachments", "10_cat.png"))
	require.NoError(t, err)
	assert.Equal(t, "meow", string(data))
}

func TestRunContinuesAfterStreamFailure(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{
		textChannel(100, "locked", generalID),
		textChannel(200, "broken", generalID),
		textChannel(300, "open", generalID),
	}
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fx.src.addMessage(100, 10, "Alice", "before the wall", day)
	fx.src.streamErr[100] = fmt.Errorf("history: %w", models.ErrForbidden)
	fx.src.streamErr[200] = errors.New("gateway exploded")
	fx.src.addMessage(300, 30, "Bob", "fine", day)

	summary := fx.run(t, Options{BatchSize: 10})
	assert.Equal(t, 3, summary.Conversations)
	assert.Equal(t, 2, summary.Failures)
	assert.Equal(t, 2, summary.Updated)

	// The partial progress of the failing conversation was flushed and its cursor kept.
	assert.Equal(t, []int64{10}, recordIDs(readRecords(t, filepath.Join(fx.root, "General", "locked", "messages.jsonl"))))
	id, _ := fx.cursors.Get("100")
	assert.Equal(t, int64(10), id)

	assert.Equal(t, []int64{30}, recordIDs(readRecords(t, filepath.Join(fx.root, "General", "open", "messages.jsonl"))))
}

func TestRunThreadsNestAndDeduplicate(t *testing.T) {
	fx := newFixture(t)
	forum := models.Conversation{ID: 200, Name: "ꓖuides", Kind: models.KindForum, TypeTag: "forum", CategoryID: generalID}
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID), forum}

	post := thread(201, "How to start", 200)
	old := thread(202, "Old post", 200)
	side := thread(101, "side talk", 100)
	missed := thread(203, "Missed by cache", 200)

	fx.src.active[200] = []models.Conversation{post}
	fx.src.archived[200] = []models.Conversation{post, old}
	fx.src.archived[100] = []models.Conversation{side}
	fx.src.guildWide = []models.Conversation{post, missed, thread(999, "orphan", 998)}

	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fx.src.addMessage(201, 1, "Alice", "start here", day)
	fx.src.addMessage(202, 2, "Bob", "old", day)
	fx.src.addMessage(101, 3, "Carol", "aside", day)
	fx.src.addMessage(203, 4, "Dan", "found", day)

	summary := fx.run(t, Options{})
	assert.Equal(t, 5, summary.Conversations) // chat, side, post, old, missed
	assert.Equal(t, 4, summary.Updated)

	for id, n := range fx.src.streams {
		assert.Equal(t, 1, n, "conversation %d streamed more than once", id)
	}
	assert.Zero(t, fx.src.streams[200], "forums have no history of their own")
	assert.Zero(t, fx.src.streams[999])

	forumDir := filepath.Join(fx.root, "General", "Guides")
	for _, name := range []string{"How to start", "Old post", "Missed by cache"} {
		_, err := os.Stat(filepath.Join(forumDir, name, "messages.jsonl"))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(fx.root, "General", "chat", "side talk", "messages.jsonl"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(forumDir, "channel_info.json"))
	assert.True(t, os.IsNotExist(err))

	var info models.ChannelInfo
	data, err := os.ReadFile(filepath.Join(forumDir, "How to start", "channel_info.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &info))
	assert.True(t, info.IsThread)
	require.NotNil(t, info.ParentChannel)
	assert.Equal(t, "Guides", *info.ParentChannel)
	assert.Equal(t, "public_thread", info.Type)
}

func TestRunEmptyNamesFallBackToIDs(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "雑談", generalID)}
	fx.src.archived[100] = []models.Conversation{thread(101, "質問", 100)}
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fx.src.addMessage(100, 1, "Alice", "channel", day)
	fx.src.addMessage(101, 2, "Bob", "thread", day)

	fx.run(t, Options{})

	assert.Equal(t, []int64{1}, recordIDs(readRecords(t, filepath.Join(fx.root, "General", "100", "messages.jsonl"))))
	assert.Equal(t, []int64{2}, recordIDs(readRecords(t, filepath.Join(fx.root, "General", "100", "101", "messages.jsonl"))))
}

func TestRunFlushesInBatches(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID)}
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 25; i++ {
		fx.src.addMessage(100, i, "Alice", fmt.Sprintf("message %d", i), day.Add(time.Duration(i)*time.Hour))
	}

	summary := fx.run(t, Options{BatchSize: 10})
	assert.Equal(t, 25, summary.Messages)

	dir := filepath.Join(fx.root, "General", "chat")
	recs := readRecords(t, filepath.Join(dir, "messages.jsonl"))
	require.Len(t, recs, 25)
	for i, r := range recs {
		assert.Equal(t, int64(i+1), r.ID)
	}

	// Messages spread over two days land in two date files.
	first, err := os.ReadFile(filepath.Join(dir, "messages", "2024-05-01.md"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "messages", "2024-05-02.md"))
	require.NoError(t, err)
	assert.Equal(t, 23, strings.Count(string(first), "### "))
	assert.Equal(t, 2, strings.Count(string(second), "### "))
}

type stubExclusions map[string]bool

func (s stubExclusions) IsExcluded(id string) (bool, error) { return s[id], nil }

type stubLedger struct{ runs []models.RunSummary }

func (s *stubLedger) RecordRun(summary models.RunSummary) error {
	s.runs = append(s.runs, summary)
	return nil
}

func TestRunHonorsExclusionsAndRecordsRun(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID), textChannel(200, "private", generalID)}
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fx.src.addMessage(100, 1, "Alice", "hi", day)
	fx.src.addMessage(200, 2, "Bob", "secret", day)

	ledger := &stubLedger{}
	summary := fx.run(t, Options{Exclusions: stubExclusions{"200": true}, Ledger: ledger})

	assert.Equal(t, 1, summary.Conversations)
	assert.Zero(t, fx.src.streams[200])
	_, err := os.Stat(filepath.Join(fx.root, "General", "private"))
	assert.True(t, os.IsNotExist(err))

	require.Len(t, ledger.runs, 1)
	assert.Equal(t, 1, ledger.runs[0].Messages)
	assert.Equal(t, fx.now, ledger.runs[0].StartedAt)
}

func TestRunStopsOnCancel(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "first", generalID), textChannel(200, "second", generalID)}
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fx.src.addMessage(100, 1, "Alice", "one", day)
	fx.src.addMessage(100, 2, "Alice", "two", day)
	fx.src.addMessage(200, 3, "Bob", "never", day)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cursors := database.NewCursorStore(fx.state)
	src := &cancellingSource{fakeSource: fx.src, cancel: cancel, after: 1}
	_, err := NewArchiver(src, cursors, Options{Root: fx.root, AllowedCategories: []string{"General"}}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The message consumed before the interrupt is on disk and its cursor persisted.
	assert.Equal(t, []int64{1}, recordIDs(readRecords(t, filepath.Join(fx.root, "General", "first", "messages.jsonl"))))
	reloaded := database.NewCursorStore(fx.state)
	reloaded.Load()
	id, _ := reloaded.Get("100")
	assert.Equal(t, int64(1), id)
	assert.Zero(t, fx.src.streams[200])
}

// cancellingSource cancels the run right after yielding the message with ID after.
type cancellingSource struct {
	*fakeSource
	cancel context.CancelFunc
	after  int64
}

func (c *cancellingSource) StreamMessages(ctx context.Context, conv models.Conversation, after int64, fn func(*models.Message) error) error {
	return c.fakeSource.StreamMessages(ctx, conv, after, func(m *models.Message) error {
		if err := fn(m); err != nil {
			return err
		}
		if m.ID == c.after {
			c.cancel()
		}
		return nil
	})
}

func TestRunCanceledDuringDownloadKeepsMessagesPending(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID)}
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for _, id := range []int64{10, 11} {
		m := fx.src.addMessage(100, id, "Alice", "pic", day)
		url := fmt.Sprintf("https://cdn/%d", id)
		m.Attachments = []models.Attachment{{Filename: "cat.png", URL: url}}
		fx.src.files[url] = "meow"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx.src.cancelOnDownload = cancel

	cursors := database.NewCursorStore(fx.state)
	summary, err := NewArchiver(fx.src, cursors, Options{Root: fx.root, AllowedCategories: []string{"General"}}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Messages)
	assert.Zero(t, summary.Failures)

	dir := filepath.Join(fx.root, "General", "chat")
	_, err = os.Stat(filepath.Join(dir, "messages.jsonl"))
	assert.True(t, os.IsNotExist(err), "no record may be written without its attachment")
	_, err = os.Stat(fx.state)
	assert.True(t, os.IsNotExist(err), "cursor must not move past the interrupted message")
	entries, err := os.ReadDir(filepath.Join(dir, "attachments"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The next run picks both messages up with their attachments.
	fx.src.cancelOnDownload = nil
	fx.run(t, Options{})

	recs := readRecords(t, filepath.Join(dir, "messages.jsonl"))
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"attachments/10_cat.png"}, recs[0].Attachments)
	assert.Equal(t, []string{"attachments/11_cat.png"}, recs[1].Attachments)
	id, _ := fx.cursors.Get("100")
	assert.Equal(t, int64(11), id)
}

func TestRunThreadNamedLikeReservedEntry(t *testing.T) {
	fx := newFixture(t)
	fx.src.channels = []models.Conversation{textChannel(100, "chat", generalID)}
	fx.src.archived[100] = []models.Conversation{
		thread(101, "channel_info.json", 100),
		thread(102, "messages", 100),
	}
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fx.src.addMessage(100, 1, "Alice", "channel", day)
	fx.src.addMessage(101, 2, "Bob", "info thread", day)
	fx.src.addMessage(102, 3, "Carol", "messages thread", day)

	summary := fx.run(t, Options{})
	assert.Zero(t, summary.Failures)
	assert.Equal(t, 3, summary.Updated)

	chat := filepath.Join(fx.root, "General", "chat")
	assert.Equal(t, []int64{1}, recordIDs(readRecords(t, filepath.Join(chat, "messages.jsonl"))))
	assert.Equal(t, []int64{2}, recordIDs(readRecords(t, filepath.Join(chat, "101", "messages.jsonl"))))
	assert.Equal(t, []int64{3}, recordIDs(readRecords(t, filepath.Join(chat, "102", "messages.jsonl"))))

	var info models.ChannelInfo
	data, err := os.ReadFile(filepath.Join(chat, "channel_info.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, int64(100), info.ID)
}
