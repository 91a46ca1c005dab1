package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"discord-indexer/models"
	"discord-indexer/utils"
)

// DateLayout formats the date key of a message; it names the Markdown file.
const DateLayout = "2006-01-02"

// Rendered is the output of one message.
type Rendered struct {
	DateKey     string
	Markdown    string
	Record      string   // one JSONL line including the trailing newline
	Attachments []string // stored names of attachments saved successfully
}

// RenderError reports that one stage of rendering a message failed. The
// other stage's output is still usable.
type RenderError struct {
	Stage     string
	MessageID int64
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s for message %d: %v", e.Stage, e.MessageID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer turns messages into Markdown fragments and JSONL records,
// downloading their attachments on the way.
type Renderer struct {
	dl Downloader
}

// NewRenderer returns a renderer fetching attachments through dl.
func NewRenderer(dl Downloader) *Renderer {
	return &Renderer{dl: dl}
}

// Render renders msg. Attachments land in attachmentsDir; one that cannot
// be downloaded is logged and left out of both outputs. If ctx ends while
// attachments are saved, Render returns ctx's error and no output.
// Any other error is a *RenderError and comes with whatever output did
// succeed.
func (r *Renderer) Render(ctx context.Context, msg *models.Message, attachmentsDir string) (*Rendered, error) {
	out := &Rendered{DateKey: msg.CreatedAt.UTC().Format(DateLayout)}

	for _, att := range msg.Attachments {
		name, err := SaveAttachment(ctx, r.dl, attachmentsDir, msg.ID, att)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			utils.Warn("Renderer", "SaveAttachment", fmt.Sprintf("message %d: %v", msg.ID, err))
			continue
		}
		out.Attachments = append(out.Attachments, name)
	}

	out.Markdown = markdown(msg, out.Attachments)

	record, err := recordLine(msg, out.Attachments)
	if err != nil {
		return out, &RenderError{Stage: "record", MessageID: msg.ID, Err: err}
	}
	out.Record = record
	return out, nil
}

// markdown builds the Markdown fragment of msg. Only attachments whose
// stored name is in stored are linked.
func markdown(msg *models.Message, stored []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s (%s)\n", msg.Author.DisplayName, msg.CreatedAt.UTC().Format("15:04"))

	if msg.Reference != nil {
		fmt.Fprintf(&b, "> (Reply to message %d)\n\n", msg.Reference.MessageID)
	}

	if msg.CleanContent != "" {
		b.WriteString(msg.CleanContent)
		b.WriteString("\n\n")
	}

	for _, e := range msg.Embeds {
		if e.Title != "" {
			fmt.Fprintf(&b, "**Embed: %s**\n", e.Title)
		}
		if e.Description != "" {
			fmt.Fprintf(&b, "> %s\n", e.Description)
		}
		if e.URL != "" {
			fmt.Fprintf(&b, "[Link](%s)\n", e.URL)
		}
		b.WriteString("\n")
	}

	saved := make(map[string]bool, len(stored))
	for _, name := range stored {
		saved[name] = true
	}
	for _, att := range msg.Attachments {
		name := StoredName(msg.ID, att.Filename)
		if !saved[name] {
			continue
		}
		rel := "../attachments/" + name
		if IsImage(name) {
			fmt.Fprintf(&b, "![%s](%s)\n", att.Filename, rel)
		} else {
			fmt.Fprintf(&b, "[%s](%s)\n", att.Filename, rel)
		}
	}

	b.WriteString("\n")
	return b.String()
}

// recordLine builds the JSONL line of msg.
func recordLine(msg *models.Message, stored []string) (string, error) {
	rec := models.MessageRecord{
		ID: msg.ID,
		Author: models.AuthorRecord{
			ID:            msg.Author.ID,
			Name:          msg.Author.Name,
			Discriminator: msg.Author.Discriminator,
			DisplayName:   msg.Author.DisplayName,
			Bot:           msg.Author.Bot,
		},
		Content:      msg.Content,
		CleanContent: msg.CleanContent,
		CreatedAt:    msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		Attachments:  make([]string, 0, len(stored)),
		Embeds:       make([]json.RawMessage, 0, len(msg.Embeds)),
		Reactions:    make([]models.ReactionRecord, 0, len(msg.Reactions)),
	}

	if msg.EditedAt != nil {
		edited := msg.EditedAt.UTC().Format(time.RFC3339Nano)
		rec.EditedAt = &edited
	}
	for _, name := range stored {
		rec.Attachments = append(rec.Attachments, "attachments/"+name)
	}
	for _, e := range msg.Embeds {
		raw := e.Raw
		if len(raw) == 0 {
			raw = json.RawMessage("{}")
		}
		rec.Embeds = append(rec.Embeds, raw)
	}
	if ref := msg.Reference; ref != nil {
		rec.Reference = &models.ReferenceRecord{
			MessageID: optionalID(ref.MessageID),
			ChannelID: optionalID(ref.ChannelID),
			GuildID:   optionalID(ref.GuildID),
		}
	}
	for _, r := range msg.Reactions {
		rec.Reactions = append(rec.Reactions, models.ReactionRecord{Emoji: r.Emoji, Count: r.Count})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// optionalID maps the zero ID, which snowflakes never use, to null.
func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
