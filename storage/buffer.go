package storage

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultBatchSize is how many messages are buffered before an automatic flush.
const DefaultBatchSize = 100

// Buffer accumulates the rendered output of one conversation and writes it
// out in batches. It is not safe for concurrent use; conversations are
// archived one at a time.
type Buffer struct {
	layout    Layout
	batchSize int

	markdown map[string]*strings.Builder // date key -> pending Markdown
	records  []string                    // pending JSONL lines, newline-terminated
	count    int
	flushes  int
}

// NewBuffer returns an empty buffer writing into layout. A non-positive
// batchSize selects DefaultBatchSize.
func NewBuffer(layout Layout, batchSize int) *Buffer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Buffer{
		layout:    layout,
		batchSize: batchSize,
		markdown:  make(map[string]*strings.Builder),
	}
}

// Append buffers one message's output. Either part may be empty when its
// rendering stage failed; the message still counts towards the batch. When
// the batch is full the buffer is flushed and the flush error returned.
func (b *Buffer) Append(dateKey, markdown, recordLine string) error {
	if markdown != "" {
		sb, ok := b.markdown[dateKey]
		if !ok {
			sb = &strings.Builder{}
			b.markdown[dateKey] = sb
		}
		sb.WriteString(markdown)
	}
	if recordLine != "" {
		if !strings.HasSuffix(recordLine, "\n") {
			recordLine += "\n"
		}
		b.records = append(b.records, recordLine)
	}

	b.count++
	if b.count >= b.batchSize {
		return b.Flush()
	}
	return nil
}

// Pending returns how many messages were appended since the last flush.
func (b *Buffer) Pending() int { return b.count }

// Flushes returns how many flushes actually wrote something.
func (b *Buffer) Flushes() int { return b.flushes }

// Flush appends everything buffered to the date files and the record file.
// A failing file does not stop the others; all failures are returned
// joined. The buffer is emptied whatever happened.
func (b *Buffer) Flush() error {
	defer b.reset()

	if len(b.markdown) == 0 && len(b.records) == 0 {
		return nil
	}
	b.flushes++

	var errs []error

	// Dates in order so files are touched deterministically.
	dates := make([]string, 0, len(b.markdown))
	for date := range b.markdown {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		if err := appendDateFile(b.layout.DateFile(date), date, b.markdown[date].String()); err != nil {
			errs = append(errs, err)
		}
	}

	if len(b.records) > 0 {
		if err := appendLines(b.layout.RecordFile(), b.records); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (b *Buffer) reset() {
	b.markdown = make(map[string]*strings.Builder)
	b.records = nil
	b.count = 0
}

// appendDateFile appends content to a date file, starting a new file with
// a "# date" heading.
func appendDateFile(path, date, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	switch {
	case err == nil:
		_, err = f.WriteString("# " + date + "\n\n" + content)
	case errors.Is(err, os.ErrExist):
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open markdown file %s: %w", path, err)
		}
		_, err = f.WriteString(content)
	default:
		return fmt.Errorf("failed to create markdown file %s: %w", path, err)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write markdown file %s: %w", path, err)
	}
	return nil
}

func appendLines(path string, lines []string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open record file %s: %w", path, err)
	}
	for _, line := range lines {
		if _, err = f.WriteString(line); err != nil {
			break
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write record file %s: %w", path, err)
	}
	return nil
}
