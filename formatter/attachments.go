package formatter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"discord-indexer/models"
	"discord-indexer/utils"
)

// Downloader fetches the bytes of an attachment.
type Downloader interface {
	DownloadAttachment(ctx context.Context, att models.Attachment, w io.Writer) error
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// StoredName is the local file name of an attachment: the owning message
// ID, an underscore and the sanitized original name.
func StoredName(messageID int64, filename string) string {
	return strconv.FormatInt(messageID, 10) + "_" + utils.Sanitize(filename)
}

// IsImage reports whether a stored name should be embedded as an image.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// SaveAttachment stores att in dir and returns its stored name. An existing
// file with that name is trusted and not downloaded again. The download
// goes to a temporary file first so a broken transfer never leaves a file
// that later runs would skip.
func SaveAttachment(ctx context.Context, dl Downloader, dir string, messageID int64, att models.Attachment) (string, error) {
	name := StoredName(messageID, att.Filename)
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err == nil {
		return name, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat attachment %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".part-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if err := dl.DownloadAttachment(ctx, att, tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to download %s: %w", att.Filename, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("failed to move attachment into place: %w", err)
	}
	committed = true
	return name, nil
}
