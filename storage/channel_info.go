package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"discord-indexer/models"
)

// WriteChannelInfo writes the metadata file of a conversation unless it
// already exists. It reports whether the file was created by this call.
func WriteChannelInfo(layout Layout, info models.ChannelInfo) (bool, error) {
	data, err := marshalIndent(info)
	if err != nil {
		return false, fmt.Errorf("failed to marshal channel info: %w", err)
	}

	f, err := os.OpenFile(layout.ChannelInfoFile(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create channel info: %w", err)
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return true, fmt.Errorf("failed to write channel info: %w", err)
	}
	return true, nil
}

// marshalIndent is json.MarshalIndent without HTML escaping and without
// the trailing newline json.Encoder adds.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
