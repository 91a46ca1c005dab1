package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// CursorStore remembers, per conversation, the ID of the last message that
// was archived. It is the resume point of the next incremental fetch.
type CursorStore struct {
	path    string
	mutex   sync.Mutex
	cursors map[string]int64
	dirty   bool // changed since the last Load or successful Save
}

// NewCursorStore creates an empty store backed by the JSON file at path.
// Call Load to pick up the state of previous runs.
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{
		path:    path,
		cursors: make(map[string]int64),
	}
}

// Load replaces the in-memory state with the persisted one. A missing file
// is a first run; an unreadable or corrupt file is logged and treated the
// same way, so the indexer re-fetches instead of refusing to start.
func (cs *CursorStore) Load() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cursors = make(map[string]int64)
	cs.dirty = false

	data, err := os.ReadFile(cs.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to read state file %s: %v", cs.path, err)
		}
		return
	}

	var cursors map[string]int64
	if err := json.Unmarshal(data, &cursors); err != nil {
		log.Printf("Failed to parse state file %s, starting from scratch: %v", cs.path, err)
		return
	}
	if cursors != nil {
		cs.cursors = cursors
	}
}

// Save writes the whole mapping to disk, replacing the previous file
// atomically so an interrupted save never leaves a truncated state file.
func (cs *CursorStore) Save() error {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	// Ensure the directory exists.
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(cs.cursors, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := cs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, cs.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	cs.dirty = false
	return nil
}

// Get returns the last archived message ID of a conversation.
func (cs *CursorStore) Get(conversationID string) (int64, bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	id, ok := cs.cursors[conversationID]
	return id, ok
}

// Update records messageID as the last archived message of a conversation.
// It overwrites unconditionally; callers feed messages oldest-first.
func (cs *CursorStore) Update(conversationID string, messageID int64) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	cs.cursors[conversationID] = messageID
	cs.dirty = true
}

// Dirty reports whether there are updates that have not been saved yet.
func (cs *CursorStore) Dirty() bool {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	return cs.dirty
}

// Len returns the number of tracked conversations.
func (cs *CursorStore) Len() int {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	return len(cs.cursors)
}
