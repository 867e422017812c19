package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mcqscan/topic"
)

// CheckpointFileName is the per-folder progress file
const CheckpointFileName = "progress.json"

// TopicSnapshot is the topic state as stored in a checkpoint. Unset labels
// are written as null.
type TopicSnapshot struct {
	CurrentTopicBN *string `json:"current_topic_bn"`
	CurrentTopicEN *string `json:"current_topic_en"`
}

// Checkpoint is the persisted progress of one folder
type Checkpoint struct {
	Folder       string         `json:"folder"`
	Processed    int            `json:"processed"`
	Total        int            `json:"total"`
	Timestamp    float64        `json:"timestamp"`
	TopicTracker *TopicSnapshot `json:"topic_tracker"`
	RunID        string         `json:"run_id,omitempty"`
}

// Snapshot converts a topic state for storage
func Snapshot(s topic.State) *TopicSnapshot {
	snap := &TopicSnapshot{}
	if s.Source != "" {
		snap.CurrentTopicBN = &s.Source
	}
	if s.Translated != "" {
		snap.CurrentTopicEN = &s.Translated
	}
	return snap
}

// State restores the stored topic state; a nil snapshot is the zero state
func (t *TopicSnapshot) State() topic.State {
	var s topic.State
	if t == nil {
		return s
	}
	if t.CurrentTopicBN != nil {
		s.Source = *t.CurrentTopicBN
	}
	if t.CurrentTopicEN != nil {
		s.Translated = *t.CurrentTopicEN
	}
	return s
}

// Timestamp converts t to fractional Unix seconds
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// LoadCheckpoint reads dir/progress.json. It returns nil and no error when
// the file does not exist.
func LoadCheckpoint(dir string) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(dir, CheckpointFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	return &cp, nil
}

// SaveCheckpoint writes cp to dir/progress.json
func SaveCheckpoint(dir string, cp *Checkpoint) error {
	_, err := writeJSON(filepath.Join(dir, CheckpointFileName), cp)
	return err
}
