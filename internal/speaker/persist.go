package speaker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// snapshotSpeaker is the on-disk encoding of one speaker profile. Only the
// centroid is retained — individual embeddings are not recoverable across a
// save/load cycle, by design (see session store design notes).
type snapshotSpeaker struct {
	Centroid      []float32 `json:"centroid"`
	TotalDuration float64   `json:"total_duration"`
	ChunkCount    int       `json:"chunk_count"`
}

// snapshot is the top-level shape of a session's persisted file.
type snapshot struct {
	Speakers map[string]snapshotSpeaker `json:"speakers"`
}

// Persister reads and writes session snapshots under a root directory, one
// JSON file per session named "<session_id>.json".
type Persister struct {
	root string
}

// NewPersister returns a Persister rooted at dir. The directory is created
// if it does not already exist.
func NewPersister(dir string) (*Persister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("speaker: create persistence root: %w", err)
	}
	return &Persister{root: dir}, nil
}

func (p *Persister) path(sessionID string) string {
	return filepath.Join(p.root, sessionID+".json")
}

// Load reads sessionID's snapshot. found is false (with a nil error) when no
// snapshot file exists yet.
func (p *Persister) Load(sessionID string) (sess *Session, found bool, err error) {
	data, err := os.ReadFile(p.path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("speaker: read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("speaker: decode snapshot: %w", err)
	}

	sess = newSession()
	for id, sp := range snap.Speakers {
		profile := NewProfile(id)
		if len(sp.Centroid) > 0 {
			// Reloaded sessions initialize embeddings to the singleton
			// [centroid] — historical individual embeddings are gone.
			profile.Embeddings = []Embedding{append(Embedding(nil), sp.Centroid...)}
		}
		profile.TotalDuration = sp.TotalDuration
		profile.ChunkCount = sp.ChunkCount
		sess.Profiles[id] = profile
	}
	return sess, true, nil
}

// Save atomically writes sess's snapshot for sessionID: the file is written
// to a sibling temp path and renamed into place so a crash mid-write cannot
// leave a corrupt snapshot in the final location.
func (p *Persister) Save(sessionID string, sess *Session) error {
	snap := snapshot{Speakers: make(map[string]snapshotSpeaker, len(sess.Profiles))}
	for id, prof := range sess.Profiles {
		snap.Speakers[id] = snapshotSpeaker{
			Centroid:      []float32(prof.Centroid()),
			TotalDuration: prof.TotalDuration,
			ChunkCount:    prof.ChunkCount,
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("speaker: encode snapshot: %w", err)
	}

	final := p.path(sessionID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("speaker: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("speaker: rename snapshot into place: %w", err)
	}
	return nil
}

// Delete removes sessionID's snapshot file, if any. A missing file is not
// an error.
func (p *Persister) Delete(sessionID string) error {
	err := os.Remove(p.path(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("speaker: delete snapshot: %w", err)
	}
	return nil
}
