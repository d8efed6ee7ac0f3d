package speaker

import (
	"fmt"
	"log/slog"
	"sync"
)

// Session is the live, in-memory set of speaker profiles for one session,
// keyed by stable speaker ID.
type Session struct {
	Profiles map[string]*Profile
}

func newSession() *Session {
	return &Session{Profiles: make(map[string]*Profile)}
}

// Store owns every speaker profile across every session, mediates all
// mutation, and lazily (de)serializes sessions to the configured
// persistence root. The zero value is not usable; construct with NewStore.
//
// A registry-level mutex guards the session map itself; each session also
// has its own mutex, acquired by callers (typically the orchestrator, around
// a resolver call) for the duration of a single chunk's work so that collaborator calls never happen
// while holding the registry lock.
type Store struct {
	persist *Persister

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

// NewStore returns a Store. If p is nil, sessions are held in memory only —
// Save and clear-from-disk become no-ops.
func NewStore(p *Persister) *Store {
	return &Store{
		persist:  p,
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Lock acquires (creating if necessary) the per-session mutex for
// sessionID and returns an unlock function. The registry lock is held only
// long enough to fetch-or-create the entry.
func (s *Store) Lock(sessionID string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// GetOrCreate returns the live session for sessionID, loading it from disk
// on first access if a snapshot exists. A failed load is logged and yields
// an empty session; it never propagates as an error.
func (s *Store) GetOrCreate(sessionID string) *Session {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		return sess
	}
	s.mu.Unlock()

	// Disk I/O happens outside the registry lock so a slow or missing
	// snapshot for one session never blocks lookups for another.
	sess := newSession()
	if s.persist != nil {
		loaded, found, err := s.persist.Load(sessionID)
		switch {
		case err != nil:
			slog.Error("speaker: load session snapshot failed", "session_id", sessionID, "error", err)
		case found:
			sess = loaded
			slog.Info("speaker: loaded existing session", "session_id", sessionID, "speaker_count", len(sess.Profiles))
		default:
			slog.Info("speaker: created new session", "session_id", sessionID)
		}
	} else {
		slog.Info("speaker: created new session", "session_id", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		// Another goroutine won the race and already loaded/created it.
		return existing
	}
	s.sessions[sessionID] = sess
	return sess
}

// AllocateNextID returns the stable identifier that would be assigned to
// the next new speaker in sessionID, based on the session's current
// cardinality. It does not insert a profile — the caller must Upsert to
// make the allocation durable. Calling this repeatedly without inserting
// yields the same identifier each time.
func (s *Store) AllocateNextID(sess *Session) string {
	return formatSpeakerID(len(sess.Profiles))
}

// Upsert creates speakerID's profile if absent, then records the embedding
// observation against it.
func (s *Store) Upsert(sess *Session, speakerID string, e Embedding, duration float64) {
	p, ok := sess.Profiles[speakerID]
	if !ok {
		p = NewProfile(speakerID)
		sess.Profiles[speakerID] = p
	}
	p.AddEmbedding(e, duration)
}

// Save writes sessionID's snapshot to disk if persistence is configured.
// Failures are logged and never returned to the caller, per the
// always-recoverable persistence contract.
func (s *Store) Save(sessionID string) {
	if s.persist == nil {
		return
	}
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.persist.Save(sessionID, sess); err != nil {
		slog.Error("speaker: save session snapshot failed", "session_id", sessionID, "error", err)
	}
}

// Clear drops sessionID from the live mapping and deletes its on-disk
// snapshot, if any.
func (s *Store) Clear(sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	delete(s.locks, sessionID)
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}
	if err := s.persist.Delete(sessionID); err != nil {
		return fmt.Errorf("speaker: clear session: %w", err)
	}
	return nil
}

// Speakers returns a point-in-time summary of sessionID's profiles. If the
// session isn't currently resident in memory, it is loaded from its
// persisted snapshot first (or created empty if none exists), matching the
// always-lazy-load read path the rest of the Store uses.
func (s *Store) Speakers(sessionID string) []SpeakerSummary {
	unlock := s.Lock(sessionID)
	defer unlock()

	sess := s.GetOrCreate(sessionID)

	out := make([]SpeakerSummary, 0, len(sess.Profiles))
	for id, p := range sess.Profiles {
		out = append(out, SpeakerSummary{
			SpeakerID:     id,
			TotalDuration: p.TotalDuration,
			ChunkCount:    p.ChunkCount,
		})
	}
	return out
}

// SpeakerSummary is the public, serializable view of one profile returned
// by the session-speakers endpoint.
type SpeakerSummary struct {
	SpeakerID     string  `json:"speaker_id"`
	TotalDuration float64 `json:"total_duration"`
	ChunkCount    int     `json:"chunk_count"`
}
