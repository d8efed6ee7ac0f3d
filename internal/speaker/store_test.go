package speaker

import "testing"

func TestStore_AllocateNextID_IsIdempotentUntilInserted(t *testing.T) {
	s := NewStore(nil)
	sess := s.GetOrCreate("sess-1")

	first := s.AllocateNextID(sess)
	second := s.AllocateNextID(sess)
	if first != second {
		t.Errorf("AllocateNextID without insert changed: %q -> %q", first, second)
	}
	if first != "SPEAKER_00" {
		t.Errorf("AllocateNextID on empty session = %q, want SPEAKER_00", first)
	}

	s.Upsert(sess, first, Embedding{1, 0}, 2.0)
	next := s.AllocateNextID(sess)
	if next != "SPEAKER_01" {
		t.Errorf("AllocateNextID after one insert = %q, want SPEAKER_01", next)
	}
}

func TestStore_Upsert_CreatesAndAccumulates(t *testing.T) {
	s := NewStore(nil)
	sess := s.GetOrCreate("sess-1")

	s.Upsert(sess, "SPEAKER_00", Embedding{1, 0}, 3.0)
	s.Upsert(sess, "SPEAKER_00", Embedding{1, 0}, 4.0)

	p, ok := sess.Profiles["SPEAKER_00"]
	if !ok {
		t.Fatal("profile not created")
	}
	if p.TotalDuration != 7.0 {
		t.Errorf("TotalDuration = %v, want 7.0", p.TotalDuration)
	}
	if p.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d, want 2", p.ChunkCount)
	}
}

func TestStore_GetOrCreate_ReturnsSameSessionOnRepeatedCalls(t *testing.T) {
	s := NewStore(nil)
	a := s.GetOrCreate("sess-1")
	b := s.GetOrCreate("sess-1")
	if a != b {
		t.Error("GetOrCreate returned distinct sessions for the same ID")
	}
}

func TestStore_Clear_RemovesLiveSession(t *testing.T) {
	s := NewStore(nil)
	sess := s.GetOrCreate("sess-1")
	s.Upsert(sess, "SPEAKER_00", Embedding{1, 0}, 3.0)

	if err := s.Clear("sess-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if got := s.Speakers("sess-1"); len(got) != 0 {
		t.Errorf("Speakers after Clear = %v, want empty", got)
	}

	// A new reference to the same ID starts fresh.
	fresh := s.GetOrCreate("sess-1")
	if len(fresh.Profiles) != 0 {
		t.Errorf("fresh session after Clear has %d profiles, want 0", len(fresh.Profiles))
	}
}

func TestStore_Lock_SerializesPerSession(t *testing.T) {
	s := NewStore(nil)
	unlock := s.Lock("sess-1")

	done := make(chan struct{})
	go func() {
		unlock2 := s.Lock("sess-1")
		unlock2()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Lock acquired before first was released")
	default:
	}
	unlock()
	<-done
}

func TestStore_Speakers_LoadsPersistedSessionNotYetResident(t *testing.T) {
	persist, err := NewPersister(t.TempDir())
	if err != nil {
		t.Fatalf("NewPersister: %v", err)
	}

	// Simulate a prior process: populate and save a session through one
	// Store, then query it through a brand new Store pointed at the same
	// persistence root, with nothing resident in memory yet.
	writer := NewStore(persist)
	sess := writer.GetOrCreate("sess-restart")
	writer.Upsert(sess, "SPEAKER_00", Embedding{1, 0}, 5.0)
	writer.Save("sess-restart")

	reader := NewStore(persist)
	got := reader.Speakers("sess-restart")
	if len(got) != 1 {
		t.Fatalf("Speakers on unresident-but-persisted session = %+v, want one summary", got)
	}
	if got[0].SpeakerID != "SPEAKER_00" || got[0].TotalDuration != 5.0 {
		t.Errorf("summary = %+v, unexpected", got[0])
	}
}

func TestStore_Speakers_ReturnsSummaries(t *testing.T) {
	s := NewStore(nil)
	sess := s.GetOrCreate("sess-1")
	s.Upsert(sess, "SPEAKER_00", Embedding{1, 0}, 3.0)

	got := s.Speakers("sess-1")
	if len(got) != 1 {
		t.Fatalf("len(Speakers) = %d, want 1", len(got))
	}
	if got[0].SpeakerID != "SPEAKER_00" || got[0].TotalDuration != 3.0 || got[0].ChunkCount != 1 {
		t.Errorf("summary = %+v, unexpected", got[0])
	}
}
