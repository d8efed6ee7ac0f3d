package speaker

import (
	"context"
	"math"
	"sort"
)

// matchThreshold is the cosine-similarity cutoff at or above which a new
// embedding is considered the same speaker as an existing profile.
const matchThreshold = 0.60

// minDurationForEmbedding is the shortest representative-turn duration for
// which an embedding is even attempted. Shorter fragments are typically
// false positives from the diarizer and pass through unresolved.
const minDurationForEmbedding = 0.5

// minDurationToPersist is the shortest representative-turn duration whose
// embedding is allowed to contribute to a profile. Between this and
// minDurationForEmbedding, a turn can be matched but never written back.
const minDurationToPersist = 1.5

// sentinelSpeakerID is the literal fallback label used when num_speakers_hint
// capacity is reached with no existing candidate to fall back on.
const sentinelSpeakerID = "SPEAKER_00"

// Turn is one diarization interval with a label unique only within the call
// that produced it.
type Turn struct {
	LocalLabel string
	Start      float64
	End        float64
}

// Embedder extracts a voiceprint for the dominant speaker within [start,end]
// of the audio at path. ok is false if no usable embedding could be
// extracted (e.g. silence, or the collaborator is unavailable).
type Embedder interface {
	Embed(ctx context.Context, path string, start, end float64) (e Embedding, ok bool, err error)
}

// NoSpeakersHint indicates that the caller supplied no num_speakers_hint.
// A supplied hint of 0 is a distinct, degenerate value: it forces every
// unmatched label in the (necessarily still-empty) session to the bare
// sentinel, per the design notes' resolved open question.
const NoSpeakersHint = -1

// Outcome accumulates per-label resolution counts for observability. A nil
// *Outcome is safe to pass when the caller doesn't need the counts.
type Outcome struct {
	// Matches counts labels resolved to an existing speaker profile,
	// whether by threshold or by a hint-forced candidate.
	Matches int
	// Allocations counts labels that received a brand-new speaker ID.
	Allocations int
	// Fallbacks counts labels that fell back to the bare sentinel because
	// num_speakers_hint capacity was reached with no candidate at all.
	Fallbacks int
}

func (o *Outcome) recordMatch() {
	if o != nil {
		o.Matches++
	}
}

func (o *Outcome) recordAllocation() {
	if o != nil {
		o.Allocations++
	}
}

func (o *Outcome) recordFallback() {
	if o != nil {
		o.Fallbacks++
	}
}

// Resolve rewrites each turn's LocalLabel to a session-stable speaker ID,
// updates sess's profiles, and returns the rewritten turns in input order.
// Pass NoSpeakersHint when the caller did not supply num_speakers. outcome
// may be nil if the caller does not need resolution counts.
//
// Resolve does not itself acquire sess's lock or call Store.Save — the
// caller (the orchestrator) holds the per-session lock for the duration of
// this call and is responsible for saving afterward.
func Resolve(ctx context.Context, store *Store, sess *Session, embedder Embedder, audioPath string, turns []Turn, numSpeakersHint int, outcome *Outcome) []Turn {
	if len(turns) == 0 {
		return turns
	}

	buckets := groupByLocalLabel(turns)
	mapping := make(map[string]string, len(buckets))

	// Stable iteration order over buckets so behavior is deterministic given
	// a fixed input, independent of Go's randomized map iteration.
	labels := make([]string, 0, len(buckets))
	for label := range buckets {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		rep := representative(buckets[label])
		duration := rep.End - rep.Start

		if duration < minDurationForEmbedding {
			continue // identity passthrough, no state change
		}

		emb, ok, err := embedder.Embed(ctx, audioPath, rep.Start, rep.End)
		if err != nil || !ok {
			continue // embedding failure degrades to passthrough
		}

		candidateID, similarity := bestMatch(sess, emb)

		var resolvedID string
		switch {
		case similarity >= matchThreshold:
			resolvedID = candidateID
			outcome.recordMatch()
		case numSpeakersHint >= 0 && len(sess.Profiles) >= numSpeakersHint:
			// Hint is authoritative: force the best candidate even below
			// threshold, or fall back to the bare sentinel without
			// persisting if there is no candidate at all.
			if candidateID != "" {
				resolvedID = candidateID
				outcome.recordMatch()
			} else {
				mapping[label] = sentinelSpeakerID
				outcome.recordFallback()
				continue
			}
		default:
			resolvedID = store.AllocateNextID(sess)
			outcome.recordAllocation()
		}

		mapping[label] = resolvedID
		if duration >= minDurationToPersist {
			store.Upsert(sess, resolvedID, emb, duration)
		}
	}

	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t
		if mapped, ok := mapping[t.LocalLabel]; ok {
			out[i].LocalLabel = mapped
		}
	}
	return out
}

// groupByLocalLabel buckets turns by their local diarization label,
// preserving each bucket's relative order.
func groupByLocalLabel(turns []Turn) map[string][]Turn {
	buckets := make(map[string][]Turn)
	for _, t := range turns {
		buckets[t.LocalLabel] = append(buckets[t.LocalLabel], t)
	}
	return buckets
}

// representative picks the longest turn in a bucket, breaking ties by
// earlier start.
func representative(turns []Turn) Turn {
	best := turns[0]
	bestDur := best.End - best.Start
	for _, t := range turns[1:] {
		dur := t.End - t.Start
		if dur > bestDur || (dur == bestDur && t.Start < best.Start) {
			best = t
			bestDur = dur
		}
	}
	return best
}

// bestMatch scans sess's profiles in natural map order and returns the
// identifier and similarity of the best-matching centroid. Callers must not
// depend on a specific iteration order across implementations; only that
// results are deterministic for a fixed insertion history within this
// process.
func bestMatch(sess *Session, e Embedding) (candidateID string, similarity float64) {
	best := -2.0 // below any valid cosine similarity
	for id, p := range sess.Profiles {
		sim := cosineSimilarity(e, p.Centroid())
		if sim > best {
			best = sim
			candidateID = id
		}
	}
	if candidateID == "" {
		return "", 0.0
	}
	return candidateID, best
}

// cosineSimilarity returns 0.0 if either vector has zero norm; otherwise
// dot(a,b) / (||a|| * ||b||). Vectors of unequal length are compared over
// their shared prefix.
func cosineSimilarity(a, b Embedding) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
