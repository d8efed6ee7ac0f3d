// Package speaker implements the session-scoped speaker-continuity
// subsystem: bounded speaker profiles, the session store that owns them, and
// the embedding-based resolver that maps per-chunk diarization labels onto
// stable session-wide identifiers.
package speaker

import "fmt"

// maxEmbeddings bounds the number of embeddings retained per profile. Beyond
// this cap the oldest observation is dropped first, biasing the centroid
// toward the speaker's current acoustic environment rather than the
// session's opening minute.
const maxEmbeddings = 50

// Embedding is a fixed-dimensional real-valued voiceprint. The dimension is
// whatever the embedder backend returns and is not interpreted here beyond
// euclidean norm and dot product.
type Embedding []float32

// Profile aggregates the embeddings observed for one stable speaker within a
// session. The zero value is not usable; construct with NewProfile.
type Profile struct {
	SpeakerID      string
	Embeddings     []Embedding
	TotalDuration  float64
	ChunkCount     int
	cachedCentroid Embedding
	centroidValid  bool
}

// NewProfile returns an empty profile for the given stable speaker ID.
func NewProfile(speakerID string) *Profile {
	return &Profile{SpeakerID: speakerID}
}

// AddEmbedding appends e to the profile, evicting the oldest entry once the
// cap is exceeded, and accumulates duration and chunk count.
func (p *Profile) AddEmbedding(e Embedding, duration float64) {
	cp := make(Embedding, len(e))
	copy(cp, e)

	p.Embeddings = append(p.Embeddings, cp)
	if len(p.Embeddings) > maxEmbeddings {
		p.Embeddings = p.Embeddings[len(p.Embeddings)-maxEmbeddings:]
	}
	p.TotalDuration += duration
	p.ChunkCount++
	p.centroidValid = false
}

// Centroid returns the arithmetic mean of the profile's embeddings, or nil
// if the profile has no embeddings yet. The result is cached until the next
// AddEmbedding call.
func (p *Profile) Centroid() Embedding {
	if len(p.Embeddings) == 0 {
		return nil
	}
	if p.centroidValid {
		return p.cachedCentroid
	}

	dim := len(p.Embeddings[0])
	sum := make(Embedding, dim)
	for _, e := range p.Embeddings {
		for i, v := range e {
			if i < dim {
				sum[i] += v
			}
		}
	}
	inv := float32(1.0 / float64(len(p.Embeddings)))
	for i := range sum {
		sum[i] *= inv
	}

	p.cachedCentroid = sum
	p.centroidValid = true
	return sum
}

// formatSpeakerID renders the two-digit zero-padded stable identifier used
// throughout the session store, e.g. formatSpeakerID(7) == "SPEAKER_07".
func formatSpeakerID(n int) string {
	return fmt.Sprintf("SPEAKER_%02d", n)
}
