// Package index holds the in-memory similarity index over the canned-response
// catalog. Entries are embedded once per catalog load; each mention costs one
// query embedding plus a linear cosine sweep, which is plenty for a catalog of
// dozens of entries.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-listener/internal/signals"
	"github.com/fpang/brand-listener/internal/store"
)

type entry struct {
	canned store.CannedResponse
	vector []float32
}

// Index matches mention text against canned responses by embedding cosine
// similarity. Build and FindBest may be called from different goroutines.
type Index struct {
	embedder signals.Embedder

	mu      sync.RWMutex
	entries []entry
}

// New creates an empty Index backed by the given embedder.
func New(embedder signals.Embedder) *Index {
	return &Index{embedder: embedder}
}

// descriptiveText is what gets embedded for a catalog entry. Using the
// intent, keyword, and category rather than the reply template keeps the
// match anchored on what the entry answers, not how it is worded.
func descriptiveText(cr store.CannedResponse) string {
	parts := []string{cr.Intent, cr.Keyword, cr.Category}
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// Build embeds the catalog and atomically replaces the index contents.
// On error the previous contents are kept.
func (ix *Index) Build(ctx context.Context, catalog []store.CannedResponse) error {
	if len(catalog) == 0 {
		ix.mu.Lock()
		ix.entries = nil
		ix.mu.Unlock()
		log.Warn().Msg("Canned response catalog is empty, index cleared")
		return nil
	}

	texts := make([]string, len(catalog))
	for i, cr := range catalog {
		texts[i] = descriptiveText(cr)
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed catalog of %d entries: %w", len(catalog), err)
	}

	entries := make([]entry, len(catalog))
	for i, cr := range catalog {
		entries[i] = entry{canned: cr, vector: vectors[i]}
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()

	log.Info().Int("entries", len(entries)).Msg("Canned response index built")
	return nil
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// FindBest returns the catalog entry most similar to query and its cosine
// score. Ties keep the earliest catalog entry. A nil entry (score 0) means
// the index is empty or the query could not be embedded; callers treat that
// as a below-threshold match and generate instead.
func (ix *Index) FindBest(ctx context.Context, query string, topK int) (*store.CannedResponse, float64) {
	ix.mu.RLock()
	entries := ix.entries
	ix.mu.RUnlock()

	if len(entries) == 0 {
		return nil, 0
	}

	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("Query embedding failed, skipping canned match")
		return nil, 0
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, 0, len(entries))
	bestIdx, bestScore := -1, math.Inf(-1)
	for i, e := range entries {
		s := cosineSimilarity(queryVec, e.vector)
		scores = append(scores, scored{idx: i, score: s})
		// Strict comparison keeps the first (earliest inserted) entry on ties.
		if s > bestScore {
			bestIdx, bestScore = i, s
		}
	}

	if log.Debug().Enabled() && topK > 0 {
		sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
		if topK > len(scores) {
			topK = len(scores)
		}
		for rank := 0; rank < topK; rank++ {
			s := scores[rank]
			log.Debug().
				Int("rank", rank+1).
				Str("keyword", entries[s.idx].canned.Keyword).
				Str("intent", entries[s.idx].canned.Intent).
				Float64("score", s.score).
				Msg("Canned match candidate")
		}
	}

	best := entries[bestIdx].canned
	return &best, bestScore
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-magnitude vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
