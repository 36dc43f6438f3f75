package vectorstore

import (
	"math"
	"sort"

	"saascribe-platform/internal/rag"
)

// CosineSimilarity returns a value in [-1, 1]; mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
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

// topK keeps the k best hits, highest score first, ties broken by chunk order.
func topK(hits []rag.ScoredChunk, k int) []rag.ScoredChunk {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Index < hits[j].Index
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
