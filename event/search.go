package event

import "math"

// RankByCosine scores events against a query embedding and returns the
// top-k whose similarity is >= threshold, ordered by score descending with
// ties broken by CreatedAt descending (§4.3). Adapted from the cosine
// ranking used by the pack's in-memory vector store: a bounded candidate
// set scored and bubble-sorted rather than an ANN index, which is the
// right tradeoff at one user's event-log scale.
func RankByCosine(candidates []*Event, query []float32, k int, threshold float64) []*Event {
	type scored struct {
		ev    *Event
		score float64
	}

	scores := make([]scored, 0, len(candidates))
	for _, ev := range candidates {
		if len(ev.Embedding) == 0 {
			continue
		}
		s := cosineSimilarity32(query, ev.Embedding)
		if s >= threshold {
			scores = append(scores, scored{ev: ev, score: s})
		}
	}

	for i := range scores {
		for j := i + 1; j < len(scores); j++ {
			swap := scores[j].score > scores[i].score
			if scores[j].score == scores[i].score {
				swap = scores[j].ev.CreatedAt.After(scores[i].ev.CreatedAt)
			}
			if swap {
				scores[i], scores[j] = scores[j], scores[i]
			}
		}
	}

	if k > len(scores) {
		k = len(scores)
	}
	if k < 0 {
		k = 0
	}

	out := make([]*Event, k)
	for i := 0; i < k; i++ {
		out[i] = scores[i].ev
	}
	return out
}

func cosineSimilarity32(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
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
