package retrieval

import (
	"sort"
)

// FusedResult holds a chunk ID and its fused keyword/semantic scores.
type FusedResult struct {
	ChunkID       string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores scales keyword scores to [0,1] by the maximum.
func NormalizeKeywordScores(scores map[string]float64) map[string]float64 {
	normalized := make(map[string]float64, len(scores))
	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	for id, s := range scores {
		if maxScore > 0 {
			normalized[id] = s / maxScore
		} else {
			normalized[id] = 0
		}
	}
	return normalized
}

// Fuse combines keyword and semantic scores of the candidates with the given
// weights. order lists the candidate chunk IDs in semantic rank order; it
// breaks ties and bounds the result, so keyword-only IDs are ignored.
func Fuse(order []string, keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	results := make([]*FusedResult, 0, len(order))
	for _, id := range order {
		r := &FusedResult{
			ChunkID:       id,
			KeywordScore:  keywordScores[id],
			SemanticScore: semanticScores[id],
		}
		r.Score = (keywordWeight * r.KeywordScore) + (semanticWeight * r.SemanticScore)
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
