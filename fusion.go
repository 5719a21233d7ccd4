package fusego

import (
	"sort"

	"github.com/hupe1980/fusego/model"
)

// FusionMethod selects how vector and keyword rankings are combined.
type FusionMethod string

const (
	// FusionRRF combines rankings with reciprocal rank fusion. Robust to
	// differing score scales because only ranks matter.
	FusionRRF FusionMethod = "rrf"

	// FusionLinear combines normalized scores as a weighted sum. Keyword
	// scores are normalized by the maximum in the current candidate
	// batch, so linear scores are not comparable across queries.
	FusionLinear FusionMethod = "linear"

	// FusionMax takes the larger of the two normalized scores per id.
	FusionMax FusionMethod = "max"
)

// scoredList is one source's ranked candidates, best first.
type scoredList []model.SearchResult

// normalizeKeywordScores rescales keyword scores into 0..1 by dividing by
// the batch maximum. Vector similarities are already bounded.
func normalizeKeywordScores(results scoredList) {
	var max float32
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}

	if max <= 0 {
		return
	}

	for i := range results {
		results[i].Score /= max
		results[i].KeywordScore = results[i].Score
	}
}

type fuseParams struct {
	vectorWeight  float32
	keywordWeight float32
	rrfK          int
}

// fuse merges the two ranked lists into one, scored per method. Either
// list may be empty. The output is sorted descending by score with id as
// tiebreak.
func fuse(method FusionMethod, vector, keyword scoredList, p fuseParams) ([]model.SearchResult, error) {
	var merged map[string]*model.SearchResult

	switch method {
	case FusionRRF:
		merged = fuseRRF(vector, keyword, p)
	case FusionLinear:
		merged = fuseLinear(vector, keyword, p)
	case FusionMax:
		merged = fuseMax(vector, keyword)
	default:
		return nil, &ErrUnknownFusionMethod{Method: method}
	}

	results := make([]model.SearchResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}

		return results[i].ID < results[j].ID
	})

	return results, nil
}

// fuseRRF scores an item at 1-based rank r from a source with weight w as
// w/(rrfK+r), summed across sources, then rescales so the top score is
// exactly 1.
func fuseRRF(vector, keyword scoredList, p fuseParams) map[string]*model.SearchResult {
	merged := make(map[string]*model.SearchResult, len(vector)+len(keyword))

	contribute := func(results scoredList, weight float32, source model.Source) {
		for rank, r := range results {
			score := weight / float32(p.rrfK+rank+1)

			m, ok := merged[r.ID]
			if !ok {
				copied := r
				copied.Source = source
				copied.Score = score
				merged[r.ID] = &copied

				continue
			}

			m.Score += score
			mergeSourceScores(m, &r, source)
		}
	}

	contribute(vector, p.vectorWeight, model.SourceVector)
	contribute(keyword, p.keywordWeight, model.SourceKeyword)

	var max float32
	for _, m := range merged {
		if m.Score > max {
			max = m.Score
		}
	}

	if max > 0 {
		for _, m := range merged {
			m.Score /= max
		}
	}

	return merged
}

// fuseLinear combines per-source normalized scores as
// vectorWeight*vScore + keywordWeight*kScore over the union of ids, with
// a missing source contributing 0.
func fuseLinear(vector, keyword scoredList, p fuseParams) map[string]*model.SearchResult {
	merged := make(map[string]*model.SearchResult, len(vector)+len(keyword))

	for _, r := range vector {
		copied := r
		copied.Source = model.SourceVector
		copied.Score = p.vectorWeight * r.VectorScore
		merged[r.ID] = &copied
	}

	for _, r := range keyword {
		m, ok := merged[r.ID]
		if !ok {
			copied := r
			copied.Source = model.SourceKeyword
			copied.Score = p.keywordWeight * r.KeywordScore
			merged[r.ID] = &copied

			continue
		}

		m.Score += p.keywordWeight * r.KeywordScore
		mergeSourceScores(m, &r, model.SourceKeyword)
	}

	return merged
}

// fuseMax takes the larger of the two normalized scores per id.
func fuseMax(vector, keyword scoredList) map[string]*model.SearchResult {
	merged := make(map[string]*model.SearchResult, len(vector)+len(keyword))

	for _, r := range vector {
		copied := r
		copied.Source = model.SourceVector
		copied.Score = r.VectorScore
		merged[r.ID] = &copied
	}

	for _, r := range keyword {
		m, ok := merged[r.ID]
		if !ok {
			copied := r
			copied.Source = model.SourceKeyword
			copied.Score = r.KeywordScore
			merged[r.ID] = &copied

			continue
		}

		if r.KeywordScore > m.Score {
			m.Score = r.KeywordScore
		}

		mergeSourceScores(m, &r, model.SourceKeyword)
	}

	return merged
}

// mergeSourceScores folds the per-source scores of other into m and
// upgrades the source attribution to both when sources differ.
func mergeSourceScores(m, other *model.SearchResult, source model.Source) {
	if source == model.SourceVector {
		m.VectorScore = other.VectorScore
	} else {
		m.KeywordScore = other.KeywordScore
	}

	if m.Source != source {
		m.Source = model.SourceBoth
	}

	if m.Metadata == nil {
		m.Metadata = other.Metadata
	}
}
