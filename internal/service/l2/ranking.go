package l2_service

import (
	"sort"
)

type symbolScore struct {
	Symbol string
	Score  float64
}

// topNScores ranks the candidates by score and keeps everything scoring at
// least as well as the n-th. ties at the cutoff are all kept, so more than
// n symbols can come back. output is ordered by score, then symbol
func topNScores(scores map[string]float64, candidates []string, n int) []string {
	pairs := []symbolScore{}
	for _, symbol := range candidates {
		if score, ok := scores[symbol]; ok {
			pairs = append(pairs, symbolScore{Symbol: symbol, Score: score})
		}
	}
	if len(pairs) == 0 || n < 1 {
		return []string{}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score == pairs[j].Score {
			return pairs[i].Symbol < pairs[j].Symbol
		}
		return pairs[i].Score > pairs[j].Score
	})

	cutoff := n - 1
	if cutoff >= len(pairs) {
		cutoff = len(pairs) - 1
	}
	threshold := pairs[cutoff].Score

	out := []string{}
	for _, p := range pairs {
		if p.Score >= threshold {
			out = append(out, p.Symbol)
		}
	}
	return out
}

// splitEqually gives each symbol an equal share of total
func splitEqually(into map[string]float64, symbols []string, total float64) {
	if len(symbols) == 0 {
		return
	}
	share := total / float64(len(symbols))
	for _, s := range symbols {
		into[s] += share
	}
}
