package domain

import (
	"math"
	"sort"
)

// Progress aggregates completion over a whole item list. Collected counts
// are capped per item at the required quantity, so a transient overshoot
// can never push Percent past 100.
type Progress struct {
	TotalRequired  int     `json:"total_required"`
	TotalCollected int     `json:"total_collected"`
	Percent        float64 `json:"percent"`
}

// ComputeProgress sums requirements and capped collections. Percent is
// rounded to one decimal place and zero when nothing is required.
func ComputeProgress(items []Item) Progress {
	var p Progress
	for _, it := range items {
		p.TotalRequired += it.QuantityRequired
		collected := it.QuantityCollected
		if collected > it.QuantityRequired {
			collected = it.QuantityRequired
		}
		p.TotalCollected += collected
	}
	if p.TotalRequired == 0 {
		return p
	}
	p.Percent = math.Round(float64(p.TotalCollected)/float64(p.TotalRequired)*1000) / 10
	return p
}

// Bottleneck is an incomplete item ranked by how many other incomplete
// items it blocks.
type Bottleneck struct {
	Name          string `json:"name"`
	BlockingCount int    `json:"blocking_count"`
	Remaining     int    `json:"remaining"`
}

// DefaultBottleneckTopN caps bottleneck rankings when the caller does not
// ask for a specific count.
const DefaultBottleneckTopN = 3

// DetectBottlenecks ranks incomplete items by the number of other
// incomplete items listing them as a dependency, tie-broken by remaining
// quantity descending, then name for determinism. Completed items are
// never candidates and completed dependents block on nothing.
func DetectBottlenecks(items []Item, topN int) []Bottleneck {
	if topN <= 0 {
		topN = DefaultBottleneckTopN
	}

	counts := make(map[string]int)
	for _, it := range items {
		if it.QuantityCollected >= it.QuantityRequired {
			continue
		}
		self := NormalizeName(it.Name)
		for _, dep := range it.Dependencies {
			key := NormalizeName(dep)
			if key == self {
				continue
			}
			counts[key]++
		}
	}

	var ranked []Bottleneck
	for _, it := range items {
		if it.QuantityCollected >= it.QuantityRequired {
			continue
		}
		key := NormalizeName(it.Name)
		ranked = append(ranked, Bottleneck{
			Name:          it.Name,
			BlockingCount: counts[key],
			Remaining:     it.Remaining(),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].BlockingCount != ranked[j].BlockingCount {
			return ranked[i].BlockingCount > ranked[j].BlockingCount
		}
		if ranked[i].Remaining != ranked[j].Remaining {
			return ranked[i].Remaining > ranked[j].Remaining
		}
		return NormalizeName(ranked[i].Name) < NormalizeName(ranked[j].Name)
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
