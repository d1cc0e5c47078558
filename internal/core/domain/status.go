package domain

// completedNameSet collects the normalized names of items whose collected
// quantity meets their requirement.
func completedNameSet(items []Item) map[string]struct{} {
	done := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.QuantityCollected >= it.QuantityRequired {
			done[NormalizeName(it.Name)] = struct{}{}
		}
	}
	return done
}

// ComputeStatuses derives the status of every item. It is pure: the input
// is never mutated, and equal input always yields equal output.
//
// An item is completed when collected >= required, blocked when any of its
// dependency names is absent from the completed set (dependency names that
// match no item in the project count as permanently unmet), and pending
// otherwise.
func ComputeStatuses(items []Item) []Item {
	done := completedNameSet(items)

	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it
		switch {
		case it.QuantityCollected >= it.QuantityRequired:
			out[i].Status = ItemStatusCompleted
		case hasUnmet(it.Dependencies, done):
			out[i].Status = ItemStatusBlocked
		default:
			out[i].Status = ItemStatusPending
		}
	}
	return out
}

func hasUnmet(deps []string, done map[string]struct{}) bool {
	for _, dep := range deps {
		if _, ok := done[NormalizeName(dep)]; !ok {
			return true
		}
	}
	return false
}

// UnmetDependencies returns the target's dependency names that are not
// fully collected in items, preserving declaration order.
func UnmetDependencies(items []Item, target Item) []string {
	done := completedNameSet(items)

	var unmet []string
	for _, dep := range target.Dependencies {
		if _, ok := done[NormalizeName(dep)]; !ok {
			unmet = append(unmet, NormalizeName(dep))
		}
	}
	return unmet
}
