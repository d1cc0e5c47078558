package domain

import (
	"strings"
	"time"
)

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusBlocked   ItemStatus = "blocked"
	ItemStatusCompleted ItemStatus = "completed"
)

// Item is one named node of a project's build graph. Status is derived by
// ComputeStatuses on every read, never stored as independent truth.
type Item struct {
	Name              string
	QuantityRequired  int
	QuantityCollected int
	Dependencies      []string
	Status            ItemStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Remaining returns the uncollected quantity, floored at zero.
func (i Item) Remaining() int {
	r := i.QuantityRequired - i.QuantityCollected
	if r < 0 {
		return 0
	}
	return r
}

// NormalizeName is the single name normalization used across the module:
// item keys, dependency references and recipe lookups are all compared
// lowercased and trimmed.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Project owns an ordered item collection forming a (possibly cyclic)
// dependency graph.
type Project struct {
	ID         string
	Name       string
	TargetItem string
	Items      []Item
	CreatedAt  time.Time
}

// FindItem resolves an item case-insensitively.
func (p *Project) FindItem(name string) (*Item, bool) {
	return FindItem(p.Items, name)
}

// FindItem resolves an item in a list case-insensitively. The returned
// pointer aliases the slice element.
func FindItem(items []Item, name string) (*Item, bool) {
	key := NormalizeName(name)
	for idx := range items {
		if NormalizeName(items[idx].Name) == key {
			return &items[idx], true
		}
	}
	return nil, false
}
