// Package resolver expands an external recipe knowledge base into flat
// dependency lists and quantity-scaled recipe trees. All expansion work is
// bounded: the flat walk by a node budget, the tree by a depth limit with
// per-path cycle protection.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/buildcrew/internal/core/domain"
	"github.com/rl1809/buildcrew/internal/metrics"
	"github.com/rl1809/buildcrew/internal/port"
)

const (
	DefaultDepthLimit    = 3
	DefaultMaxNodeBudget = 200
)

type Service struct {
	recipes    port.RecipeRepository
	cache      port.CacheRepository
	cacheTTL   time.Duration
	logger     *slog.Logger
	depthLimit int
	nodeBudget int
}

// New builds a resolver. cache may be nil to disable result caching.
func New(recipes port.RecipeRepository, cache port.CacheRepository, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		recipes:    recipes,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
		depthLimit: DefaultDepthLimit,
		nodeBudget: DefaultMaxNodeBudget,
	}
}

// SetLimits overrides the fallback depth and node budget used when a
// caller passes zero. Values below 1 are ignored.
func (s *Service) SetLimits(depthLimit, maxNodeBudget int) {
	if depthLimit > 0 {
		s.depthLimit = depthLimit
	}
	if maxNodeBudget > 0 {
		s.nodeBudget = maxNodeBudget
	}
}

// queued is one pending occurrence of an ingredient during the flat walk.
type queued struct {
	name     string
	quantity int
	from     string
	depth    int
}

// BuildDependencyList expands the root item's recipe breadth-first into a
// flat list. Occurrences of the same ingredient aggregate by normalized
// name with quantities summed. An ingredient expands further only when it
// has an indexed recipe and its depth is below depthLimit; the walk stops,
// flagged truncated, once maxNodeBudget occurrences have been visited.
// A root without any indexed recipe returns domain.ErrRecipeUnavailable.
func (s *Service) BuildDependencyList(ctx context.Context, rootItem string, depthLimit, maxNodeBudget int) (*domain.DependencyList, error) {
	root := domain.NormalizeName(rootItem)
	if root == "" {
		return nil, domain.ErrInvalidName
	}
	if depthLimit <= 0 {
		depthLimit = s.depthLimit
	}
	if maxNodeBudget <= 0 {
		maxNodeBudget = s.nodeBudget
	}

	cacheKey := fmt.Sprintf("deps:%s:%d:%d", root, depthLimit, maxNodeBudget)
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		var list domain.DependencyList
		if err := json.Unmarshal(cached, &list); err == nil {
			return &list, nil
		}
	}

	rootVariants, err := s.recipes.Variants(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("lookup recipe for %q: %w", root, err)
	}
	if len(rootVariants) == 0 {
		return nil, domain.ErrRecipeUnavailable
	}

	list := &domain.DependencyList{Root: root}
	index := make(map[string]int) // normalized name -> position in Entries

	rootVariant := selectVariant(rootVariants)
	queue := make([]queued, 0, len(rootVariant.Ingredients))
	for _, ing := range rootVariant.Ingredients {
		queue = append(queue, queued{name: domain.NormalizeName(ing.Name), quantity: ing.Quantity, from: root, depth: 1})
	}

	visited := 0
	for len(queue) > 0 {
		if visited >= maxNodeBudget {
			list.Truncated = true
			break
		}
		cur := queue[0]
		queue = queue[1:]
		visited++

		if pos, seen := index[cur.name]; seen {
			list.Entries[pos].QuantityRequired += cur.quantity
			continue
		}

		variants, err := s.recipes.Variants(ctx, cur.name)
		if err != nil {
			return nil, fmt.Errorf("lookup recipe for %q: %w", cur.name, err)
		}

		raw := len(variants) == 0 || cur.depth >= depthLimit
		index[cur.name] = len(list.Entries)
		list.Entries = append(list.Entries, domain.DependencyEntry{
			Name:             cur.name,
			QuantityRequired: cur.quantity,
			Raw:              raw,
			FromRecipeOf:     cur.from,
		})

		if raw {
			continue
		}
		for _, ing := range selectVariant(variants).Ingredients {
			queue = append(queue, queued{name: domain.NormalizeName(ing.Name), quantity: ing.Quantity, from: cur.name, depth: cur.depth + 1})
		}
	}

	s.cachePut(ctx, cacheKey, list)
	return list, nil
}

// BuildRecipeTree expands the root item's recipe depth-first into a nested
// tree whose quantities scale multiplicatively from rootQuantity. Variant
// selection filters out decomposition recipes (declared output count above
// one); an item whose variants are all filtered out is treated as raw. An
// item recurring along the current root-to-node path terminates as raw but
// may still expand in sibling branches. Nodes at depthLimit list their
// immediate children without expanding past them.
func (s *Service) BuildRecipeTree(ctx context.Context, rootItem string, depthLimit, rootQuantity int) (*domain.DependencyNode, error) {
	root := domain.NormalizeName(rootItem)
	if root == "" {
		return nil, domain.ErrInvalidName
	}
	if rootQuantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	if depthLimit <= 0 {
		depthLimit = s.depthLimit
	}

	cacheKey := fmt.Sprintf("tree:%s:%d:q%d", root, depthLimit, rootQuantity)
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		var node domain.DependencyNode
		if err := json.Unmarshal(cached, &node); err == nil {
			return &node, nil
		}
	}

	rootVariants, err := s.recipes.Variants(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("lookup recipe for %q: %w", root, err)
	}
	if len(rootVariants) == 0 {
		return nil, domain.ErrRecipeUnavailable
	}

	path := make(map[string]struct{})
	node, err := s.expand(ctx, root, rootQuantity, 1, 0, depthLimit, path)
	if err != nil {
		return nil, err
	}

	s.cachePut(ctx, cacheKey, node)
	return node, nil
}

// expand builds the subtree for one item. perParent is the quantity one
// parent craft needs; parentComputed is the parent's computed requirement,
// so computed = parentComputed * perParent. path holds the names along the
// current root-to-node walk and is cleared again on backtracking.
func (s *Service) expand(ctx context.Context, name string, perParent, parentComputed, depth, depthLimit int, path map[string]struct{}) (*domain.DependencyNode, error) {
	node := &domain.DependencyNode{
		Name:                     name,
		QuantityPerParent:        perParent,
		ComputedRequiredQuantity: parentComputed * perParent,
	}

	if _, onPath := path[name]; onPath {
		// Recipe cycle along the current path. Defused, not rejected.
		node.IsRaw = true
		return node, nil
	}

	variants, err := s.craftableVariants(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		node.IsRaw = true
		return node, nil
	}

	variant := selectVariant(variants)
	path[name] = struct{}{}
	defer delete(path, name)

	for _, ing := range variant.Ingredients {
		child := domain.NormalizeName(ing.Name)
		if depth >= depthLimit {
			// Leaf for visibility only; not expanded further.
			childVariants, err := s.craftableVariants(ctx, child)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, &domain.DependencyNode{
				Name:                     child,
				QuantityPerParent:        ing.Quantity,
				ComputedRequiredQuantity: node.ComputedRequiredQuantity * ing.Quantity,
				IsRaw:                    len(childVariants) == 0,
			})
			continue
		}
		sub, err := s.expand(ctx, child, ing.Quantity, node.ComputedRequiredQuantity, depth+1, depthLimit, path)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, sub)
	}
	return node, nil
}

// craftableVariants filters out decomposition recipes: a declared output
// count above one means unpacking a container into units, not building the
// unit. Best-effort heuristic; a genuine multi-output recipe is dropped too.
func (s *Service) craftableVariants(ctx context.Context, name string) ([]domain.RecipeVariant, error) {
	variants, err := s.recipes.Variants(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lookup recipe for %q: %w", name, err)
	}
	crafting := variants[:0:0]
	for _, v := range variants {
		if v.ResultCount <= 1 {
			crafting = append(crafting, v)
		}
	}
	return crafting, nil
}

// selectVariant picks one variant deterministically: the first shaped
// variant if any, otherwise the first listed. Must only be called with a
// non-empty slice.
func selectVariant(variants []domain.RecipeVariant) domain.RecipeVariant {
	for _, v := range variants {
		if v.Shaped {
			return v
		}
	}
	return variants[0]
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		// Stale or unavailable cache only costs a recompute.
		s.logger.Warn("resolver cache read failed", "key", key, "error", err)
		return nil, false
	}
	if ok {
		metrics.ResolverCacheHits.Inc()
		return payload, true
	}
	metrics.ResolverCacheMisses.Inc()
	return nil, false
}

func (s *Service) cachePut(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		s.logger.Warn("resolver cache write failed", "key", key, "error", err)
	}
}
