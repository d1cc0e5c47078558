package resolver

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/buildcrew/internal/core/domain"
)

// stubRecipes is a fixed name-indexed knowledge base that counts lookups.
type stubRecipes struct {
	mu      sync.Mutex
	index   map[string][]domain.RecipeVariant
	lookups int
}

func (s *stubRecipes) Variants(_ context.Context, name string) ([]domain.RecipeVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	return s.index[name], nil
}

// memCache is a minimal unbounded cache for resolver tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache { return &memCache{entries: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[key]
	return payload, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
	return nil
}

func ingredient(name string, qty int) domain.RecipeIngredient {
	return domain.RecipeIngredient{Name: name, Quantity: qty}
}

// pickaxeBook: iron_pickaxe = 3 iron_ingot + 2 stick; iron_ingot = 1
// iron_ore + 1 coal; stick = 2 oak_planks; oak_planks has only a
// decomposition recipe (1 oak_log -> 4 planks).
func pickaxeBook() *stubRecipes {
	return &stubRecipes{index: map[string][]domain.RecipeVariant{
		"iron_pickaxe": {{
			ResultName: "iron_pickaxe", ResultCount: 1, Shaped: true,
			Ingredients: []domain.RecipeIngredient{ingredient("iron_ingot", 3), ingredient("stick", 2)},
		}},
		"iron_ingot": {{
			ResultName: "iron_ingot", ResultCount: 1,
			Ingredients: []domain.RecipeIngredient{ingredient("iron_ore", 1), ingredient("coal", 1)},
		}},
		"stick": {{
			ResultName: "stick", ResultCount: 1,
			Ingredients: []domain.RecipeIngredient{ingredient("oak_planks", 2)},
		}},
		"oak_planks": {{
			ResultName: "oak_planks", ResultCount: 4,
			Ingredients: []domain.RecipeIngredient{ingredient("oak_log", 1)},
		}},
	}}
}

func newTestResolver(recipes *stubRecipes) *Service {
	return New(recipes, newMemCache(), time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func entryByName(t *testing.T, list *domain.DependencyList, name string) domain.DependencyEntry {
	t.Helper()
	for _, e := range list.Entries {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("entry %q not found in %+v", name, list.Entries)
	return domain.DependencyEntry{}
}

func TestBuildDependencyList_UnknownRootIsUnavailable(t *testing.T) {
	svc := newTestResolver(&stubRecipes{index: map[string][]domain.RecipeVariant{}})

	list, err := svc.BuildDependencyList(context.Background(), "unknown_item", 1, 200)

	assert.ErrorIs(t, err, domain.ErrRecipeUnavailable)
	assert.Nil(t, list)
}

func TestBuildDependencyList_ExpandsAndMarksRaw(t *testing.T) {
	svc := newTestResolver(pickaxeBook())

	list, err := svc.BuildDependencyList(context.Background(), "Iron_Pickaxe", 2, 200)
	require.NoError(t, err)

	assert.Equal(t, "iron_pickaxe", list.Root)
	assert.False(t, list.Truncated)

	ingot := entryByName(t, list, "iron_ingot")
	assert.False(t, ingot.Raw)
	assert.Equal(t, 3, ingot.QuantityRequired)
	assert.Equal(t, "iron_pickaxe", ingot.FromRecipeOf)

	// depth 2 with depthLimit 2: indexed recipe but no further expansion
	ore := entryByName(t, list, "iron_ore")
	assert.True(t, ore.Raw)
	assert.Equal(t, "iron_ingot", ore.FromRecipeOf)

	coal := entryByName(t, list, "coal")
	assert.True(t, coal.Raw)
}

func TestBuildDependencyList_AggregatesOccurrencesByName(t *testing.T) {
	recipes := &stubRecipes{index: map[string][]domain.RecipeVariant{
		"cake": {{
			ResultName: "cake", ResultCount: 1,
			Ingredients: []domain.RecipeIngredient{
				ingredient("Wheat", 3),
				ingredient("sugar", 2),
				ingredient("wheat", 1), // same ingredient listed twice
			},
		}},
	}}
	svc := newTestResolver(recipes)

	list, err := svc.BuildDependencyList(context.Background(), "cake", 3, 200)
	require.NoError(t, err)

	assert.Len(t, list.Entries, 2)
	assert.Equal(t, 4, entryByName(t, list, "wheat").QuantityRequired)
	assert.Equal(t, 2, entryByName(t, list, "sugar").QuantityRequired)
}

func TestBuildDependencyList_BudgetTruncatesInsteadOfFailing(t *testing.T) {
	svc := newTestResolver(pickaxeBook())

	list, err := svc.BuildDependencyList(context.Background(), "iron_pickaxe", 5, 2)
	require.NoError(t, err)

	assert.True(t, list.Truncated)
	assert.LessOrEqual(t, len(list.Entries), 2)
}

func TestBuildDependencyList_ZeroIngredientRecipeIsNotUnavailable(t *testing.T) {
	recipes := &stubRecipes{index: map[string][]domain.RecipeVariant{
		"barrier": {{ResultName: "barrier", ResultCount: 1}},
	}}
	svc := newTestResolver(recipes)

	list, err := svc.BuildDependencyList(context.Background(), "barrier", 3, 200)
	require.NoError(t, err)

	assert.Empty(t, list.Entries)
}

func TestBuildDependencyList_PrefersShapedVariant(t *testing.T) {
	recipes := &stubRecipes{index: map[string][]domain.RecipeVariant{
		"chest": {
			{
				ResultName: "chest", ResultCount: 1, Shaped: false,
				Ingredients: []domain.RecipeIngredient{ingredient("bamboo", 16)},
			},
			{
				ResultName: "chest", ResultCount: 1, Shaped: true,
				Ingredients: []domain.RecipeIngredient{ingredient("oak_planks", 8)},
			},
		},
	}}
	svc := newTestResolver(recipes)

	list, err := svc.BuildDependencyList(context.Background(), "chest", 1, 200)
	require.NoError(t, err)

	require.Len(t, list.Entries, 1)
	assert.Equal(t, "oak_planks", list.Entries[0].Name)
}

func TestBuildDependencyList_ServesRepeatCallsFromCache(t *testing.T) {
	recipes := pickaxeBook()
	svc := newTestResolver(recipes)
	ctx := context.Background()

	_, err := svc.BuildDependencyList(ctx, "iron_pickaxe", 2, 200)
	require.NoError(t, err)
	lookupsAfterFirst := recipes.lookups

	again, err := svc.BuildDependencyList(ctx, "iron_pickaxe", 2, 200)
	require.NoError(t, err)

	assert.Equal(t, lookupsAfterFirst, recipes.lookups, "second call hit the knowledge base")
	assert.NotEmpty(t, again.Entries)
}

func TestBuildRecipeTree_ScalesQuantitiesMultiplicatively(t *testing.T) {
	svc := newTestResolver(pickaxeBook())

	tree, err := svc.BuildRecipeTree(context.Background(), "iron_pickaxe", 3, 2)
	require.NoError(t, err)

	assert.Equal(t, "iron_pickaxe", tree.Name)
	assert.Equal(t, 2, tree.ComputedRequiredQuantity)
	require.Len(t, tree.Children, 2)

	ingot := tree.Children[0]
	assert.Equal(t, "iron_ingot", ingot.Name)
	assert.Equal(t, 3, ingot.QuantityPerParent)
	assert.Equal(t, 6, ingot.ComputedRequiredQuantity) // 2 pickaxes x 3 ingots

	require.Len(t, ingot.Children, 2)
	assert.Equal(t, "iron_ore", ingot.Children[0].Name)
	assert.Equal(t, 6, ingot.Children[0].ComputedRequiredQuantity)
	assert.True(t, ingot.Children[0].IsRaw)
}

func TestBuildRecipeTree_FiltersDecompositionRecipes(t *testing.T) {
	// oak_planks only has a count-4 recipe; the filter treats it as raw
	// rather than expanding into oak_log. This is a best-effort heuristic:
	// a genuine multi-output recipe would be treated as raw the same way.
	svc := newTestResolver(pickaxeBook())

	tree, err := svc.BuildRecipeTree(context.Background(), "stick", 3, 1)
	require.NoError(t, err)

	require.Len(t, tree.Children, 1)
	planks := tree.Children[0]
	assert.Equal(t, "oak_planks", planks.Name)
	assert.True(t, planks.IsRaw)
	assert.Empty(t, planks.Children)
}

func TestBuildRecipeTree_RootWithOnlyDecompositionVariantsIsRaw(t *testing.T) {
	svc := newTestResolver(pickaxeBook())

	tree, err := svc.BuildRecipeTree(context.Background(), "oak_planks", 3, 1)
	require.NoError(t, err)

	assert.True(t, tree.IsRaw)
	assert.Empty(t, tree.Children)
}

func TestBuildRecipeTree_CycleTerminatesAsRaw(t *testing.T) {
	recipes := &stubRecipes{index: map[string][]domain.RecipeVariant{
		"a": {{ResultName: "a", ResultCount: 1, Ingredients: []domain.RecipeIngredient{ingredient("b", 1)}}},
		"b": {{ResultName: "b", ResultCount: 1, Ingredients: []domain.RecipeIngredient{ingredient("a", 2)}}},
	}}
	svc := newTestResolver(recipes)

	tree, err := svc.BuildRecipeTree(context.Background(), "a", 10, 1)
	require.NoError(t, err)

	require.Len(t, tree.Children, 1)
	b := tree.Children[0]
	assert.Equal(t, "b", b.Name)
	require.Len(t, b.Children, 1)

	back := b.Children[0]
	assert.Equal(t, "a", back.Name)
	assert.True(t, back.IsRaw, "item recurring on the current path must terminate")
	assert.Empty(t, back.Children)
}

func TestBuildRecipeTree_RepeatedItemExpandsInSiblingBranches(t *testing.T) {
	// Both sword and shovel need a stick subtree; the per-path visited set
	// must not suppress the second branch.
	recipes := &stubRecipes{index: map[string][]domain.RecipeVariant{
		"kit": {{ResultName: "kit", ResultCount: 1, Ingredients: []domain.RecipeIngredient{
			ingredient("sword", 1), ingredient("shovel", 1),
		}}},
		"sword":  {{ResultName: "sword", ResultCount: 1, Ingredients: []domain.RecipeIngredient{ingredient("stick", 1)}}},
		"shovel": {{ResultName: "shovel", ResultCount: 1, Ingredients: []domain.RecipeIngredient{ingredient("stick", 1)}}},
		"stick":  {{ResultName: "stick", ResultCount: 1, Ingredients: []domain.RecipeIngredient{ingredient("bamboo", 2)}}},
	}}
	svc := newTestResolver(recipes)

	tree, err := svc.BuildRecipeTree(context.Background(), "kit", 5, 1)
	require.NoError(t, err)

	for _, tool := range tree.Children {
		require.Len(t, tool.Children, 1, "%s should expand its stick", tool.Name)
		stick := tool.Children[0]
		assert.False(t, stick.IsRaw)
		require.Len(t, stick.Children, 1)
		assert.Equal(t, "bamboo", stick.Children[0].Name)
	}
}

func TestBuildRecipeTree_DepthLimitListsChildrenWithoutExpanding(t *testing.T) {
	svc := newTestResolver(pickaxeBook())

	tree, err := svc.BuildRecipeTree(context.Background(), "iron_pickaxe", 1, 1)
	require.NoError(t, err)

	require.Len(t, tree.Children, 2)

	// stick sits at the depth limit: its immediate child stays visible,
	// but nothing expands past it.
	stick := tree.Children[1]
	require.Equal(t, "stick", stick.Name)
	assert.False(t, stick.IsRaw)
	require.Len(t, stick.Children, 1)

	planks := stick.Children[0]
	assert.Equal(t, "oak_planks", planks.Name)
	assert.Equal(t, 4, planks.ComputedRequiredQuantity) // 2 sticks x 2 planks
	assert.Empty(t, planks.Children)
}

func TestBuildRecipeTree_UnknownRootIsUnavailable(t *testing.T) {
	svc := newTestResolver(&stubRecipes{index: map[string][]domain.RecipeVariant{}})

	tree, err := svc.BuildRecipeTree(context.Background(), "unknown_item", 3, 1)

	assert.ErrorIs(t, err, domain.ErrRecipeUnavailable)
	assert.Nil(t, tree)
}

func TestBuildRecipeTree_RejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestResolver(pickaxeBook())

	_, err := svc.BuildRecipeTree(context.Background(), "iron_pickaxe", 3, 0)

	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}
