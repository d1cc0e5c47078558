package domain

// RecipeIngredient is one (name, quantity) pair of a recipe variant.
type RecipeIngredient struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// RecipeVariant is one way to produce an item. An item may have several
// variants; resolvers always select exactly one deterministically.
type RecipeVariant struct {
	ResultName  string             `json:"result"`
	ResultCount int                `json:"count"`
	Shaped      bool               `json:"shaped"`
	Ingredients []RecipeIngredient `json:"ingredients"`
}

// DependencyEntry is one aggregated row of a flat dependency expansion.
type DependencyEntry struct {
	Name             string `json:"name"`
	QuantityRequired int    `json:"quantity_required"`
	Raw              bool   `json:"raw"`
	FromRecipeOf     string `json:"from_recipe_of"`
}

// DependencyList is the flat, breadth-first expansion of a root item's
// recipe. Truncated is set when the node budget was exhausted mid-walk.
type DependencyList struct {
	Root      string            `json:"root"`
	Entries   []DependencyEntry `json:"entries"`
	Truncated bool              `json:"truncated"`
}

// DependencyNode is one node of a quantity-scaled recipe tree. Nodes are
// owned exclusively by their tree; subtrees are never shared.
type DependencyNode struct {
	Name                     string            `json:"name"`
	QuantityPerParent        int               `json:"quantity_per_parent"`
	ComputedRequiredQuantity int               `json:"computed_required_quantity"`
	IsRaw                    bool              `json:"is_raw"`
	Children                 []*DependencyNode `json:"children,omitempty"`
}
