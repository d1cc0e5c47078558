package port

import (
	"context"

	"github.com/rl1809/buildcrew/internal/core/domain"
)

type RecipeRepository interface {
	// Variants returns the indexed recipe variants for an exact,
	// lowercased item name, in a stable order. An empty result means the
	// item is a raw material; it is not an error.
	Variants(ctx context.Context, name string) ([]domain.RecipeVariant, error)
}
