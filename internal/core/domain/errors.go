package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidQuantity rejects non-positive requested quantities before
	// any mutation happens.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrInvalidName rejects empty or blank item names.
	ErrInvalidName = errors.New("item name must not be blank")

	ErrProjectNotFound = errors.New("project not found")
	ErrItemNotFound    = errors.New("item not found")

	// ErrAlreadyComplete is a conflict: the item's remaining quantity was
	// zero at write time. Never retried automatically.
	ErrAlreadyComplete = errors.New("item already complete")

	// ErrRetryable marks transient write contention. Retrying the whole
	// call is safe because acceptance is recomputed from fresh state.
	ErrRetryable = errors.New("transient write contention")

	// ErrRecipeUnavailable reports that the root item has no indexed
	// recipe. Distinct from a recipe that resolves to zero ingredients.
	ErrRecipeUnavailable = errors.New("no recipe indexed for item")
)

// UnmetDependencyError is a conflict carrying the dependency names that are
// not yet fully collected. The caller must act; retrying verbatim cannot
// succeed until the dependencies complete.
type UnmetDependencyError struct {
	ItemName string
	Unmet    []string
}

func (e *UnmetDependencyError) Error() string {
	return fmt.Sprintf("item %q has unmet dependencies: %s", e.ItemName, strings.Join(e.Unmet, ", "))
}
