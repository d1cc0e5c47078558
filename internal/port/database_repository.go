package port

import (
	"context"

	"github.com/rl1809/buildcrew/internal/core/domain"
)

type DatabaseRepository interface {
	// CreateProject persists a project and its initial item list in bulk.
	CreateProject(ctx context.Context, project domain.Project) error

	// GetProject retrieves a project with its ordered items, or
	// domain.ErrProjectNotFound.
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)

	// ListItems retrieves the project's ordered item list.
	ListItems(ctx context.Context, projectID string) ([]domain.Item, error)

	// ReplaceItems swaps the project's item list wholesale. Collected
	// quantities of the new items start at zero.
	ReplaceItems(ctx context.Context, projectID string, items []domain.Item) error

	// ApplyContribution atomically increments an item's collected quantity
	// and appends the contribution and event records. The accepted
	// quantity and the completion transition are recomputed from a fresh
	// read inside the same write, so concurrent callers can never
	// overshoot the requirement or lose updates. Returns
	// domain.ErrAlreadyComplete when the fresh read shows no remainder and
	// domain.ErrRetryable on transient contention.
	ApplyContribution(ctx context.Context, projectID, itemName string, requested int, contributorID string) (*domain.ContributionOutcome, error)

	// ListContributions returns the append-only contribution log, oldest first.
	ListContributions(ctx context.Context, projectID string) ([]domain.Contribution, error)

	// ListEvents returns the append-only event log, oldest first.
	ListEvents(ctx context.Context, projectID string) ([]domain.Event, error)
}
