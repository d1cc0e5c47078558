package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/buildcrew/internal/core/domain"
	"github.com/rl1809/buildcrew/internal/core/resolver"
	"github.com/rl1809/buildcrew/internal/metrics"
	"github.com/rl1809/buildcrew/internal/port"
)

// ProjectService coordinates group builds: it seeds projects from recipes,
// serves consistent snapshots, and applies contributions through the
// storage layer's atomic increment.
type ProjectService struct {
	db       port.DatabaseRepository
	resolver *resolver.Service
	logger   *slog.Logger
}

func NewProjectService(db port.DatabaseRepository, res *resolver.Service, logger *slog.Logger) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectService{db: db, resolver: res, logger: logger}
}

// ItemSpec describes one item of a manual plan.
type ItemSpec struct {
	Name             string
	QuantityRequired int
	Dependencies     []string
}

// RecipeSeed asks for the initial plan to be expanded from the recipe
// knowledge base.
type RecipeSeed struct {
	Root          string
	RootQuantity  int
	DepthLimit    int
	MaxNodeBudget int
}

// CreateProjectInput carries either a manual item list or a recipe seed.
type CreateProjectInput struct {
	Name       string
	TargetItem string
	Items      []ItemSpec
	FromRecipe *RecipeSeed
}

// Snapshot is one consistent read of a project: statuses freshly derived,
// progress and bottlenecks computed from the same item list.
type Snapshot struct {
	Project     domain.Project
	Progress    domain.Progress
	Bottlenecks []domain.Bottleneck
}

// ContributionResult reports what a contribute call applied, plus the
// recomputed view the caller renders.
type ContributionResult struct {
	Accepted           int
	RemainderRequested int
	Remaining          int
	Item               domain.Item
	Progress           domain.Progress
	Bottlenecks        []domain.Bottleneck
}

// CreateProject validates the plan, optionally expands it from the recipe
// base, and persists the project with its initial items.
func (s *ProjectService) CreateProject(ctx context.Context, input CreateProjectInput) (*Snapshot, error) {
	name := input.Name
	if domain.NormalizeName(name) == "" {
		return nil, fmt.Errorf("project name: %w", domain.ErrInvalidName)
	}

	var items []domain.Item
	var err error
	switch {
	case input.FromRecipe != nil:
		items, err = s.seedFromRecipe(ctx, *input.FromRecipe)
		if err != nil {
			return nil, err
		}
		if input.TargetItem == "" {
			input.TargetItem = domain.NormalizeName(input.FromRecipe.Root)
		}
	case len(input.Items) > 0:
		items, err = itemsFromSpecs(input.Items)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("project needs items or a recipe seed: %w", domain.ErrInvalidName)
	}

	project := domain.Project{
		ID:         uuid.New().String(),
		Name:       name,
		TargetItem: input.TargetItem,
		Items:      items,
		CreatedAt:  time.Now(),
	}
	if err := s.db.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("persist project: %w", err)
	}

	s.logger.Info("project created",
		"project_id", project.ID,
		"target", project.TargetItem,
		"items", len(project.Items),
	)
	return s.snapshotOf(project), nil
}

// seedFromRecipe expands the root's recipe into a flat plan. Dependency
// edges are derived by grouping entries on the recipe that introduced
// them: every entry is a dependency of its FromRecipeOf item.
func (s *ProjectService) seedFromRecipe(ctx context.Context, seed RecipeSeed) ([]domain.Item, error) {
	if s.resolver == nil {
		return nil, fmt.Errorf("recipe seeding is not configured: %w", domain.ErrRecipeUnavailable)
	}
	rootQuantity := seed.RootQuantity
	if rootQuantity < 1 {
		rootQuantity = 1
	}

	list, err := s.resolver.BuildDependencyList(ctx, seed.Root, seed.DepthLimit, seed.MaxNodeBudget)
	if err != nil {
		return nil, err
	}

	depsOf := make(map[string][]string)
	for _, entry := range list.Entries {
		depsOf[entry.FromRecipeOf] = append(depsOf[entry.FromRecipeOf], entry.Name)
	}

	items := []domain.Item{{
		Name:             list.Root,
		QuantityRequired: rootQuantity,
		Dependencies:     depsOf[list.Root],
	}}
	for _, entry := range list.Entries {
		// A cyclic recipe can route the expansion back to the root;
		// the root item already exists, so appending the entry would
		// break name uniqueness within the project.
		if entry.Name == list.Root {
			continue
		}
		required := entry.QuantityRequired * rootQuantity
		if required < 1 {
			required = 1
		}
		items = append(items, domain.Item{
			Name:             entry.Name,
			QuantityRequired: required,
			Dependencies:     depsOf[entry.Name],
		})
	}
	return items, nil
}

func itemsFromSpecs(specs []ItemSpec) ([]domain.Item, error) {
	seen := make(map[string]struct{}, len(specs))
	items := make([]domain.Item, 0, len(specs))
	for _, spec := range specs {
		key := domain.NormalizeName(spec.Name)
		if key == "" {
			return nil, fmt.Errorf("item name %q: %w", spec.Name, domain.ErrInvalidName)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate item %q: %w", spec.Name, domain.ErrInvalidName)
		}
		if spec.QuantityRequired < 1 {
			return nil, fmt.Errorf("item %q: %w", spec.Name, domain.ErrInvalidQuantity)
		}
		seen[key] = struct{}{}
		items = append(items, domain.Item{
			Name:             spec.Name,
			QuantityRequired: spec.QuantityRequired,
			Dependencies:     spec.Dependencies,
		})
	}
	return items, nil
}

// Snapshot reads the project and derives a fresh consistent view.
func (s *ProjectService) Snapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	project, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.snapshotOf(*project), nil
}

func (s *ProjectService) snapshotOf(project domain.Project) *Snapshot {
	project.Items = domain.ComputeStatuses(project.Items)
	return &Snapshot{
		Project:     project,
		Progress:    domain.ComputeProgress(project.Items),
		Bottlenecks: domain.DetectBottlenecks(project.Items, domain.DefaultBottleneckTopN),
	}
}

// Contribute applies a bounded increment to one item.
//
// Preconditions (validation, dependency gate, pre-read of remaining) run
// against the current item list; the actual acceptance and the completion
// transition are recomputed by the storage layer from the state it reads
// atomically at write time, so racing contributors can never overshoot the
// requirement or double-count.
func (s *ProjectService) Contribute(ctx context.Context, projectID, itemName string, requested int, contributorID string) (*ContributionResult, error) {
	start := time.Now()

	if requested <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if domain.NormalizeName(itemName) == "" {
		return nil, domain.ErrInvalidName
	}

	items, err := s.db.ListItems(ctx, projectID)
	if err != nil {
		return nil, err
	}

	target, ok := domain.FindItem(items, itemName)
	if !ok {
		return nil, domain.ErrItemNotFound
	}

	if unmet := domain.UnmetDependencies(items, *target); len(unmet) > 0 {
		metrics.ContributionConflicts.WithLabelValues("unmet_dependencies").Inc()
		return nil, &domain.UnmetDependencyError{ItemName: target.Name, Unmet: unmet}
	}
	if target.Remaining() <= 0 {
		metrics.ContributionConflicts.WithLabelValues("already_complete").Inc()
		return nil, domain.ErrAlreadyComplete
	}

	outcome, err := s.db.ApplyContribution(ctx, projectID, itemName, requested, contributorID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyComplete) {
			// Someone else finished the item between our read and the write.
			metrics.ContributionConflicts.WithLabelValues("already_complete").Inc()
		}
		return nil, err
	}

	metrics.ContributionsAccepted.Add(float64(outcome.Accepted))
	metrics.ContributeDuration.Observe(time.Since(start).Seconds())

	if outcome.Completed {
		s.logger.Info("item completed",
			"project_id", projectID,
			"item", domain.NormalizeName(itemName),
			"contributor", contributorID,
		)
	}

	// Re-read for the response view; statuses and progress always derive
	// from a post-write read.
	fresh, err := s.db.ListItems(ctx, projectID)
	if err != nil {
		return nil, err
	}
	fresh = domain.ComputeStatuses(fresh)

	result := &ContributionResult{
		Accepted:           outcome.Accepted,
		RemainderRequested: requested - outcome.Accepted,
		Remaining:          outcome.Required - outcome.Collected,
		Progress:           domain.ComputeProgress(fresh),
		Bottlenecks:        domain.DetectBottlenecks(fresh, domain.DefaultBottleneckTopN),
	}
	if item, ok := domain.FindItem(fresh, itemName); ok {
		result.Item = *item
	}
	return result, nil
}

// ReplacePlan swaps the project's items wholesale; collected quantities
// restart at zero.
func (s *ProjectService) ReplacePlan(ctx context.Context, projectID string, specs []ItemSpec) (*Snapshot, error) {
	items, err := itemsFromSpecs(specs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("plan needs at least one item: %w", domain.ErrInvalidName)
	}
	if err := s.db.ReplaceItems(ctx, projectID, items); err != nil {
		return nil, err
	}
	return s.Snapshot(ctx, projectID)
}

// ListContributions returns the project's append-only contribution log.
func (s *ProjectService) ListContributions(ctx context.Context, projectID string) ([]domain.Contribution, error) {
	return s.db.ListContributions(ctx, projectID)
}

// ListEvents returns the project's append-only event log.
func (s *ProjectService) ListEvents(ctx context.Context, projectID string) ([]domain.Event, error) {
	return s.db.ListEvents(ctx, projectID)
}
