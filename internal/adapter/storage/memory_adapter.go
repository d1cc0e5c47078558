package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/buildcrew/internal/core/domain"
)

// MemoryAdapter is an in-process DatabaseRepository with the same
// contribution semantics as the MySQL adapter: acceptance and the
// completion transition are recomputed under the store lock, so concurrent
// contributors never overshoot and the log always sums to the collected
// quantity. Used by tests and by server runs without a configured DSN.
type MemoryAdapter struct {
	mu       sync.Mutex
	projects map[string]*memoryProject
	now      func() time.Time
}

type memoryProject struct {
	project       domain.Project
	contributions []domain.Contribution
	events        []domain.Event
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		projects: make(map[string]*memoryProject),
		now:      time.Now,
	}
}

func (m *MemoryAdapter) CreateProject(_ context.Context, project domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	project.Items = cloneItems(project.Items)
	m.projects[project.ID] = &memoryProject{project: project}
	return nil
}

func (m *MemoryAdapter) GetProject(_ context.Context, projectID string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.projects[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	p := stored.project
	p.Items = cloneItems(p.Items)
	return &p, nil
}

func (m *MemoryAdapter) ListItems(_ context.Context, projectID string) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.projects[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return cloneItems(stored.project.Items), nil
}

func (m *MemoryAdapter) ReplaceItems(_ context.Context, projectID string, items []domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.projects[projectID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	stored.project.Items = cloneItems(items)
	return nil
}

func (m *MemoryAdapter) ApplyContribution(_ context.Context, projectID, itemName string, requested int, contributorID string) (*domain.ContributionOutcome, error) {
	if requested <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.projects[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	item, ok := domain.FindItem(stored.project.Items, itemName)
	if !ok {
		return nil, domain.ErrItemNotFound
	}

	remaining := item.QuantityRequired - item.QuantityCollected
	if remaining <= 0 {
		return nil, domain.ErrAlreadyComplete
	}

	accepted := requested
	if accepted > remaining {
		accepted = remaining
	}

	now := m.now()
	item.QuantityCollected += accepted
	item.UpdatedAt = now
	itemKey := domain.NormalizeName(item.Name)

	stored.contributions = append(stored.contributions, domain.Contribution{
		ID:            uuid.New().String(),
		ProjectID:     projectID,
		ItemName:      itemKey,
		Quantity:      accepted,
		ContributorID: contributorID,
		CreatedAt:     now,
	})
	stored.events = append(stored.events, domain.Event{
		ID:            uuid.New().String(),
		ProjectID:     projectID,
		ItemName:      itemKey,
		Type:          domain.EventContributed,
		Quantity:      accepted,
		ContributorID: contributorID,
		CreatedAt:     now,
	})

	completed := item.QuantityCollected >= item.QuantityRequired
	if completed {
		stored.events = append(stored.events, domain.Event{
			ID:            uuid.New().String(),
			ProjectID:     projectID,
			ItemName:      itemKey,
			Type:          domain.EventCompleted,
			Quantity:      accepted,
			ContributorID: contributorID,
			CreatedAt:     now,
		})
	}

	return &domain.ContributionOutcome{
		Accepted:  accepted,
		Collected: item.QuantityCollected,
		Required:  item.QuantityRequired,
		Completed: completed,
	}, nil
}

func (m *MemoryAdapter) ListContributions(_ context.Context, projectID string) ([]domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.projects[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	out := make([]domain.Contribution, len(stored.contributions))
	copy(out, stored.contributions)
	return out, nil
}

func (m *MemoryAdapter) ListEvents(_ context.Context, projectID string) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.projects[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	out := make([]domain.Event, len(stored.events))
	copy(out, stored.events)
	return out, nil
}

func cloneItems(items []domain.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	copy(out, items)
	for i := range out {
		out[i].Dependencies = append([]string(nil), out[i].Dependencies...)
	}
	return out
}
