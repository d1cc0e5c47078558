package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/buildcrew/internal/core/domain"
)

// MySQL error numbers that indicate transient contention the caller may
// safely retry: deadlock victim and lock wait timeout.
const (
	mysqlErrDeadlock    = 1213
	mysqlErrLockTimeout = 1205
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateProject(ctx context.Context, project domain.Project) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, target_item, created_at)
		VALUES (?, ?, ?, ?)`,
		project.ID, project.Name, project.TargetItem, project.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	if err := insertItems(ctx, tx, project.ID, project.Items); err != nil {
		return err
	}

	return tx.Commit()
}

func insertItems(ctx context.Context, tx *sql.Tx, projectID string, items []domain.Item) error {
	for pos, item := range items {
		deps, err := json.Marshal(item.Dependencies)
		if err != nil {
			return fmt.Errorf("marshal dependencies of %q: %w", item.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO project_items
				(project_id, item_key, display_name, quantity_required, quantity_collected, dependencies, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`,
			projectID, domain.NormalizeName(item.Name), item.Name,
			item.QuantityRequired, item.QuantityCollected, deps, pos,
		)
		if err != nil {
			return fmt.Errorf("insert item %q: %w", item.Name, err)
		}
	}
	return nil
}

func (m *MySQLAdapter) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	var p domain.Project
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, target_item, created_at
		FROM projects WHERE id = ?`, projectID,
	).Scan(&p.ID, &p.Name, &p.TargetItem, &p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}

	items, err := m.ListItems(ctx, projectID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

func (m *MySQLAdapter) ListItems(ctx context.Context, projectID string) ([]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT display_name, quantity_required, quantity_collected, dependencies, created_at, updated_at
		FROM project_items WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		var deps []byte
		if err := rows.Scan(&it.Name, &it.QuantityRequired, &it.QuantityCollected, &deps, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if len(deps) > 0 {
			if err := json.Unmarshal(deps, &it.Dependencies); err != nil {
				return nil, fmt.Errorf("unmarshal dependencies of %q: %w", it.Name, err)
			}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	if items == nil {
		// Distinguish an unknown project from a project with no items.
		var exists int
		err := m.db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, projectID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("query project: %w", err)
		}
	}
	return items, nil
}

func (m *MySQLAdapter) ReplaceItems(ctx context.Context, projectID string, items []domain.Item) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ? FOR UPDATE`, projectID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProjectNotFound
	}
	if err != nil {
		return fmt.Errorf("query project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_items WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	if err := insertItems(ctx, tx, projectID, items); err != nil {
		return err
	}

	return tx.Commit()
}

// ApplyContribution is the transactional strategy: the item is re-read
// fresh under a row lock, the accepted quantity and the completion
// transition are recomputed from that read, and the increment plus the log
// appends commit as one unit. The collected quantity can therefore never
// exceed the requirement, and the contribution log always sums to it.
func (m *MySQLAdapter) ApplyContribution(ctx context.Context, projectID, itemName string, requested int, contributorID string) (*domain.ContributionOutcome, error) {
	if requested <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	itemKey := domain.NormalizeName(itemName)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var required, collected int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity_required, quantity_collected
		FROM project_items
		WHERE project_id = ? AND item_key = ?
		FOR UPDATE`, projectID, itemKey,
	).Scan(&required, &collected)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, translateMySQLErr(fmt.Errorf("lock item: %w", err))
	}

	remaining := required - collected
	if remaining <= 0 {
		return nil, domain.ErrAlreadyComplete
	}

	accepted := requested
	if accepted > remaining {
		accepted = remaining
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE project_items
		SET quantity_collected = quantity_collected + ?, updated_at = NOW()
		WHERE project_id = ? AND item_key = ? AND quantity_collected + ? <= quantity_required`,
		accepted, projectID, itemKey, accepted,
	)
	if err != nil {
		return nil, translateMySQLErr(fmt.Errorf("increment item: %w", err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Cannot happen while we hold the row lock; treat as contention.
		return nil, fmt.Errorf("%w: conditional increment rejected", domain.ErrRetryable)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO contributions (id, project_id, item_key, quantity, contributor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), projectID, itemKey, accepted, contributorID, now,
	)
	if err != nil {
		return nil, translateMySQLErr(fmt.Errorf("append contribution: %w", err))
	}

	completed := collected+accepted >= required
	if err := appendEvent(ctx, tx, projectID, itemKey, domain.EventContributed, accepted, contributorID, now); err != nil {
		return nil, err
	}
	if completed {
		if err := appendEvent(ctx, tx, projectID, itemKey, domain.EventCompleted, accepted, contributorID, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, translateMySQLErr(fmt.Errorf("commit contribution: %w", err))
	}

	return &domain.ContributionOutcome{
		Accepted:  accepted,
		Collected: collected + accepted,
		Required:  required,
		Completed: completed,
	}, nil
}

func appendEvent(ctx context.Context, tx *sql.Tx, projectID, itemKey string, typ domain.EventType, quantity int, contributorID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (id, project_id, item_key, event_type, quantity, contributor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), projectID, itemKey, string(typ), quantity, contributorID, at,
	)
	if err != nil {
		return translateMySQLErr(fmt.Errorf("append %s event: %w", typ, err))
	}
	return nil
}

func (m *MySQLAdapter) ListContributions(ctx context.Context, projectID string) ([]domain.Contribution, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, project_id, item_key, quantity, contributor_id, created_at
		FROM contributions WHERE project_id = ? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var out []domain.Contribution
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.ItemName, &c.Quantity, &c.ContributorID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) ListEvents(ctx context.Context, projectID string) ([]domain.Event, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, project_id, item_key, event_type, quantity, contributor_id, created_at
		FROM events WHERE project_id = ? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ItemName, &e.Type, &e.Quantity, &e.ContributorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func translateMySQLErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDeadlock, mysqlErrLockTimeout:
			return fmt.Errorf("%w: %v", domain.ErrRetryable, err)
		}
	}
	return err
}
