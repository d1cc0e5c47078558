package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/buildcrew/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/buildcrew?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return db
}

func createTestProject(t *testing.T, adapter *MySQLAdapter, items ...domain.Item) string {
	t.Helper()
	project := domain.Project{
		ID:        "test-" + uuid.New().String(),
		Name:      "adapter test project",
		Items:     items,
		CreatedAt: time.Now(),
	}
	if err := adapter.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		adapter.db.ExecContext(ctx, `DELETE FROM contributions WHERE project_id = ?`, project.ID)
		adapter.db.ExecContext(ctx, `DELETE FROM events WHERE project_id = ?`, project.ID)
		adapter.db.ExecContext(ctx, `DELETE FROM project_items WHERE project_id = ?`, project.ID)
		adapter.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, project.ID)
	})
	return project.ID
}

func TestMySQLApplyContribution_Success(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	projectID := createTestProject(t, adapter,
		domain.Item{Name: "iron_ingot", QuantityRequired: 3},
	)

	outcome, err := adapter.ApplyContribution(context.Background(), projectID, "Iron_Ingot", 1, "steve")
	if err != nil {
		t.Fatalf("ApplyContribution failed: %v", err)
	}

	if outcome.Accepted != 1 {
		t.Errorf("expected accepted 1, got %d", outcome.Accepted)
	}
	if outcome.Collected != 1 {
		t.Errorf("expected collected 1, got %d", outcome.Collected)
	}
	if outcome.Completed {
		t.Error("expected no completion transition")
	}
}

func TestMySQLApplyContribution_CapsAndCompletes(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	projectID := createTestProject(t, adapter,
		domain.Item{Name: "glass", QuantityRequired: 4, QuantityCollected: 0},
	)
	ctx := context.Background()

	if _, err := adapter.ApplyContribution(ctx, projectID, "glass", 3, "alex"); err != nil {
		t.Fatalf("first contribution failed: %v", err)
	}

	outcome, err := adapter.ApplyContribution(ctx, projectID, "glass", 5, "steve")
	if err != nil {
		t.Fatalf("second contribution failed: %v", err)
	}
	if outcome.Accepted != 1 {
		t.Errorf("expected accepted capped at 1, got %d", outcome.Accepted)
	}
	if !outcome.Completed {
		t.Error("expected completion transition")
	}

	// A third attempt conflicts.
	if _, err := adapter.ApplyContribution(ctx, projectID, "glass", 1, "alex"); !errors.Is(err, domain.ErrAlreadyComplete) {
		t.Errorf("expected ErrAlreadyComplete, got: %v", err)
	}
}

func TestMySQLApplyContribution_UnknownItem(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	projectID := createTestProject(t, adapter,
		domain.Item{Name: "glass", QuantityRequired: 4},
	)

	_, err := adapter.ApplyContribution(context.Background(), projectID, "dirt", 1, "steve")
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got: %v", err)
	}
}

func TestMySQLApplyContribution_ConcurrentNeverOvershoots(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	projectID := createTestProject(t, adapter,
		domain.Item{Name: "iron_ingot", QuantityRequired: 3},
	)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := adapter.ApplyContribution(ctx, projectID, "iron_ingot", 1, "crew")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var accepted, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrAlreadyComplete):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if accepted != 3 || conflicted != 7 {
		t.Errorf("expected 3 accepted / 7 conflicted, got %d / %d", accepted, conflicted)
	}

	items, err := adapter.ListItems(ctx, projectID)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if items[0].QuantityCollected != 3 {
		t.Errorf("expected collected 3, got %d", items[0].QuantityCollected)
	}

	log, err := adapter.ListContributions(ctx, projectID)
	if err != nil {
		t.Fatalf("ListContributions failed: %v", err)
	}
	sum := 0
	for _, c := range log {
		sum += c.Quantity
	}
	if sum != 3 || len(log) != 3 {
		t.Errorf("expected 3 records summing to 3, got %d records summing to %d", len(log), sum)
	}
}

func TestMySQLListItems_UnknownProject(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)

	_, err := adapter.ListItems(context.Background(), "no-such-project")
	if !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got: %v", err)
	}
}

func TestMySQLReplaceItems(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	projectID := createTestProject(t, adapter,
		domain.Item{Name: "glass", QuantityRequired: 4, QuantityCollected: 4},
	)
	ctx := context.Background()

	err := adapter.ReplaceItems(ctx, projectID, []domain.Item{
		{Name: "glass", QuantityRequired: 8},
		{Name: "sand", QuantityRequired: 16, Dependencies: []string{"glass"}},
	})
	if err != nil {
		t.Fatalf("ReplaceItems failed: %v", err)
	}

	items, err := adapter.ListItems(ctx, projectID)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].QuantityCollected != 0 {
		t.Errorf("expected collected reset to 0, got %d", items[0].QuantityCollected)
	}
	if len(items[1].Dependencies) != 1 || items[1].Dependencies[0] != "glass" {
		t.Errorf("dependencies not round-tripped: %+v", items[1].Dependencies)
	}
}
