package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/buildcrew/internal/adapter/storage"
	"github.com/rl1809/buildcrew/internal/core/domain"
	"github.com/rl1809/buildcrew/internal/core/service"
)

// Hammers a single project item with concurrent contributions and checks
// that the accepted total lands exactly on the required quantity.
func main() {
	required := flag.Int("required", 20, "quantity required for the target item")
	workers := flag.Int("workers", 50, "number of concurrent contributors")
	perWorker := flag.Int("per-worker", 1, "quantity each contributor offers")
	flag.Parse()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := storage.NewMemoryAdapter()
	projects := service.NewProjectService(store, nil, logger)

	snap, err := projects.CreateProject(ctx, service.CreateProjectInput{
		Name:       "loadgen",
		TargetItem: "iron_block",
		Items: []service.ItemSpec{
			{Name: "iron_block", QuantityRequired: *required},
		},
	})
	if err != nil {
		fmt.Printf("create project: %v\n", err)
		return
	}
	projectID := snap.Project.ID

	var accepted atomic.Int64
	var rejected atomic.Int64

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			contributor := fmt.Sprintf("worker-%d", id)
			result, err := projects.Contribute(ctx, projectID, "iron_block", *perWorker, contributor)
			switch {
			case err == nil:
				accepted.Add(int64(result.Accepted))
			case errors.Is(err, domain.ErrAlreadyComplete):
				rejected.Add(1)
			default:
				fmt.Printf("worker %d: unexpected error: %v\n", id, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	log, err := projects.ListContributions(ctx, projectID)
	if err != nil {
		fmt.Printf("list contributions: %v\n", err)
		return
	}
	logged := 0
	for _, c := range log {
		logged += c.Quantity
	}

	final, err := projects.Snapshot(ctx, projectID)
	if err != nil {
		fmt.Printf("snapshot: %v\n", err)
		return
	}
	collected := final.Project.Items[0].QuantityCollected

	fmt.Println("========== LOAD RESULTS ==========")
	fmt.Printf("Required:          %d\n", *required)
	fmt.Printf("Contributors:      %d x %d\n", *workers, *perWorker)
	fmt.Printf("Accepted total:    %d\n", accepted.Load())
	fmt.Printf("Rejected complete: %d\n", rejected.Load())
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Println("==================================")

	if collected == *required {
		fmt.Printf("PASS: collected landed exactly on %d\n", *required)
	} else {
		fmt.Printf("FAIL: collected %d, want %d\n", collected, *required)
	}
	if logged == collected {
		fmt.Println("PASS: contribution log sums to the collected quantity")
	} else {
		fmt.Printf("FAIL: log sums to %d, collected %d\n", logged, collected)
	}
}
