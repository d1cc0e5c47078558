// Package recipebook loads the recipe knowledge base from a JSON file and
// serves name-keyed variant lookups. The file is watched and reloaded on
// change, so a running server picks up knowledge base updates without a
// restart.
package recipebook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rl1809/buildcrew/internal/core/domain"
)

// recipeFile is the on-disk document shape.
type recipeFile struct {
	Recipes []domain.RecipeVariant `json:"recipes"`
}

type FileRepository struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	index map[string][]domain.RecipeVariant

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileRepository loads the recipe file and starts watching it for
// changes. Close releases the watcher.
func NewFileRepository(path string, logger *slog.Logger) (*FileRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &FileRepository{
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start recipe watcher: %w", err)
	}
	// Watch the directory: editors and atomic writes replace the file
	// inode, which drops a watch set on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch recipe dir: %w", err)
	}
	r.watcher = watcher
	go r.watchLoop()

	return r, nil
}

// Reload re-reads and re-indexes the recipe file. On failure the previous
// index stays in place.
func (r *FileRepository) Reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read recipe file: %w", err)
	}

	var doc recipeFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse recipe file: %w", err)
	}

	index := make(map[string][]domain.RecipeVariant, len(doc.Recipes))
	for _, v := range doc.Recipes {
		key := domain.NormalizeName(v.ResultName)
		if key == "" {
			continue
		}
		if v.ResultCount < 1 {
			v.ResultCount = 1
		}
		index[key] = append(index[key], v)
	}

	r.mu.Lock()
	r.index = index
	r.mu.Unlock()

	r.logger.Info("recipe book loaded", "path", r.path, "items", len(index))
	return nil
}

// Variants returns the indexed variants for an exact lowercased name.
// Absence is a normal outcome: the item is a raw material.
func (r *FileRepository) Variants(_ context.Context, name string) ([]domain.RecipeVariant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[domain.NormalizeName(name)], nil
}

// Len reports how many distinct items have at least one recipe.
func (r *FileRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

func (r *FileRepository) watchLoop() {
	base := filepath.Base(r.path)
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Warn("recipe book reload failed, keeping previous index", "error", err)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("recipe watcher error", "error", err)
		}
	}
}

func (r *FileRepository) Close() error {
	close(r.done)
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}
