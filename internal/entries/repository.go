package entries

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// Repository persists committed entries.
type Repository interface {
	List(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	// Create appends a fully stamped entry and returns the new total.
	Create(ctx context.Context, entry Entry) (int, error)
	// Update applies fn to the stored entry under the repository lock.
	Update(ctx context.Context, id string, fn func(Entry) (Entry, error)) (Entry, error)
	// Delete removes the entry and returns the remaining total.
	Delete(ctx context.Context, id string) (int, error)
}

// FileRepository keeps all entries in a single JSON array file.
type FileRepository struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileRepository constructs a repository over path on fs.
func NewFileRepository(fs afero.Fs, path string, logger *slog.Logger) *FileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRepository{fs: fs, path: path, logger: logger}
}

// List returns entries in file order.
func (r *FileRepository) List(ctx context.Context) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(), nil
}

// Get returns the entry with the given id.
func (r *FileRepository) Get(ctx context.Context, id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.load() {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

func (r *FileRepository) Create(ctx context.Context, entry Entry) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.load(), entry)
	if err := r.save(list); err != nil {
		return 0, err
	}
	return len(list), nil
}

func (r *FileRepository) Update(ctx context.Context, id string, fn func(Entry) (Entry, error)) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.load()
	for i, e := range list {
		if e.ID != id {
			continue
		}
		updated, err := fn(e)
		if err != nil {
			return Entry{}, err
		}
		list[i] = updated
		if err := r.save(list); err != nil {
			return Entry{}, err
		}
		return updated, nil
	}
	return Entry{}, ErrNotFound
}

func (r *FileRepository) Delete(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.load()
	kept := list[:0]
	for _, e := range list {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(list) {
		return len(list), ErrNotFound
	}
	if err := r.save(kept); err != nil {
		return 0, err
	}
	return len(kept), nil
}

// load never fails: a missing or empty file is an empty journal, and a
// corrupt file is moved aside so the next save does not overwrite it.
func (r *FileRepository) load() []Entry {
	data, err := afero.ReadFile(r.fs, r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}
	}
	if err != nil {
		r.logger.Error("read entries file", slog.String("path", r.path), slog.Any("error", err))
		return []Entry{}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Entry{}
	}
	var list []Entry
	if err := json.Unmarshal(data, &list); err != nil {
		backup := r.path + ".corrupt"
		if renameErr := r.fs.Rename(r.path, backup); renameErr != nil {
			r.logger.Warn("back up corrupt entries file", slog.Any("error", renameErr))
		}
		r.logger.Warn("entries file is corrupt, starting empty", slog.String("backup", backup), slog.Any("error", err))
		return []Entry{}
	}
	if list == nil {
		list = []Entry{}
	}
	return list
}

func (r *FileRepository) save(list []Entry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		return fmt.Errorf("entries: encode: %w: %w", ErrStorage, err)
	}
	return writeAtomic(r.fs, r.path, buf.Bytes())
}

// writeAtomic replaces path with data through a temp file and rename.
func writeAtomic(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("entries: create data dir: %w: %w", ErrStorage, err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("entries: write temp file: %w: %w", ErrStorage, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("entries: replace data file: %w: %w", ErrStorage, err)
	}
	return nil
}
