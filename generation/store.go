package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/csakilan/FoundryBackend/errors"
)

const (
	filePrefix = "CF_"
	fileSuffix = ".json"
)

// Store persists Records as one JSON file per deployment under a
// single directory. One mutex serializes all mutation; the process
// owns the directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the directory if needed and returns a store rooted
// there.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("store directory cannot be empty"),
			"generation", "NewStore", "validate directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "generation", "NewStore", "create store directory")
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes under.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, filePrefix+id+fileSuffix)
}

// Create persists a new record. The record's version and timestamps
// are initialized here; an existing record with the same ID is an
// error.
func (s *Store) Create(_ context.Context, record *Record) error {
	if record == nil {
		return errors.WrapInvalid(fmt.Errorf("record cannot be nil"),
			"generation", "Create", "validate record")
	}

	record.Version = 1
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(record.ID)); err == nil {
		return errors.WrapInvalid(errors.ErrRecordExists, "generation", "Create",
			fmt.Sprintf("record %s", record.ID))
	}

	return s.write(record, "Create")
}

// Get retrieves a record by ID
func (s *Store) Get(_ context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("record ID cannot be empty"),
			"generation", "Get", "validate ID")
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapInvalid(errors.ErrRecordNotFound, "generation", "Get",
				fmt.Sprintf("record %s", id))
		}
		return nil, errors.WrapTransient(err, "generation", "Get", "read record file")
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.WrapFatal(err, "generation", "Get", "unmarshal record")
	}

	return &record, nil
}

// Update replaces an existing record with optimistic concurrency
// control: the caller's version must match the stored one.
func (s *Store) Update(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.WrapInvalid(fmt.Errorf("record cannot be nil"),
			"generation", "Update", "validate record")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, record.ID)
	if err != nil {
		return err
	}

	if current.Version != record.Version {
		return errors.WrapInvalid(
			fmt.Errorf("version mismatch: expected %d, got %d", current.Version, record.Version),
			"generation", "Update", "conflict: record was modified concurrently")
	}

	record.Version++
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = time.Now().UTC()

	return s.write(record, "Update")
}

// Delete removes a record by ID
func (s *Store) Delete(_ context.Context, id string) error {
	if id == "" {
		return errors.WrapInvalid(fmt.Errorf("record ID cannot be empty"),
			"generation", "Delete", "validate ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.WrapInvalid(errors.ErrRecordNotFound, "generation", "Delete",
				fmt.Sprintf("record %s", id))
		}
		return errors.WrapTransient(err, "generation", "Delete", "remove record file")
	}

	return nil
}

// List retrieves all records sorted by creation time, oldest first.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.WrapTransient(err, "generation", "List", "read store directory")
	}

	records := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		record, err := s.Get(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				// Deleted between the directory read and the file read
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

// write renders the record and swaps it into place atomically so a
// crash mid-write never leaves a truncated file behind.
func (s *Store) write(record *Record, method string) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.WrapFatal(err, "generation", method, "marshal record")
	}

	target := s.path(record.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WrapTransient(err, "generation", method, "write record file")
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapTransient(err, "generation", method, "replace record file")
	}

	return nil
}
