package state

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

var bucketRuns = []byte("runs")

// Store archives run records.
type Store interface {
	Save(run *RunRecord) error
	Get(id string) (*RunRecord, error)
	// List returns runs newest first, without documents.
	List() ([]RunRecord, error)
	Close() error
}

// OpenStore picks a store from the file extension: .json and .json.gz are
// file stores, anything else is a bbolt database.
func OpenStore(path string) (Store, error) {
	switch {
	case strings.HasSuffix(path, ".json.gz"):
		return NewFileStore(strings.TrimSuffix(path, ".gz"), true), nil
	case strings.HasSuffix(path, ".json"):
		return NewFileStore(path, false), nil
	default:
		return NewBoltStore(path)
	}
}

func sortNewestFirst(runs []RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore creates a new BoltDB-backed run archive.
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Save stores run under its ID, replacing any earlier record.
func (s *BoltStore) Save(run *RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(run.ID), data)
	})
}

// Get loads one run.
func (s *BoltStore) Get(id string) (*RunRecord, error) {
	var run RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns every archived run.
func (s *BoltStore) List() ([]RunRecord, error) {
	var runs []RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.ForEach(func(_, v []byte) error {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("failed to unmarshal run: %w", err)
			}
			runs = append(runs, run.Summary())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(runs)
	return runs, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// FileStore implements Store as a single JSON array file, optionally
// gzip-compressed. Every Save rewrites the file.
type FileStore struct {
	mu         sync.Mutex
	path       string
	compressed bool
}

// NewFileStore creates a new file-based run archive.
func NewFileStore(path string, compressed bool) *FileStore {
	return &FileStore{
		path:       path,
		compressed: compressed,
	}
}

func (s *FileStore) filename() string {
	if s.compressed {
		return s.path + ".gz"
	}
	return s.path
}

// Save appends or replaces run.
func (s *FileStore) Save(run *RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range runs {
		if runs[i].ID == run.ID {
			runs[i] = *run
			replaced = true
		}
	}
	if !replaced {
		runs = append(runs, *run)
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if s.compressed {
		return s.saveCompressed(data)
	}
	return os.WriteFile(s.path, data, 0644)
}

func (s *FileStore) saveCompressed(data []byte) error {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return os.WriteFile(s.filename(), buf.Bytes(), 0644)
}

func (s *FileStore) load() ([]RunRecord, error) {
	f, err := os.Open(s.filename())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if s.compressed {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed archive: %w", err)
		}
		defer gr.Close()
		r = gr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var runs []RunRecord
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal runs: %w", err)
	}

	// The archive is indented on disk; documents come back compact.
	for i := range runs {
		if len(runs[i].Document) == 0 {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, runs[i].Document); err != nil {
			return nil, fmt.Errorf("failed to read document of run %s: %w", runs[i].ID, err)
		}
		runs[i].Document = buf.Bytes()
	}
	return runs, nil
}

// Get loads one run.
func (s *FileStore) Get(id string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
	}
	return nil, ErrNotFound
}

// List returns every archived run.
func (s *FileStore) List() ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, len(runs))
	for i := range runs {
		out[i] = runs[i].Summary()
	}
	sortNewestFirst(out)
	return out, nil
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}

// MemoryStore implements Store using in-memory storage.
type MemoryStore struct {
	mu   sync.Mutex
	runs map[string]RunRecord
}

// NewMemoryStore creates a new in-memory run archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]RunRecord)}
}

// Save keeps run in memory.
func (s *MemoryStore) Save(run *RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

// Get returns the stored run.
func (s *MemoryStore) Get(id string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

// List returns every stored run.
func (s *MemoryStore) List() ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Summary())
	}
	sortNewestFirst(out)
	return out, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
