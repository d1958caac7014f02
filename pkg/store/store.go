// Package store caches generated covering arrays in SQLite, keyed by the hash
// of the model that produced them.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// ErrNotFound is returned when no cached run matches.
var ErrNotFound = errors.New("cached run not found")

// Record is one cached run.
type Record struct {
	ID         string
	ModelHash  string
	ModelName  string
	Engine     string
	Strength   int
	TestCases  int
	Remainders int
	CreatedAt  time.Time
	// Model is the YAML of the model, set by Get and Lookup.
	Model []byte

	payload []byte
}

// payload stores tuples as level indices in factor order; -1 marks an
// absent factor.
type payload struct {
	Factors    []string `json:"factors"`
	TestCases  [][]int  `json:"test_cases"`
	Remainders [][]int  `json:"remainders"`
}

// Store is a SQLite-backed run cache.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the cache database at path. ":memory:" gives a
// private in-memory cache.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			model_hash  TEXT NOT NULL,
			model_name  TEXT NOT NULL,
			engine      TEXT NOT NULL,
			strength    INTEGER NOT NULL,
			test_cases  INTEGER NOT NULL,
			remainders  INTEGER NOT NULL,
			created_at  INTEGER NOT NULL,
			model       BLOB NOT NULL,
			payload     BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS runs_by_hash ON runs (model_hash, created_at);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores ca under hash and returns the run id. The id of ca is reused
// when set.
func (s *Store) Save(hash, name string, modelYAML []byte, fs *factor.Factors, ca *generator.CoveringArray) (string, error) {
	if ca == nil || fs == nil {
		return "", fmt.Errorf("covering array and factors are required")
	}

	data, err := encode(fs, ca)
	if err != nil {
		return "", err
	}

	id := ca.ID
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO runs
			(id, model_hash, model_name, engine, strength, test_cases, remainders, created_at, model, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, hash, name, ca.Stats.Engine, ca.Stats.Strength, len(ca.TestCases), len(ca.Remainders),
		time.Now().UnixNano(), modelYAML, data)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	return id, nil
}

// Lookup returns the newest run for hash.
func (s *Store) Lookup(hash string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, model_hash, model_name, engine, strength, test_cases, remainders, created_at, model, payload
		FROM runs
		WHERE model_hash = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, hash)
	return scanFull(row)
}

// Get returns the run with the given id.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, model_hash, model_name, engine, strength, test_cases, remainders, created_at, model, payload
		FROM runs
		WHERE id = ?
	`, id)
	return scanFull(row)
}

// List returns every run, newest first, without model or payload.
func (s *Store) List() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, model_hash, model_name, engine, strength, test_cases, remainders, created_at
		FROM runs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		var created int64
		if err := rows.Scan(&r.ID, &r.ModelHash, &r.ModelName, &r.Engine, &r.Strength,
			&r.TestCases, &r.Remainders, &created); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.CreatedAt = time.Unix(0, created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Delete removes one run.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every run and returns how many there were.
func (s *Store) Clear() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM runs")
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return res.RowsAffected()
}

func scanFull(row *sql.Row) (*Record, error) {
	var r Record
	var created int64
	err := row.Scan(&r.ID, &r.ModelHash, &r.ModelName, &r.Engine, &r.Strength,
		&r.TestCases, &r.Remainders, &created, &r.Model, &r.payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	r.CreatedAt = time.Unix(0, created)
	return &r, nil
}

// CoveringArray decodes the cached array against fs, which must be the
// factor space of the model the run was generated from.
func (r *Record) CoveringArray(fs *factor.Factors) (*generator.CoveringArray, error) {
	var p payload
	if err := json.Unmarshal(r.payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode cached run '%s': %w", r.ID, err)
	}
	if !slices.Equal(p.Factors, fs.Names()) {
		return nil, fmt.Errorf("cached run '%s' was generated for factors %v, not %v", r.ID, p.Factors, fs.Names())
	}

	ca := &generator.CoveringArray{
		ID:      r.ID,
		Factors: p.Factors,
		Stats: generator.Stats{
			Engine:     r.Engine,
			Factors:    len(p.Factors),
			Strength:   r.Strength,
			TestCases:  len(p.TestCases),
			Remainders: len(p.Remainders),
		},
	}
	var err error
	if ca.TestCases, err = decodeTuples(fs, p.TestCases); err != nil {
		return nil, err
	}
	if ca.Remainders, err = decodeTuples(fs, p.Remainders); err != nil {
		return nil, err
	}
	return ca, nil
}

func encode(fs *factor.Factors, ca *generator.CoveringArray) ([]byte, error) {
	p := payload{Factors: fs.Names()}
	var err error
	if p.TestCases, err = encodeTuples(fs, ca.TestCases); err != nil {
		return nil, err
	}
	if p.Remainders, err = encodeTuples(fs, ca.Remainders); err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run: %w", err)
	}
	return data, nil
}

func encodeTuples(fs *factor.Factors, ts []*tuple.Tuple) ([][]int, error) {
	out := make([][]int, 0, len(ts))
	for _, t := range ts {
		row := make([]int, fs.Len())
		for i, f := range fs.List() {
			row[i] = -1
			l, ok := t.Get(f.Name())
			if !ok || l.IsDontCare() {
				continue
			}
			if row[i] = f.IndexOf(l.Get()); row[i] < 0 {
				return nil, fmt.Errorf("level '%v' is not a level of factor '%s'", l.Get(), f.Name())
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func decodeTuples(fs *factor.Factors, rows [][]int) ([]*tuple.Tuple, error) {
	out := make([]*tuple.Tuple, 0, len(rows))
	for _, row := range rows {
		if len(row) != fs.Len() {
			return nil, fmt.Errorf("cached row has %d entries, want %d", len(row), fs.Len())
		}
		t := tuple.New()
		for i, idx := range row {
			if idx < 0 {
				continue
			}
			f := fs.At(i)
			if idx >= f.Len() {
				return nil, fmt.Errorf("cached level index %d out of range for factor '%s'", idx, f.Name())
			}
			t.PutValue(f.Name(), f.Level(idx))
		}
		out = append(out, t)
	}
	return out, nil
}
