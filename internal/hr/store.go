package hr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maruel/hrdesk/internal/kv"
)

// DefaultKey is the storage key holding the document.
const DefaultKey = "ipt_demo_v1"

// Collection names, as they appear in the persisted document.
const (
	CollectionAccounts    = "accounts"
	CollectionDepartments = "departments"
	CollectionEmployees   = "employees"
	CollectionRequests    = "requests"
)

// ErrNotPersisted is returned by Load when the storage holds no document.
var ErrNotPersisted = errors.New("no persisted document")

// Observer is notified of store activity. internal/metrics implements it.
type Observer interface {
	Mutation(collection, op string)
	Persisted(d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Mutation(string, string)         {}
func (nopObserver) Persisted(time.Duration, error) {}

// Options configures Open.
type Options struct {
	// Key is the storage key; DefaultKey when empty.
	Key string
	// Seed is the document used when nothing usable is persisted; Seed(now)
	// when nil.
	Seed *Data
	// Observer receives mutation and persistence events.
	Observer Observer
	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

// LoadStatus tells where the document of an opened Store came from.
type LoadStatus int

// Load outcomes.
const (
	// LoadRestored means the persisted document was decoded.
	LoadRestored LoadStatus = iota
	// LoadSeeded means nothing was persisted yet.
	LoadSeeded
	// LoadRecovered means the persisted document was unreadable and the seed
	// replaced it.
	LoadRecovered
)

func (l LoadStatus) String() string {
	switch l {
	case LoadRestored:
		return "restored"
	case LoadSeeded:
		return "seeded"
	case LoadRecovered:
		return "recovered"
	default:
		return fmt.Sprintf("LoadStatus(%d)", int(l))
	}
}

// LoadResult reports how Open obtained its document.
type LoadResult struct {
	Status LoadStatus
	// Err is the read or decode error behind LoadRecovered.
	Err error
}

// Store owns the in-memory document and writes it back to storage after
// every mutation.
//
// A failed write does not undo the mutation nor fail the operation: the
// in-memory document stays authoritative, the error is logged and kept until
// the next successful write. Flush retries explicitly.
type Store struct {
	storage  kv.Storage
	key      string
	now      func() time.Time
	observer Observer

	mu      sync.RWMutex
	data    Data
	dirty   bool
	lastErr error

	Accounts    *Collection[*Account]
	Departments *Collection[*Department]
	Employees   *Collection[*Employee]
	Requests    *Collection[*Request]
}

// Load reads and decodes the document stored under key. It returns
// ErrNotPersisted when the key is absent or empty.
func Load(storage kv.Storage, key string) (*Data, error) {
	raw, err := storage.Get(key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotPersisted
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNotPersisted
	}
	var d *Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if d == nil {
		return nil, fmt.Errorf("decode %s: document is null", key)
	}
	d.normalize()
	return d, nil
}

// Open creates a Store over storage. The document is the persisted one when
// readable, the seed otherwise; the result says which. Nothing is written
// until the first mutation.
func Open(ctx context.Context, storage kv.Storage, opts Options) (*Store, LoadResult) {
	s := &Store{
		storage:  storage,
		key:      opts.Key,
		now:      opts.Now,
		observer: opts.Observer,
	}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	s.Accounts = newCollection(s, CollectionAccounts, func(d *Data) *[]*Account { return &d.Accounts })
	s.Departments = newCollection(s, CollectionDepartments, func(d *Data) *[]*Department { return &d.Departments })
	s.Employees = newCollection(s, CollectionEmployees, func(d *Data) *[]*Employee { return &d.Employees })
	s.Requests = newCollection(s, CollectionRequests, func(d *Data) *[]*Request { return &d.Requests })

	seed := func() Data {
		if opts.Seed != nil {
			d := opts.Seed.Clone()
			d.normalize()
			return *d
		}
		return *Seed(s.now())
	}
	d, err := Load(storage, s.key)
	var res LoadResult
	switch {
	case err == nil:
		s.data = *d
		res.Status = LoadRestored
	case errors.Is(err, ErrNotPersisted):
		s.data = seed()
		res.Status = LoadSeeded
	default:
		slog.WarnContext(ctx, "Persisted document unreadable; starting from seed", "key", s.key, "err", err)
		s.data = seed()
		res = LoadResult{Status: LoadRecovered, Err: err}
	}
	slog.DebugContext(ctx, "Store opened", "key", s.key, "status", res.Status,
		"accounts", len(s.data.Accounts), "departments", len(s.data.Departments),
		"employees", len(s.data.Employees), "requests", len(s.data.Requests))
	return s, res
}

// Key returns the storage key of the document.
func (s *Store) Key() string {
	return s.key
}

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() *Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Flush writes the document to storage and returns the outcome.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// Dirty reports whether the last write failed, meaning storage holds an older
// document than memory.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// LastPersistError returns the error of the last failed write, or nil after a
// successful one.
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) mutatedLocked(collection, op string) {
	s.observer.Mutation(collection, op)
	_ = s.persistLocked()
}

func (s *Store) persistLocked() error {
	start := time.Now()
	b, err := json.Marshal(&s.data)
	if err == nil {
		err = s.storage.Set(s.key, string(b))
	}
	s.observer.Persisted(time.Since(start), err)
	if err != nil {
		s.dirty = true
		s.lastErr = err
		slog.Error("Failed to persist document", "key", s.key, "err", err)
		return fmt.Errorf("persist %s: %w", s.key, err)
	}
	s.dirty = false
	s.lastErr = nil
	return nil
}

// Records is the untyped view of a Collection, for callers that only know
// the collection's name.
type Records interface {
	Name() string
	Len() int
	// Values returns every record in insertion order.
	Values() []any
	// ValueByID is GetByID.
	ValueByID(id string) (any, bool)
	// ValueByField is GetByField.
	ValueByField(field string, value any) (any, bool)
	Delete(id int) bool
}

// Collection returns the collection named name, or nil when there is none.
func (s *Store) Collection(name string) Records {
	switch name {
	case CollectionAccounts:
		return s.Accounts
	case CollectionDepartments:
		return s.Departments
	case CollectionEmployees:
		return s.Employees
	case CollectionRequests:
		return s.Requests
	default:
		return nil
	}
}

// GetAll returns the records of the named collection; nil when the
// collection does not exist.
func (s *Store) GetAll(name string) []any {
	if c := s.Collection(name); c != nil {
		return c.Values()
	}
	return nil
}

// Values implements Records.
func (c *Collection[T]) Values() []any {
	rows := c.All()
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

// ValueByID implements Records.
func (c *Collection[T]) ValueByID(id string) (any, bool) {
	r, ok := c.GetByID(id)
	if !ok {
		return nil, false
	}
	return r, true
}

// ValueByField implements Records.
func (c *Collection[T]) ValueByField(field string, value any) (any, bool) {
	r, ok := c.GetByField(field, value)
	if !ok {
		return nil, false
	}
	return r, true
}
