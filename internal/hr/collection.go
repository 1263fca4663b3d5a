package hr

import (
	"reflect"
	"slices"
	"strings"
	"time"
	"unicode"
)

// Record is implemented by the pointer types kept in a Collection.
type Record[T any] interface {
	Clone() T
	meta() *Meta
}

// Patch changes some fields of a record. It cannot reach Meta.ID.
type Patch[T any] interface {
	Apply(T)
}

// Collection is one ordered, typed sequence of records of a Store.
//
// Every method returns clones: callers never hold a reference into the
// document. Mutations persist the whole document before returning.
type Collection[T Record[T]] struct {
	name   string
	s      *Store
	rows   func(*Data) *[]T
	fields map[string][]int
}

func newCollection[T Record[T]](s *Store, name string, rows func(*Data) *[]T) *Collection[T] {
	return &Collection[T]{name: name, s: s, rows: rows, fields: jsonFields(reflect.TypeFor[T]())}
}

// Name returns the collection name used in the persisted document.
func (c *Collection[T]) Name() string {
	return c.name
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return len(*c.rows(&c.s.data))
}

// All returns every record in insertion order.
func (c *Collection[T]) All() []T {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return cloneAll(*c.rows(&c.s.data))
}

// Get returns the record with the given id.
func (c *Collection[T]) Get(id int) (T, bool) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	if i := c.index(id); i >= 0 {
		return (*c.rows(&c.s.data))[i].Clone(), true
	}
	var zero T
	return zero, false
}

// GetByID is Get for an id received as text. Text that does not start with
// an integer finds nothing.
func (c *Collection[T]) GetByID(id string) (T, bool) {
	n, ok := ParseID(id)
	if !ok {
		var zero T
		return zero, false
	}
	return c.Get(n)
}

// GetByField returns the first record whose JSON field equals value. Values
// only match fields of the same kind; "1" never matches an id of 1.
func (c *Collection[T]) GetByField(field string, value any) (T, bool) {
	var zero T
	idx, ok := c.fields[field]
	if !ok {
		return zero, false
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	for _, row := range *c.rows(&c.s.data) {
		if fieldEquals(reflect.ValueOf(row).Elem().FieldByIndex(idx), value) {
			return row.Clone(), true
		}
	}
	return zero, false
}

// Find returns the first record matching pred.
func (c *Collection[T]) Find(pred func(T) bool) (T, bool) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	for _, row := range *c.rows(&c.s.data) {
		if pred(row) {
			return row.Clone(), true
		}
	}
	var zero T
	return zero, false
}

// Filter returns the records matching pred, in insertion order.
func (c *Collection[T]) Filter(pred func(T) bool) []T {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var out []T
	for _, row := range *c.rows(&c.s.data) {
		if pred(row) {
			out = append(out, row.Clone())
		}
	}
	return out
}

// Insert appends a copy of rec with a fresh id and creation time, persists
// the document and returns the stored record.
//
// The id is one more than the largest id in the collection, so ids freed by
// Delete are never reused while a larger one exists.
func (c *Collection[T]) Insert(rec T) T {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	rows := c.rows(&c.s.data)
	row := rec.Clone()
	m := row.meta()
	m.ID = nextID(*rows)
	m.CreatedAt = c.s.now()
	m.UpdatedAt = time.Time{}
	*rows = append(*rows, row)
	c.s.mutatedLocked(c.name, "insert")
	return row.Clone()
}

// Update applies patch to the record with the given id, stamps its update
// time, persists the document and returns the result. An unknown id changes
// nothing and returns false.
func (c *Collection[T]) Update(id int, patch Patch[T]) (T, bool) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		var zero T
		return zero, false
	}
	row := (*c.rows(&c.s.data))[i].Clone()
	patch.Apply(row)
	m := row.meta()
	m.ID = id
	m.UpdatedAt = c.s.now()
	(*c.rows(&c.s.data))[i] = row
	c.s.mutatedLocked(c.name, "update")
	return row.Clone(), true
}

// Delete removes the record with the given id and persists the document. It
// reports whether a record was removed.
func (c *Collection[T]) Delete(id int) bool {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return false
	}
	rows := c.rows(&c.s.data)
	*rows = slices.Delete(*rows, i, i+1)
	c.s.mutatedLocked(c.name, "delete")
	return true
}

// index must be called with the lock held.
func (c *Collection[T]) index(id int) int {
	return slices.IndexFunc(*c.rows(&c.s.data), func(r T) bool { return r.meta().ID == id })
}

func nextID[T Record[T]](rows []T) int {
	maxID := 0
	for _, r := range rows {
		maxID = max(maxID, r.meta().ID)
	}
	return maxID + 1
}

// ParseID reads a decimal integer prefix of s, after optional leading
// whitespace and sign, the way a browser's parseInt does: "12abc" is 12 and
// "abc" is not an id.
func ParseID(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		if n > (1<<31)/10 {
			// Far beyond any id a collection can hold.
			return 0, false
		}
		n = n*10 + int(r-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// jsonFields maps JSON field names of the struct behind t to field indexes,
// following embedded structs.
func jsonFields(t reflect.Type) map[string][]int {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := make(map[string][]int)
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		if name := jsonFieldName(&f); name != "-" {
			out[name] = f.Index
		}
	}
	return out
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f *reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

func fieldEquals(field reflect.Value, value any) bool {
	v := reflect.ValueOf(value)
	if !v.IsValid() || v.Kind() != field.Kind() {
		return false
	}
	if v.Type() != field.Type() {
		if !v.Type().ConvertibleTo(field.Type()) {
			return false
		}
		v = v.Convert(field.Type())
	}
	if !field.Type().Comparable() {
		return false
	}
	return field.Interface() == v.Interface()
}
