package hr

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/maruel/hrdesk/internal/kv"
)

// tick returns a clock advancing one second per call.
func tick() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) (*Store, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	s, res := Open(t.Context(), mem, Options{Now: tick()})
	if res.Status != LoadSeeded {
		t.Fatalf("Open() status = %s, want seeded", res.Status)
	}
	return s, mem
}

type countingObserver struct {
	mu        sync.Mutex
	mutations map[string]int
	persisted int
	failed    int
}

func (c *countingObserver) Mutation(collection, op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mutations == nil {
		c.mutations = map[string]int{}
	}
	c.mutations[collection+"/"+op]++
}

func (c *countingObserver) Persisted(_ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persisted++
	if err != nil {
		c.failed++
	}
}

func TestOpen(t *testing.T) {
	t.Run("Seeded", func(t *testing.T) {
		s, mem := newTestStore(t)
		if got := s.Accounts.Len(); got != 1 {
			t.Errorf("accounts = %d, want 1", got)
		}
		admin, ok := s.Accounts.GetByField("email", "admin@example.com")
		if !ok || admin.Password != "Password123!" || admin.Role != RoleAdmin || !admin.Verified {
			t.Errorf("unexpected seed admin: %+v", admin)
		}
		deps := s.Departments.All()
		if len(deps) != 2 || deps[0].Name != "Engineering" || deps[1].Name != "HR" {
			t.Errorf("unexpected seed departments: %+v", deps)
		}
		if s.Employees.Len() != 0 || s.Requests.Len() != 0 {
			t.Error("seed must not hold employees nor requests")
		}
		// Nothing is written before the first mutation.
		if _, err := mem.Get(DefaultKey); !errors.Is(err, kv.ErrNotFound) {
			t.Errorf("seed persisted eagerly: %v", err)
		}
	})
	t.Run("EmptyValue", func(t *testing.T) {
		mem := kv.NewMemory()
		_ = mem.Set(DefaultKey, "")
		if _, res := Open(t.Context(), mem, Options{}); res.Status != LoadSeeded {
			t.Errorf("status = %s, want seeded", res.Status)
		}
	})
	for _, raw := range []string{"{not json", "null", `{"accounts": 3}`} {
		t.Run("Corrupt", func(t *testing.T) {
			mem := kv.NewMemory()
			_ = mem.Set(DefaultKey, raw)
			s, res := Open(t.Context(), mem, Options{})
			if res.Status != LoadRecovered || res.Err == nil {
				t.Fatalf("Open(%q) = %+v, want recovered with an error", raw, res)
			}
			if s.Accounts.Len() != 1 || s.Departments.Len() != 2 {
				t.Error("recovered store must hold the seed")
			}
		})
	}
	t.Run("Restored", func(t *testing.T) {
		mem := kv.NewMemory()
		_ = mem.Set("custom", `{"accounts":[{"id":7,"email":"x@y.z","role":"user"}]}`)
		s, res := Open(t.Context(), mem, Options{Key: "custom"})
		if res.Status != LoadRestored {
			t.Fatalf("status = %s, want restored", res.Status)
		}
		if s.Key() != "custom" {
			t.Errorf("Key() = %q", s.Key())
		}
		if _, ok := s.Accounts.Get(7); !ok {
			t.Error("account 7 not restored")
		}
		// Collections absent from the document are empty, not nil.
		if s.Departments.Len() != 0 {
			t.Error("departments should be empty")
		}
		b, _ := json.Marshal(s.Snapshot())
		if string(b) != `{"accounts":[{"id":7,"createdAt":"0001-01-01T00:00:00Z","firstName":"","lastName":"","email":"x@y.z","password":"","role":"user","verified":false}],"departments":[],"employees":[],"requests":[]}` {
			t.Errorf("unexpected document: %s", b)
		}
	})
	t.Run("CustomSeed", func(t *testing.T) {
		seed := &Data{Departments: []*Department{{Meta: Meta{ID: 5}, Name: "Ops"}}}
		s, _ := Open(t.Context(), kv.NewMemory(), Options{Seed: seed})
		if s.Accounts.Len() != 0 || s.Departments.Len() != 1 {
			t.Errorf("custom seed not used: %+v", s.Snapshot())
		}
		s.Departments.Delete(5)
		if len(seed.Departments) != 1 {
			t.Error("store mutated the seed")
		}
	})
}

func TestInsertGet(t *testing.T) {
	s, _ := newTestStore(t)
	in := &Request{
		Type:          RequestLeave,
		EmployeeEmail: "admin@example.com",
		Items:         []Item{{Name: "Vacation", Quantity: 3}},
		Status:        StatusPending,
		Date:          time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	got := s.Requests.Insert(in)
	if got.ID != 1 {
		t.Errorf("first id = %d, want 1", got.ID)
	}
	if got.CreatedAt.IsZero() || !got.UpdatedAt.IsZero() {
		t.Errorf("unexpected timestamps: %+v", got.Meta)
	}
	if in.ID != 0 {
		t.Error("Insert modified its argument")
	}
	back, ok := s.Requests.Get(got.ID)
	if !ok {
		t.Fatal("inserted record not found")
	}
	want := in.Clone()
	want.Meta = got.Meta
	if !reflect.DeepEqual(back, want) {
		t.Errorf("Get() = %+v, want %+v", back, want)
	}

	// Returned records are copies.
	back.Items[0].Quantity = 99
	again, _ := s.Requests.Get(got.ID)
	if again.Items[0].Quantity != 3 {
		t.Error("mutating a returned record changed the store")
	}
}

func TestInsertIDs(t *testing.T) {
	s, _ := newTestStore(t)
	var ids []int
	for _, n := range []string{"E1", "E2", "E3"} {
		ids = append(ids, s.Employees.Insert(&Employee{EmployeeNumber: n}).ID)
	}
	if !reflect.DeepEqual(ids, []int{1, 2, 3}) {
		t.Fatalf("ids = %v", ids)
	}
	if !s.Employees.Delete(2) {
		t.Fatal("Delete(2) = false")
	}
	if id := s.Employees.Insert(&Employee{EmployeeNumber: "E4"}).ID; id != 4 {
		t.Errorf("id after gap = %d, want 4", id)
	}
	// Departments are seeded with 1 and 2.
	if id := s.Departments.Insert(&Department{Name: "Ops"}).ID; id != 3 {
		t.Errorf("department id = %d, want 3", id)
	}
	// The supplied id is ignored.
	if id := s.Departments.Insert(&Department{Meta: Meta{ID: 42}, Name: "Legal"}).ID; id != 4 {
		t.Errorf("department id = %d, want 4", id)
	}
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.Departments.All()
	if _, ok := s.Departments.Update(99, DepartmentPatch{Name: Ptr("X")}); ok {
		t.Error("Update(99) = true")
	}
	if after := s.Departments.All(); !reflect.DeepEqual(before, after) {
		t.Errorf("Update on a missing id changed the collection: %+v", after)
	}

	d, ok := s.Departments.Update(2, DepartmentPatch{Description: Ptr("People")})
	if !ok {
		t.Fatal("Update(2) = false")
	}
	if d.ID != 2 || d.Name != "HR" || d.Description != "People" {
		t.Errorf("unexpected update result: %+v", d)
	}
	if d.UpdatedAt.IsZero() || !d.UpdatedAt.After(d.CreatedAt) {
		t.Errorf("updatedAt not stamped: %+v", d.Meta)
	}
	if got, _ := s.Departments.Get(2); !reflect.DeepEqual(got, d) {
		t.Errorf("Get() after update = %+v, want %+v", got, d)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	if !s.Departments.Delete(1) {
		t.Fatal("first Delete(1) = false")
	}
	if s.Departments.Delete(1) {
		t.Error("second Delete(1) = true")
	}
	if s.Departments.Delete(404) {
		t.Error("Delete(404) = true")
	}
	if s.Departments.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Departments.Len())
	}
}

func TestRoundTrip(t *testing.T) {
	mem := kv.NewMemory()
	s, _ := Open(t.Context(), mem, Options{Now: tick()})
	s.Employees.Insert(&Employee{EmployeeNumber: "E-1", UserEmail: "admin@example.com", Position: "CTO", DepartmentID: 1, HireDate: "2024-05-01"})
	s.Requests.Insert(&Request{Type: RequestEquipment, EmployeeEmail: "admin@example.com", Items: []Item{{Name: "Laptop", Quantity: 1}, {Name: "Mouse", Quantity: 2}}, Status: StatusPending, Date: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)})
	s.Accounts.Update(1, AccountPatch{FirstName: Ptr("Root")})

	s2, res := Open(t.Context(), mem, Options{})
	if res.Status != LoadRestored {
		t.Fatalf("status = %s, want restored", res.Status)
	}
	if !reflect.DeepEqual(s.Snapshot(), s2.Snapshot()) {
		a, _ := json.Marshal(s.Snapshot())
		b, _ := json.Marshal(s2.Snapshot())
		t.Errorf("round trip mismatch:\n%s\n%s", a, b)
	}
	e, ok := s2.Employees.Get(1)
	if !ok || e.Position != "CTO" || e.DepartmentID != 1 || e.HireDate != "2024-05-01" {
		t.Errorf("employee not restored: %+v", e)
	}
}

func TestPersistFailure(t *testing.T) {
	obs := &countingObserver{}
	mem := kv.NewMemory()
	s, _ := Open(t.Context(), mem, Options{Observer: obs})
	mem.FailWrites = errors.New("quota exceeded")

	d := s.Departments.Insert(&Department{Name: "Ops"})
	if d.ID != 3 {
		t.Fatalf("Insert() during failure = %+v", d)
	}
	if _, ok := s.Departments.Get(3); !ok {
		t.Error("in-memory mutation lost")
	}
	if !s.Dirty() || s.LastPersistError() == nil {
		t.Error("failure not remembered")
	}
	if err := s.Flush(); err == nil {
		t.Error("Flush() should report the failure")
	}

	mem.FailWrites = nil
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
	if s.Dirty() || s.LastPersistError() != nil {
		t.Error("successful flush should clear the failure")
	}
	loaded, err := Load(mem, DefaultKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Departments) != 3 {
		t.Errorf("persisted departments = %d, want 3", len(loaded.Departments))
	}
	if obs.mutations["departments/insert"] != 1 || obs.failed != 2 || obs.persisted != 3 {
		t.Errorf("observer = %+v", obs)
	}
}

func TestLoad(t *testing.T) {
	mem := kv.NewMemory()
	if _, err := Load(mem, DefaultKey); !errors.Is(err, ErrNotPersisted) {
		t.Errorf("Load(empty) = %v, want ErrNotPersisted", err)
	}
	_ = mem.Set(DefaultKey, "[")
	if _, err := Load(mem, DefaultKey); err == nil || errors.Is(err, ErrNotPersisted) {
		t.Errorf("Load(corrupt) = %v", err)
	}
	_ = mem.Set(DefaultKey, `{"requests":[null,{"id":1,"items":[{"name":"Pen","quantity":2}]}]}`)
	d, err := Load(mem, DefaultKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Requests) != 1 || d.Requests[0].Items[0].Name != "Pen" {
		t.Errorf("unexpected document: %+v", d)
	}
}

func TestGetByID(t *testing.T) {
	s, _ := newTestStore(t)
	for _, tc := range []struct {
		in   string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{"2", 2, true},
		{" 2", 2, true},
		{"2abc", 2, true},
		{"+1", 1, true},
		{"abc", 0, false},
		{"", 0, false},
		{"-", 0, false},
		{"3", 0, false},
		{"99999999999999999999", 0, false},
	} {
		d, ok := s.Departments.GetByID(tc.in)
		if ok != tc.ok || (ok && d.ID != tc.want) {
			t.Errorf("GetByID(%q) = %+v, %t; want id %d, %t", tc.in, d, ok, tc.want, tc.ok)
		}
	}
}

func TestGetByField(t *testing.T) {
	s, _ := newTestStore(t)
	s.Accounts.Insert(&Account{FirstName: "Ann", Email: "ann@example.com", Role: RoleUser})
	s.Accounts.Insert(&Account{FirstName: "Ann", Email: "ann2@example.com", Role: RoleUser})

	if a, ok := s.Accounts.GetByField("email", "ann@example.com"); !ok || a.ID != 2 {
		t.Errorf("GetByField(email) = %+v, %t", a, ok)
	}
	if _, ok := s.Accounts.GetByField("email", "ANN@example.com"); ok {
		t.Error("email lookup must be case sensitive")
	}
	if a, ok := s.Accounts.GetByField("firstName", "Ann"); !ok || a.ID != 2 {
		t.Errorf("GetByField(firstName) should return the first match, got %+v", a)
	}
	if a, ok := s.Accounts.GetByField("role", "admin"); !ok || a.ID != 1 {
		t.Errorf("GetByField(role, string) = %+v, %t", a, ok)
	}
	if _, ok := s.Accounts.GetByField("verified", true); !ok {
		t.Error("GetByField(verified, true) found nothing")
	}
	if _, ok := s.Accounts.GetByField("id", 3); !ok {
		t.Error("GetByField(id, 3) found nothing")
	}
	if _, ok := s.Accounts.GetByField("id", "3"); ok {
		t.Error("GetByField(id, \"3\") must not coerce")
	}
	if _, ok := s.Accounts.GetByField("nope", "x"); ok {
		t.Error("unknown field matched")
	}
	if _, ok := s.Accounts.GetByField("email", nil); ok {
		t.Error("nil matched")
	}
	s.Requests.Insert(&Request{Items: []Item{{Name: "a", Quantity: 1}}})
	if _, ok := s.Requests.GetByField("items", []Item{{Name: "a", Quantity: 1}}); ok {
		t.Error("slice fields never match")
	}
}

func TestFindFilter(t *testing.T) {
	s, _ := newTestStore(t)
	d, ok := s.Departments.Find(func(d *Department) bool { return d.Name == "HR" })
	if !ok || d.ID != 2 {
		t.Errorf("Find() = %+v, %t", d, ok)
	}
	if got := s.Departments.Filter(func(d *Department) bool { return d.ID > 0 }); len(got) != 2 {
		t.Errorf("Filter() = %d records", len(got))
	}
	if got := s.Departments.Filter(func(*Department) bool { return false }); got != nil {
		t.Errorf("Filter(none) = %v", got)
	}
}

func TestNamedCollections(t *testing.T) {
	s, _ := newTestStore(t)
	if s.Collection("nope") != nil || s.GetAll("nope") != nil {
		t.Error("unknown collection should be absent")
	}
	for _, name := range []string{CollectionAccounts, CollectionDepartments, CollectionEmployees, CollectionRequests} {
		c := s.Collection(name)
		if c == nil || c.Name() != name {
			t.Fatalf("Collection(%q) = %v", name, c)
		}
	}
	if got := s.GetAll(CollectionDepartments); len(got) != 2 {
		t.Errorf("GetAll(departments) = %d", len(got))
	}
	c := s.Collection(CollectionAccounts)
	v, ok := c.ValueByID("1")
	if a, isAccount := v.(*Account); !ok || !isAccount || a.Email != "admin@example.com" {
		t.Errorf("ValueByID(1) = %#v", v)
	}
	if _, ok := c.ValueByField("email", "admin@example.com"); !ok {
		t.Error("ValueByField found nothing")
	}
	if !c.Delete(1) || c.Len() != 0 {
		t.Error("Delete through Records failed")
	}
}
