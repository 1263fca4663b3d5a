package kv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testStorage exercises the Storage contract on s. Keys are prefixed so
// shared backends (postgres) do not collide between runs.
func testStorage(t *testing.T, s Storage, prefix string) {
	t.Helper()
	key := prefix + "doc"
	other := prefix + "auth_token"
	t.Cleanup(func() {
		_ = s.Remove(key)
		_ = s.Remove(other)
	})

	t.Run("GetMissing", func(t *testing.T) {
		if _, err := s.Get(prefix + "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
		}
	})
	t.Run("SetGet", func(t *testing.T) {
		want := "{\"users\":[{\"email\":\"é@example.com\"}]}\n"
		if err := s.Set(key, want); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}
		got, err := s.Get(key)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got != want {
			t.Errorf("Get() = %q, want %q", got, want)
		}
	})
	t.Run("Overwrite", func(t *testing.T) {
		if err := s.Set(key, "first"); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(key, "second"); err != nil {
			t.Fatal(err)
		}
		if got, err := s.Get(key); err != nil || got != "second" {
			t.Errorf("Get() = %q, %v; want second", got, err)
		}
	})
	t.Run("KeysAreIndependent", func(t *testing.T) {
		if err := s.Set(other, "admin@example.com"); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(key, "doc"); err != nil {
			t.Fatal(err)
		}
		if got, err := s.Get(other); err != nil || got != "admin@example.com" {
			t.Errorf("Get(other) = %q, %v", got, err)
		}
	})
	t.Run("Remove", func(t *testing.T) {
		if err := s.Set(key, "x"); err != nil {
			t.Fatal(err)
		}
		if err := s.Remove(key); err != nil {
			t.Fatalf("Remove() failed: %v", err)
		}
		if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after Remove = %v, want ErrNotFound", err)
		}
		if err := s.Remove(key); err != nil {
			t.Errorf("Remove(absent) = %v, want nil", err)
		}
	})
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	testStorage(t, m, "")

	m.FailWrites = errors.New("quota exceeded")
	if err := m.Set("k", "v"); err == nil || err.Error() != "quota exceeded" {
		t.Errorf("Set() with FailWrites = %v", err)
	}
	if err := m.Remove("k"); err == nil {
		t.Error("Remove() with FailWrites should fail")
	}
}

func TestDir(t *testing.T) {
	d, err := NewDir(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatal(err)
	}
	testStorage(t, d, "")

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		if err := d.Set("a", "b"); err != nil {
			t.Fatal(err)
		}
		entries, err := os.ReadDir(d.Root())
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".tmp-") {
				t.Errorf("temporary file left behind: %s", e.Name())
			}
		}
	})
	t.Run("FileName", func(t *testing.T) {
		for _, key := range []string{"", ".", ".."} {
			if _, err := d.FileName(key); err == nil {
				t.Errorf("FileName(%q) should fail", key)
			}
		}
		name, err := d.FileName("a/b")
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(name, "/") {
			t.Errorf("FileName(a/b) = %q, must not contain a separator", name)
		}
	})
}

func TestDirWatch(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Set("doc", "mine"); err != nil {
		t.Fatal(err)
	}
	got := make(chan string, 16)
	if err := d.Watch(t.Context(), "doc", func(v string) { got <- v }); err != nil {
		t.Fatal(err)
	}
	if err := d.Set("doc", "mine again"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(d.Root(), "doc"), []byte("theirs"), 0o600); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(10 * time.Second)
	for {
		select {
		case v := <-got:
			if v == "mine again" {
				t.Fatalf("own write reported as foreign")
			}
			if v == "theirs" {
				return
			}
		case <-deadline:
			t.Fatal("foreign write not reported")
		}
	}
}

func TestBolt(t *testing.T) {
	b, err := NewBolt(filepath.Join(t.TempDir(), "sub", "hrdesk.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close() })
	testStorage(t, b, "")
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hrdesk.sqlite")
	s, err := NewSQLite(path, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	testStorage(t, s, "")
	if err := s.Set("persist", "yes"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewSQLite(path, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if got, err := s.Get("persist"); err != nil || got != "yes" {
		t.Errorf("Get() after reopen = %q, %v", got, err)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("HRDESK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HRDESK_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgres(t.Context(), dsn, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	testStorage(t, s, "test-"+time.Now().Format("150405.000000")+"-")
}

func TestS3(t *testing.T) {
	s := newFakeS3(t, "hrdesk/")
	testStorage(t, s, "")

	t.Run("Prefix", func(t *testing.T) {
		if err := s.Set("doc", "v"); err != nil {
			t.Fatal(err)
		}
		rt := s.rt
		rt.mu.Lock()
		_, ok := rt.objects["hrdesk/doc"]
		rt.mu.Unlock()
		if !ok {
			t.Errorf("object not stored under prefix; have %v", rt.keys())
		}
	})
	t.Run("RequiresBucket", func(t *testing.T) {
		if _, err := NewS3(t.Context(), S3Config{}); err == nil {
			t.Error("NewS3() without bucket should fail")
		}
	})
}

func TestGitHistory(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGitHistory(d, "hrdesk", "hrdesk@localhost")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(d.Root(), ".git")); err != nil {
		t.Fatalf(".git not created: %v", err)
	}
	testStorage(t, g, "")

	changes, err := g.History(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) == 0 {
		t.Fatal("no commits recorded")
	}
	if changes[0].Hash == "" || changes[0].When.IsZero() {
		t.Errorf("incomplete change: %+v", changes[0])
	}

	// Writing the same value again produces no commit.
	if err := g.Set("doc", "same"); err != nil {
		t.Fatal(err)
	}
	before, _ := g.History(0)
	if err := g.Set("doc", "same"); err != nil {
		t.Fatal(err)
	}
	after, _ := g.History(0)
	if len(after) != len(before) {
		t.Errorf("identical write committed: %d -> %d commits", len(before), len(after))
	}
	if before[0].Message != "set doc" {
		t.Errorf("last message = %q, want %q", before[0].Message, "set doc")
	}

	last, err := g.History(1)
	if err != nil || len(last) != 1 {
		t.Fatalf("History(1) = %v, %v", last, err)
	}

	// Reopening keeps the history.
	g2, err := NewGitHistory(d, "hrdesk", "hrdesk@localhost")
	if err != nil {
		t.Fatal(err)
	}
	reopened, _ := g2.History(0)
	if len(reopened) != len(after) {
		t.Errorf("reopened history has %d commits, want %d", len(reopened), len(after))
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, cfg := range []Config{
		{Driver: DriverMemory},
		{Driver: DriverDir, Path: filepath.Join(dir, "dir")},
		{Path: filepath.Join(dir, "default")},
		{Driver: DriverDir, Path: filepath.Join(dir, "git"), GitHistory: true},
		{Driver: DriverBolt, Path: filepath.Join(dir, "b.db")},
		{Driver: DriverSQLite, Path: filepath.Join(dir, "s.sqlite")},
	} {
		s, err := Open(t.Context(), &cfg)
		if err != nil {
			t.Fatalf("Open(%+v) failed: %v", cfg, err)
		}
		if err := s.Set("k", "v"); err != nil {
			t.Errorf("%s: Set() failed: %v", cfg.Driver, err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("%s: Close() failed: %v", cfg.Driver, err)
		}
	}
	if _, err := Open(t.Context(), &Config{Driver: "floppy"}); err == nil {
		t.Error("Open(floppy) should fail")
	}
	if _, err := Open(t.Context(), &Config{Driver: DriverBolt}); err == nil {
		t.Error("Open(bolt) without path should fail")
	}
}
