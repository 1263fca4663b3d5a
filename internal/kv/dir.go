// Stores each key as a file in a directory.

package kv

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Dir is a Storage keeping one file per key. Writes go to a temporary file
// renamed over the destination, so a reader never sees a partial value.
type Dir struct {
	root string

	mu      sync.Mutex
	written map[string][sha256.Size]byte
}

// NewDir creates root if needed and returns a Dir over it.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("dir storage requires a path")
	}
	if err := os.MkdirAll(root, 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Dir{root: root, written: make(map[string][sha256.Size]byte)}, nil
}

// Root returns the directory holding the key files.
func (d *Dir) Root() string {
	return d.root
}

// FileName returns the file name used for key, relative to Root.
func (d *Dir) FileName(key string) (string, error) {
	name := url.PathEscape(key)
	if name == "" || name == "." || name == ".." || !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return name, nil
}

// Get implements Storage.
func (d *Dir) Get(key string) (string, error) {
	name, err := d.FileName(key)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(b), nil
}

// Set implements Storage.
func (d *Dir) Set(key, value string) error {
	name, err := d.FileName(key)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := os.CreateTemp(d.root, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmp := f.Name()
	_, err = f.WriteString(value)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err == nil {
		err = os.Rename(tmp, filepath.Join(d.root, name))
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	d.written[key] = sha256.Sum256([]byte(value))
	return nil
}

// Remove implements Storage.
func (d *Dir) Remove(key string) error {
	name, err := d.FileName(key)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.written, key)
	if err := os.Remove(filepath.Join(d.root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close implements Storage.
func (d *Dir) Close() error {
	return nil
}

// Watch calls fn with the new value whenever the file holding key is replaced
// or modified with content this Dir did not write itself. It returns once the
// watcher is registered and stops when ctx is done.
func (d *Dir) Watch(ctx context.Context, key string, fn func(value string)) error {
	name, err := d.FileName(key)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: renames replace the file's inode.
	if err := w.Add(d.root); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				b, err := os.ReadFile(filepath.Join(d.root, name))
				if err != nil {
					continue
				}
				sum := sha256.Sum256(b)
				d.mu.Lock()
				own := d.written[key] == sum
				d.mu.Unlock()
				if !own {
					fn(string(b))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching storage directory", "dir", d.root, "err", err)
			}
		}
	}()
	return nil
}
