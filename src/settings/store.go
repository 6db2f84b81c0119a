package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Store owns settings.toml. Reads return copies.
type Store struct {
	path string
	mu   sync.RWMutex
	cur  Settings
}

// Open loads path, writing the defaults there first if it does not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	cur, err := load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cur = Default()
		if err := save(path, cur); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}
	s.cur = cur
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.clone()
}

// Update applies fn to a copy, validates and persists it.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur.clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.cur.clone(), fmt.Errorf("invalid settings: %w", err)
	}
	if err := save(s.path, next); err != nil {
		return s.cur.clone(), err
	}
	s.cur = next
	return next.clone(), nil
}

// Reload re-reads the file. Invalid content leaves the current settings in place.
func (s *Store) Reload() (Settings, error) {
	next, err := load(s.path)
	if err != nil {
		return s.Get(), err
	}
	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()
	return next.clone(), nil
}

// Watch reloads on every change to the file until ctx ends and passes the
// new settings to onChange. Editors that replace the file are handled by
// watching the directory.
func (s *Store) Watch(ctx context.Context, onChange func(Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(watchDebounce, func() {
					next, err := s.Reload()
					if err != nil {
						log.Printf("settings: reload failed, keeping previous: %v", err)
						return
					}
					if onChange != nil {
						onChange(next)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("settings: watcher error: %v", err)
			}
		}
	}()
	return nil
}

func load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	// Keys missing from the file keep their defaults.
	cur := Default()
	cur.Actions = nil
	md, err := toml.Decode(string(data), &cur)
	if err != nil {
		return Settings{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if !md.IsDefined("actions") {
		cur.Actions = Default().Actions
	}
	if err := cur.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cur, nil
}

// save writes through a temp file and rename so readers never see a partial file.
func save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
