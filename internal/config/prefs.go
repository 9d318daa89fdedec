package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.yaml.in/yaml/v3"

	"echomic/internal/domain"
	"echomic/internal/rules"
)

var ErrStoreClosed = errors.New("preferences store is closed")

// Store keeps preferences in memory and persists them to a YAML file.
// Writes happen on a background worker; only the newest pending snapshot
// is written.
type Store struct {
	path string

	mu    sync.RWMutex
	prefs domain.Preferences
	// last holds the bytes most recently written so the watcher can
	// ignore our own writes.
	last []byte

	qmu     sync.Mutex
	pending chan domain.Preferences
	closed  bool
	done    chan struct{}
}

// OpenStore loads path, falling back to defaults when the file is missing
// or unreadable, and starts the save worker.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("preferences path is empty")
	}
	s := &Store{
		path:    path,
		prefs:   domain.DefaultPreferences(),
		pending: make(chan domain.Preferences, 1),
		done:    make(chan struct{}),
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("[prefs] no preferences file, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read preferences: %w", err)
	default:
		prefs, err := decodePreferences(raw)
		if err != nil {
			slog.Warn("[prefs] preferences file is invalid, using defaults", "path", path, "error", err)
		} else {
			s.prefs = prefs
			s.last = raw
		}
	}

	go s.worker()
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() domain.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePreferences(s.prefs)
}

// Save updates the in-memory snapshot and queues it for writing.
func (s *Store) Save(p domain.Preferences) {
	p = normalizePreferences(p)
	s.mu.Lock()
	s.prefs = clonePreferences(p)
	s.mu.Unlock()

	s.qmu.Lock()
	defer s.qmu.Unlock()
	if s.closed {
		slog.Warn("[prefs] save after close dropped")
		return
	}
	select {
	case <-s.pending:
	default:
	}
	s.pending <- p
}

// Close flushes the pending snapshot and stops the worker.
func (s *Store) Close() error {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		return ErrStoreClosed
	}
	s.closed = true
	close(s.pending)
	s.qmu.Unlock()
	<-s.done
	return nil
}

func (s *Store) worker() {
	defer close(s.done)
	for p := range s.pending {
		if err := s.write(p); err != nil {
			slog.Error("[prefs] failed to save preferences", "path", s.path, "error", err)
		}
	}
}

func (s *Store) write(p domain.Preferences) error {
	raw, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	s.mu.Lock()
	s.last = raw
	s.mu.Unlock()
	if err := atomicWrite(s.path, raw); err != nil {
		return err
	}
	slog.Debug("[prefs] preferences saved", "path", s.path)
	return nil
}

// Watch reloads the file when another process edits it and calls onChange
// with the new preferences. It returns when ctx ends.
func (s *Store) Watch(ctx context.Context, onChange func(domain.Preferences)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors and atomicWrite replace the file.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if prefs, changed := s.reload(); changed && onChange != nil {
				onChange(prefs)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("[prefs] watcher error", "error", err)
		}
	}
}

func (s *Store) reload() (domain.Preferences, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return domain.Preferences{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes.Equal(raw, s.last) {
		return domain.Preferences{}, false
	}
	prefs, err := decodePreferences(raw)
	if err != nil {
		slog.Warn("[prefs] ignoring invalid external edit", "path", s.path, "error", err)
		return domain.Preferences{}, false
	}
	s.prefs = prefs
	s.last = raw
	slog.Info("[prefs] preferences reloaded", "path", s.path, "shortcut", prefs.Shortcut.String())
	return clonePreferences(prefs), true
}

func decodePreferences(raw []byte) (domain.Preferences, error) {
	prefs := domain.DefaultPreferences()
	if err := yaml.Unmarshal(raw, &prefs); err != nil {
		return domain.Preferences{}, err
	}
	if err := prefs.Shortcut.Validate(); err != nil {
		return domain.Preferences{}, err
	}
	if _, err := rules.Compile(prefs.Substitutions); err != nil {
		return domain.Preferences{}, err
	}
	return normalizePreferences(prefs), nil
}

func normalizePreferences(p domain.Preferences) domain.Preferences {
	p.Shortcut = p.Shortcut.Canonical()
	if p.MaxRecordingSeconds <= 0 {
		p.MaxRecordingSeconds = domain.DefaultPreferences().MaxRecordingSeconds
	}
	return p
}

func clonePreferences(p domain.Preferences) domain.Preferences {
	p.Shortcut.Modifiers = append([]domain.KeyCode(nil), p.Shortcut.Modifiers...)
	p.Substitutions = append([]string(nil), p.Substitutions...)
	return p
}

// atomicWrite writes via temp file and rename so readers never see a
// partial file.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save preferences: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preferences.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save preferences: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[prefs] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("save preferences: write: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("save preferences: sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("save preferences: close: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("save preferences: rename: %w", err)
	}
	return nil
}
