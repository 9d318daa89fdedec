// Package conflict rates candidate shortcuts against operating system
// shortcuts, common application shortcuts and ergonomic concerns.
package conflict

import (
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"

	"echomic/internal/domain"
)

const maxCacheEntries = 1000

// Stats reports cache effectiveness.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

type Option func(*Engine)

// WithOnCompute registers a hook called after every cache miss.
func WithOnCompute(fn func(domain.Shortcut, []domain.ConflictInfo)) Option {
	return func(e *Engine) { e.onCompute = fn }
}

// Engine runs the detectors in a fixed order and caches results per chord.
// It is safe for concurrent use.
type Engine struct {
	detectors []Detector
	onCompute func(domain.Shortcut, []domain.ConflictInfo)

	mu     sync.Mutex
	cache  map[string][]domain.ConflictInfo
	hits   uint64
	misses uint64
}

// NewEngine builds the engine for a GOOS value such as "darwin", "windows"
// or "linux". An empty platform uses the running one.
func NewEngine(platform string, opts ...Option) *Engine {
	if platform == "" {
		platform = runtime.GOOS
	}
	e := &Engine{
		detectors: []Detector{
			newSystemDetector(platform),
			applicationDetector{},
			accessibilityDetector{},
		},
		cache: make(map[string][]domain.ConflictInfo),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check returns the conflicts of s, at most one per detector, in detector order.
func (e *Engine) Check(s domain.Shortcut) []domain.ConflictInfo {
	s = s.Canonical()
	key := cacheKey(s)

	e.mu.Lock()
	if cached, ok := e.cache[key]; ok {
		e.hits++
		e.mu.Unlock()
		return slices.Clone(cached)
	}
	e.misses++
	e.mu.Unlock()

	var conflicts []domain.ConflictInfo
	for _, d := range e.detectors {
		if info, ok := d.Check(s); ok {
			conflicts = append(conflicts, info)
		}
	}
	slog.Debug("[conflict] computed conflicts", "shortcut", s.String(), "count", len(conflicts))
	if e.onCompute != nil {
		e.onCompute(s, slices.Clone(conflicts))
	}

	e.mu.Lock()
	e.cache[key] = conflicts
	if len(e.cache) > maxCacheEntries {
		clear(e.cache)
	}
	e.mu.Unlock()
	return slices.Clone(conflicts)
}

// HasBlocking reports whether s collides with a shortcut the system keeps.
func (e *Engine) HasBlocking(s domain.Shortcut) bool {
	for _, c := range e.Check(s) {
		if c.Severity == domain.SeverityError {
			return true
		}
	}
	return false
}

func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.cache)
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{Hits: e.hits, Misses: e.misses, Size: len(e.cache)}
}

// cacheKey ignores the mode; no detector depends on it.
func cacheKey(s domain.Shortcut) string {
	var b strings.Builder
	for _, m := range s.Modifiers {
		b.WriteString(m.String())
		b.WriteByte('+')
	}
	b.WriteString(s.Key.String())
	return b.String()
}
