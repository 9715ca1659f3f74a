package override

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/point"
)

// Manager errors.
var (
	ErrInvalidPattern = errors.New("invalid override pattern")
	ErrUnknownPattern = errors.New("override pattern not set")
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager blocks writes to devices matching the active override patterns.
//
// Patterns are shell-style globs over device topics: "*" and "?" match any
// run or single character, including path separators, so
// "devices/Campus/*" covers every device under Campus. Expiry is lazy: an
// expired pattern stops matching at its deadline and is removed from the
// store on the next mutation or Prune.
type Manager struct {
	store Store
	clock Clock

	mu       sync.RWMutex
	registry *point.Registry
	active   map[string]*activePattern
}

type activePattern struct {
	pattern   Pattern
	re        *regexp.Regexp
	deviceSet map[string]struct{}
}

// NewManager creates a manager. store may be nil for in-memory operation.
func NewManager(store Store, registry *point.Registry) *Manager {
	return &Manager{
		store:    store,
		clock:    realClock{},
		registry: registry,
		active:   make(map[string]*activePattern),
	}
}

// SetClock overrides the manager's clock. Intended for tests.
func (m *Manager) SetClock(clock Clock) {
	m.clock = clock
}

// Load restores persisted patterns, discarding those already expired.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	persisted, err := m.store.List(ctx)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range persisted {
		if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
			_ = m.store.Delete(ctx, p.Pattern)
			continue
		}
		ap, err := m.compile(p)
		if err != nil {
			// Persisted patterns were validated on entry; skip anything
			// that no longer parses rather than failing startup.
			continue
		}
		m.active[p.Pattern] = ap
	}
	return nil
}

// Set installs an override pattern. A non-positive duration makes the
// override indefinite.
func (m *Manager) Set(ctx context.Context, pattern string, duration time.Duration) error {
	now := m.clock.Now()
	p := Pattern{
		Pattern:   canonical(pattern),
		CreatedAt: now,
	}
	if duration > 0 {
		expires := now.Add(duration)
		p.ExpiresAt = &expires
	}

	ap, err := m.compile(p)
	if err != nil {
		return err
	}

	if m.store != nil {
		if err := m.store.Save(ctx, p); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.active[p.Pattern] = ap
	m.mu.Unlock()
	return nil
}

// Clear removes one override pattern.
func (m *Manager) Clear(ctx context.Context, pattern string) error {
	pattern = canonical(pattern)

	m.mu.Lock()
	_, ok := m.active[pattern]
	delete(m.active, pattern)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPattern, pattern)
	}
	if m.store != nil {
		return m.store.Delete(ctx, pattern)
	}
	return nil
}

// ClearAll removes every override pattern.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	m.active = make(map[string]*activePattern)
	m.mu.Unlock()

	if m.store != nil {
		return m.store.DeleteAll(ctx)
	}
	return nil
}

// IsOverridden reports whether any live pattern matches the device topic.
func (m *Manager) IsOverridden(deviceTopic string) bool {
	topic := point.EquipmentID(deviceTopic)
	now := m.clock.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ap := range m.active {
		if ap.expired(now) {
			continue
		}
		if _, ok := ap.deviceSet[topic]; ok {
			return true
		}
	}
	return false
}

// Patterns returns the live patterns, sorted.
func (m *Manager) Patterns() []string {
	now := m.clock.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var patterns []string
	for name, ap := range m.active {
		if ap.expired(now) {
			continue
		}
		patterns = append(patterns, name)
	}
	sort.Strings(patterns)
	return patterns
}

// Devices returns the device topics currently blocked by any live pattern.
func (m *Manager) Devices() []string {
	now := m.clock.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, ap := range m.active {
		if ap.expired(now) {
			continue
		}
		for topic := range ap.deviceSet {
			seen[topic] = struct{}{}
		}
	}
	devices := make([]string, 0, len(seen))
	for topic := range seen {
		devices = append(devices, topic)
	}
	sort.Strings(devices)
	return devices
}

// Prune drops expired patterns from memory and the store.
func (m *Manager) Prune(ctx context.Context) {
	now := m.clock.Now()

	m.mu.Lock()
	var expired []string
	for name, ap := range m.active {
		if ap.expired(now) {
			expired = append(expired, name)
			delete(m.active, name)
		}
	}
	m.mu.Unlock()

	if m.store != nil {
		for _, name := range expired {
			_ = m.store.Delete(ctx, name)
		}
	}
}

// Rebuild recomputes pattern matches against a replaced registry.
func (m *Manager) Rebuild(registry *point.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = registry
	for name, ap := range m.active {
		ap.deviceSet = matchDevices(registry, ap.re)
		m.active[name] = ap
	}
}

func (ap *activePattern) expired(now time.Time) bool {
	return ap.pattern.ExpiresAt != nil && !now.Before(*ap.pattern.ExpiresAt)
}

// compile turns a glob pattern into its regexp and precomputed device set.
// Caller may hold m.mu; only the registry field is read.
func (m *Manager) compile(p Pattern) (*activePattern, error) {
	re, err := globToRegexp(p.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p.Pattern)
	}
	return &activePattern{
		pattern:   p,
		re:        re,
		deviceSet: matchDevices(m.registry, re),
	}, nil
}

func matchDevices(registry *point.Registry, re *regexp.Regexp) map[string]struct{} {
	set := make(map[string]struct{})
	for _, d := range registry.Devices() {
		if re.MatchString(d.Topic) {
			set[d.Topic] = struct{}{}
		}
	}
	return set
}

// canonical normalises a pattern path the same way topics are normalised,
// without disturbing glob metacharacters in later segments.
func canonical(pattern string) string {
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return point.Root + "/*"
	}
	if pattern == point.Root || strings.HasPrefix(pattern, point.Root+"/") {
		return pattern
	}
	if strings.HasPrefix(pattern, "*") {
		return pattern
	}
	return point.Root + "/" + pattern
}

// globToRegexp translates a shell-style glob into an anchored regexp. "*"
// and "?" cross path separators.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

