package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/compass-survey/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventProjectLoaded EventType = iota
	EventProjectRemoved
)

func (t EventType) String() string {
	switch t {
	case EventProjectLoaded:
		return "project_loaded"
	case EventProjectRemoved:
		return "project_removed"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type    EventType
	Path    string
	Project *model.LoadedProject // nil for EventProjectRemoved
}

// MetricsRecorder receives the number of stored projects after each change.
type MetricsRecorder interface {
	SetLoadedProjects(n int)
}

// Option customises KnowledgeBase construction.
type Option func(*KnowledgeBase)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(kb *KnowledgeBase) {
		kb.metrics = m
	}
}

// KnowledgeBase is an in-memory, thread-safe store of loaded projects keyed
// by project file path.
//
// Stored projects are shared with callers and must be treated as read-only.
// A reload replaces the stored pointer instead of mutating it.
type KnowledgeBase struct {
	mu sync.RWMutex

	projects map[string]*model.LoadedProject

	subs    map[int]func(Event)
	nextSub int

	metrics MetricsRecorder
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase(opts ...Option) *KnowledgeBase {
	kb := &KnowledgeBase{
		projects: make(map[string]*model.LoadedProject),
		subs:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(kb)
		}
	}
	return kb
}

// Put stores p under p.Path, replacing any earlier version, and notifies
// subscribers.
func (kb *KnowledgeBase) Put(p *model.LoadedProject) error {
	if p == nil {
		return fmt.Errorf("kb.Put: project is nil")
	}
	if p.Path == "" {
		return fmt.Errorf("kb.Put: project has no path")
	}

	kb.mu.Lock()
	kb.projects[p.Path] = p
	n := len(kb.projects)
	subs := kb.snapshotSubsLocked()
	kb.mu.Unlock()

	kb.publish(subs, n, Event{Type: EventProjectLoaded, Path: p.Path, Project: p})
	return nil
}

// Get returns the project stored under path, or nil if not found.
func (kb *KnowledgeBase) Get(path string) *model.LoadedProject {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.projects[path]
}

// List returns a snapshot of all stored projects ordered by path.
func (kb *KnowledgeBase) List() []*model.LoadedProject {
	kb.mu.RLock()
	res := make([]*model.LoadedProject, 0, len(kb.projects))
	for _, p := range kb.projects {
		res = append(res, p)
	}
	kb.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Path < res[j].Path })
	return res
}

// Remove deletes the project stored under path. It reports whether a
// project was removed.
func (kb *KnowledgeBase) Remove(path string) bool {
	kb.mu.Lock()
	if _, ok := kb.projects[path]; !ok {
		kb.mu.Unlock()
		return false
	}
	delete(kb.projects, path)
	n := len(kb.projects)
	subs := kb.snapshotSubsLocked()
	kb.mu.Unlock()

	kb.publish(subs, n, Event{Type: EventProjectRemoved, Path: path})
	return true
}

// Len returns the number of stored projects.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.projects)
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func (kb *KnowledgeBase) snapshotSubsLocked() []func(Event) {
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, kb.subs[id])
	}
	return subs
}

// publish runs outside the lock so subscribers may call back into the KB.
func (kb *KnowledgeBase) publish(subs []func(Event), n int, event Event) {
	if kb.metrics != nil {
		kb.metrics.SetLoadedProjects(n)
	}
	for _, sub := range subs {
		sub(event)
	}
}
