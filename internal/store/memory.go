package store

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-process Store backend. It backs tests and local development;
// production deployments use the sqlite or firebase backends.
type Memory struct {
	mu   sync.RWMutex
	root map[string]any
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{root: make(map[string]any)}
}

func (m *Memory) Get(_ context.Context, path string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node := navigate(m.root, splitPath(path))
	return clone(node), nil
}

func (m *Memory) Set(_ context.Context, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	segments := splitPath(path)
	parent := navigateMap(m.root, segments[:len(segments)-1], true)
	parent[segments[len(segments)-1]] = clone(value)
	return nil
}

func (m *Memory) Update(_ context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := navigateMap(m.root, splitPath(path), true)
	for k, v := range fields {
		target[k] = clone(v)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	segments := splitPath(path)
	parent := navigateMap(m.root, segments[:len(segments)-1], false)
	if parent != nil {
		delete(parent, segments[len(segments)-1])
	}
	return nil
}

func (m *Memory) Append(ctx context.Context, path string, value any) (string, error) {
	id := NewChildID()
	return id, m.Set(ctx, path+"/"+id, value)
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// navigate walks segments from node, returning nil when any hop is missing.
func navigate(node any, segments []string) any {
	cur := node
	for _, seg := range segments {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = asMap[seg]
	}
	return cur
}

// navigateMap walks segments and returns the map at the destination,
// creating intermediate maps when create is set. A non-map value along the
// way is replaced when creating, nil is returned otherwise.
func navigateMap(root map[string]any, segments []string, create bool) map[string]any {
	cur := root
	for _, seg := range segments {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			if !create {
				return nil
			}
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	return cur
}

// clone deep-copies map values so readers never alias internal state.
func clone(v any) any {
	asMap, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(asMap))
	for k, child := range asMap {
		out[k] = clone(child)
	}
	return out
}
