package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/Benny93/axon-metrics/internal/metrics"
)

// MemoryBackend is an in-memory implementation of Backend for tests and
// single-shot runs.
type MemoryBackend struct {
	mu       sync.RWMutex
	nodes    map[string]*NodeRecord
	outgoing map[string]map[string]bool
	incoming map[string]map[string]bool
	cycles   [][]string
	project  metrics.Record
	meta     *Meta
	names    *nameIndex
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	m := &MemoryBackend{}
	m.reset()
	return m
}

func (m *MemoryBackend) reset() {
	m.nodes = make(map[string]*NodeRecord)
	m.outgoing = make(map[string]map[string]bool)
	m.incoming = make(map[string]map[string]bool)
	m.cycles = nil
	m.project = metrics.Record{}
	m.meta = nil
	m.names = newNameIndex()
}

// Initialize implements Backend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

// BulkLoad implements Backend.
func (m *MemoryBackend) BulkLoad(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset()
	for _, n := range snap.Nodes {
		m.nodes[n.ID] = n
		m.names.add(n)
	}
	for _, e := range snap.Edges {
		link(m.outgoing, e.Source, e.Target)
		link(m.incoming, e.Target, e.Source)
	}
	m.cycles = snap.Cycles
	if snap.Project != nil {
		m.project = snap.Project.Clone()
	}

	meta := snap.Meta
	meta.Nodes = len(snap.Nodes)
	meta.Edges = len(snap.Edges)
	m.meta = &meta
	return nil
}

func link(adj map[string]map[string]bool, from, to string) {
	set, ok := adj[from]
	if !ok {
		set = make(map[string]bool)
		adj[from] = set
	}
	set[to] = true
}

// GetNode implements Backend.
func (m *MemoryBackend) GetNode(ctx context.Context, id string) (*NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes[id], nil
}

// NodesByKind implements Backend.
func (m *MemoryBackend) NodesByKind(ctx context.Context, kind string) ([]*NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kind = normalizeKind(kind)
	var out []*NodeRecord
	for _, n := range m.nodes {
		if kind == "" || n.Kind == kind {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Search implements Backend.
func (m *MemoryBackend) Search(ctx context.Context, query string, limit int) ([]*NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scores := m.names.match(query)
	candidates := make([]*NodeRecord, 0, len(scores))
	for id := range scores {
		if n, ok := m.nodes[id]; ok {
			candidates = append(candidates, n)
		}
	}
	return rank(query, candidates, scores, limit), nil
}

// DependsUpon implements Backend.
func (m *MemoryBackend) DependsUpon(ctx context.Context, pkgID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedIDs(m.outgoing[pkgID]), nil
}

// UsedBy implements Backend.
func (m *MemoryBackend) UsedBy(ctx context.Context, pkgID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedIDs(m.incoming[pkgID]), nil
}

// Cycles implements Backend.
func (m *MemoryBackend) Cycles(ctx context.Context) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cycles, nil
}

// ProjectMetrics implements Backend.
func (m *MemoryBackend) ProjectMetrics(ctx context.Context) (metrics.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.project.Clone(), nil
}

// Meta implements Backend.
func (m *MemoryBackend) Meta(ctx context.Context) (*Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta, nil
}
