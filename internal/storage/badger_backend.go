package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/axon-metrics/internal/metrics"
)

// Key prefixes for different data types
const (
	prefixNode     = "n:"     // node records
	prefixOutgoing = "d:out:" // package dependencies by source
	prefixIncoming = "d:in:"  // package dependencies by target
	prefixCycle    = "c:"     // dependency cycles
	keyProject     = "p:project"
	keyMeta        = "p:meta"
	edgeSeparator  = "|"
)

// ErrNotInitialized is returned when a backend is used before Initialize.
var ErrNotInitialized = errors.New("storage backend not initialized")

// BadgerBackend is a BadgerDB-backed storage implementation.
type BadgerBackend struct {
	db    *badger.DB
	mu    sync.RWMutex
	names *nameIndex
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{names: newNameIndex()}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR)

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db

	return b.rebuildNameIndex()
}

// rebuildNameIndex rebuilds the name index from the database.
func (b *BadgerBackend) rebuildNameIndex() error {
	b.names = newNameIndex()
	return b.db.View(func(txn *badger.Txn) error {
		return iterateNodes(txn, func(n *NodeRecord) bool {
			b.names.add(n)
			return true
		})
	})
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	return err
}

// BulkLoad replaces the entire store with the snapshot.
func (b *BadgerBackend) BulkLoad(ctx context.Context, snap *Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return ErrNotInitialized
	}
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	b.names = newNameIndex()
	for _, n := range snap.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := setJSON(wb, nodeKey(n.ID), n); err != nil {
			return fmt.Errorf("setting node %s: %w", n.ID, err)
		}
		b.names.add(n)
	}

	for _, e := range snap.Edges {
		if err := wb.Set(edgeKey(prefixOutgoing, e.Source, e.Target), nil); err != nil {
			return fmt.Errorf("setting outgoing index: %w", err)
		}
		if err := wb.Set(edgeKey(prefixIncoming, e.Target, e.Source), nil); err != nil {
			return fmt.Errorf("setting incoming index: %w", err)
		}
	}

	for i, cycle := range snap.Cycles {
		if err := setJSON(wb, []byte(fmt.Sprintf("%s%06d", prefixCycle, i)), cycle); err != nil {
			return fmt.Errorf("setting cycle: %w", err)
		}
	}

	if err := setJSON(wb, []byte(keyProject), snap.Project); err != nil {
		return fmt.Errorf("setting project metrics: %w", err)
	}

	meta := snap.Meta
	meta.Nodes = len(snap.Nodes)
	meta.Edges = len(snap.Edges)
	if err := setJSON(wb, []byte(keyMeta), meta); err != nil {
		return fmt.Errorf("setting meta: %w", err)
	}

	return wb.Flush()
}

func setJSON(wb *badger.WriteBatch, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	return wb.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// iterateNodes calls fn for every stored node until fn returns false.
// Records that fail to decode are skipped.
func iterateNodes(txn *badger.Txn, fn func(*NodeRecord) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixNode)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var n NodeRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		}); err != nil {
			continue
		}
		if !fn(&n) {
			break
		}
	}
	return nil
}

func (b *BadgerBackend) view(fn func(txn *badger.Txn) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return ErrNotInitialized
	}
	return b.db.View(fn)
}

// GetNode returns a single node by ID, or nil if not found.
func (b *BadgerBackend) GetNode(ctx context.Context, id string) (*NodeRecord, error) {
	var (
		node  NodeRecord
		found bool
	)
	err := b.view(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, nodeKey(id), &node)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting node: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &node, nil
}

// NodesByKind returns all nodes of the given kind sorted by ID. An empty
// kind returns every node.
func (b *BadgerBackend) NodesByKind(ctx context.Context, kind string) ([]*NodeRecord, error) {
	kind = normalizeKind(kind)
	var nodes []*NodeRecord
	err := b.view(func(txn *badger.Txn) error {
		return iterateNodes(txn, func(n *NodeRecord) bool {
			if kind == "" || n.Kind == kind {
				nodes = append(nodes, n)
			}
			return ctx.Err() == nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Search returns nodes whose names match query, best match first.
func (b *BadgerBackend) Search(ctx context.Context, query string, limit int) ([]*NodeRecord, error) {
	b.mu.RLock()
	scores := b.names.match(query)
	b.mu.RUnlock()

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var candidates []*NodeRecord
	err := b.view(func(txn *badger.Txn) error {
		for _, id := range ids {
			var n NodeRecord
			found, err := getJSON(txn, nodeKey(id), &n)
			if err != nil {
				return err
			}
			if found {
				candidates = append(candidates, &n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching nodes: %w", err)
	}
	return rank(query, candidates, scores, limit), nil
}

// DependsUpon returns the IDs of the packages a package depends on.
func (b *BadgerBackend) DependsUpon(ctx context.Context, pkgID string) ([]string, error) {
	return b.adjacent(prefixOutgoing, pkgID)
}

// UsedBy returns the IDs of the packages depending on a package.
func (b *BadgerBackend) UsedBy(ctx context.Context, pkgID string) ([]string, error) {
	return b.adjacent(prefixIncoming, pkgID)
}

func (b *BadgerBackend) adjacent(prefix, id string) ([]string, error) {
	start := prefix + id + edgeSeparator
	var out []string
	err := b.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(start)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, strings.TrimPrefix(string(it.Item().Key()), start))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading dependencies: %w", err)
	}
	return out, nil
}

// Cycles returns the stored package dependency cycles.
func (b *BadgerBackend) Cycles(ctx context.Context) ([][]string, error) {
	var cycles [][]string
	err := b.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixCycle)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var cycle []string
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &cycle)
			}); err != nil {
				return err
			}
			cycles = append(cycles, cycle)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading cycles: %w", err)
	}
	return cycles, nil
}

// ProjectMetrics returns the merged project-level record.
func (b *BadgerBackend) ProjectMetrics(ctx context.Context) (metrics.Record, error) {
	rec := metrics.Record{}
	err := b.view(func(txn *badger.Txn) error {
		_, err := getJSON(txn, []byte(keyProject), &rec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading project metrics: %w", err)
	}
	return rec, nil
}

// Meta returns the stored analysis description, or nil when the store is
// empty.
func (b *BadgerBackend) Meta(ctx context.Context) (*Meta, error) {
	var (
		meta  Meta
		found bool
	)
	err := b.view(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, []byte(keyMeta), &meta)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading meta: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &meta, nil
}

// nodeKey returns the BadgerDB key for a node.
func nodeKey(id string) []byte {
	return []byte(prefixNode + id)
}

// edgeKey returns the adjacency key of a dependency.
func edgeKey(prefix, from, to string) []byte {
	return []byte(prefix + from + edgeSeparator + to)
}
