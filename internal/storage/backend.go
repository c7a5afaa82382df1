// Package storage persists analysis results so they can be queried without
// re-running the analyzers.
//
// It defines the Backend interface that all storage implementations must
// satisfy, along with the record types shared across backends.
package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Benny93/axon-metrics/internal/metrics"
)

// NodeRecord is the stored form of one code model node and its merged
// metric record.
type NodeRecord struct {
	// ID is the code model node ID.
	ID string `json:"id"`

	// Name is the unqualified node name.
	Name string `json:"name"`

	// QualifiedName is the package-qualified name. Members use
	// {type}.{member}.
	QualifiedName string `json:"qualified_name"`

	// Kind is the node kind (package, class, interface, method, property,
	// function).
	Kind string `json:"kind"`

	// Package is the package path of the node.
	Package string `json:"package,omitempty"`

	// File is the source file relative to the analyzed root.
	File string `json:"file,omitempty"`

	// StartLine is the first line of the node.
	StartLine int `json:"start_line,omitempty"`

	// EndLine is the last line of the node.
	EndLine int `json:"end_line,omitempty"`

	// External marks packages referenced but not analyzed.
	External bool `json:"external,omitempty"`

	// Metrics is the merged metric record of all analyzers.
	Metrics metrics.Record `json:"metrics"`
}

// Edge is a package dependency.
type Edge struct {
	// Source is the ID of the depending package.
	Source string `json:"source"`

	// Target is the ID of the package depended upon.
	Target string `json:"target"`
}

// Meta describes the stored analysis.
type Meta struct {
	// Root is the analyzed directory.
	Root string `json:"root"`

	// AnalyzedAt is the time the analysis finished.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Analyzers lists the analyzer kinds that ran.
	Analyzers []string `json:"analyzers"`

	// Files is the number of analyzed files.
	Files int `json:"files"`

	// Nodes is the number of stored nodes.
	Nodes int `json:"nodes"`

	// Edges is the number of stored package dependencies.
	Edges int `json:"edges"`
}

// Snapshot is the complete result of one analysis run.
type Snapshot struct {
	Meta    Meta
	Nodes   []*NodeRecord
	Edges   []Edge
	Cycles  [][]string
	Project metrics.Record
}

// Backend defines the interface for storage implementations.
//
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Initialize opens or creates the backend at the given path.
	// If readOnly is true, the backend is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// BulkLoad replaces the entire store with the snapshot.
	BulkLoad(ctx context.Context, snap *Snapshot) error

	// GetNode returns a single node by ID, or nil if not found.
	GetNode(ctx context.Context, id string) (*NodeRecord, error)

	// NodesByKind returns all nodes of the given kind sorted by ID.
	NodesByKind(ctx context.Context, kind string) ([]*NodeRecord, error)

	// Search returns nodes whose names match query, best match first.
	Search(ctx context.Context, query string, limit int) ([]*NodeRecord, error)

	// DependsUpon returns the IDs of the packages a package depends on.
	DependsUpon(ctx context.Context, pkgID string) ([]string, error)

	// UsedBy returns the IDs of the packages depending on a package.
	UsedBy(ctx context.Context, pkgID string) ([]string, error)

	// Cycles returns the package dependency cycles, each as sorted
	// package IDs.
	Cycles(ctx context.Context) ([][]string, error)

	// ProjectMetrics returns the merged project-level record.
	ProjectMetrics(ctx context.Context) (metrics.Record, error)

	// Meta returns the stored analysis description, or nil when the store
	// is empty.
	Meta(ctx context.Context) (*Meta, error)
}

// TopNodes returns at most limit nodes with the highest value of metric,
// ties broken by ID. Nodes without the metric are skipped.
func TopNodes(nodes []*NodeRecord, metric string, limit int) []*NodeRecord {
	var out []*NodeRecord
	for _, n := range nodes {
		if _, ok := n.Metrics[metric]; ok {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := out[i].Metrics[metric], out[j].Metrics[metric]
		if c := vi.Cmp(vj); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// sortedIDs returns the keys of set in order.
func sortedIDs(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// normalizeKind lowercases a kind filter.
func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// Resolve finds the node a user-supplied name refers to. An exact node ID
// wins; otherwise the best search match is returned. It returns nil when
// nothing matches.
func Resolve(ctx context.Context, b Backend, name string) (*NodeRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	n, err := b.GetNode(ctx, name)
	if err != nil || n != nil {
		return n, err
	}
	found, err := b.Search(ctx, name, 1)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}
