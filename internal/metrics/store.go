package metrics

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Store maps node IDs to metric records for a single analyzer.
//
// Only the owning analyzer writes; writes are serialized and a completed
// store can be read concurrently.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewStore creates an empty, unpopulated store.
func NewStore() *Store {
	return &Store{}
}

// Populated reports whether Init has been called.
func (s *Store) Populated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records != nil
}

// Init marks the store as populated. Subsequent calls are no-ops.
func (s *Store) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[string]Record)
	}
}

// Has reports whether a record exists for id.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// Get returns a copy of the record for id, empty when absent.
func (s *Store) Get(id string) Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[id].Clone()
}

// Put replaces the record for id.
func (s *Store) Put(id string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	s.records[id] = r.Clone()
}

// Set stores a single value.
func (s *Store) Set(id, name string, v decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(id)[name] = v
}

// Add increments a value by delta.
func (s *Store) Add(id, name string, delta decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recordLocked(id)
	r[name] = r[name].Add(delta)
}

// Inc increments an integer value by one.
func (s *Store) Inc(id, name string) {
	s.Add(id, name, decimal.NewFromInt(1))
}

// All returns a deep copy of every record.
func (s *Store) All() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Record, len(s.records))
	for id, r := range s.records {
		out[id] = r.Clone()
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) ensure() {
	if s.records == nil {
		s.records = make(map[string]Record)
	}
}

func (s *Store) recordLocked(id string) Record {
	s.ensure()
	r, ok := s.records[id]
	if !ok {
		r = make(Record)
		s.records[id] = r
	}
	return r
}
