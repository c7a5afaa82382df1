package storage

import (
	"regexp"
	"sort"
	"strings"
)

var (
	separatorPattern = regexp.MustCompile(`[_\.\-/:\s]+`)
	camelPattern     = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// tokenize splits a node name into lowercase search tokens. It handles
// camelCase, snake_case, dotted and slashed names.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	tokens := map[string]bool{strings.ToLower(text): true}
	for _, part := range separatorPattern.Split(text, -1) {
		if part == "" {
			continue
		}
		tokens[strings.ToLower(part)] = true
		for _, word := range strings.Fields(camelPattern.ReplaceAllString(part, "$1 $2")) {
			tokens[strings.ToLower(word)] = true
		}
	}

	out := make([]string, 0, len(tokens))
	for t := range tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// nameIndex is an inverted index from name tokens to node IDs.
type nameIndex struct {
	tokens map[string]map[string]bool
}

func newNameIndex() *nameIndex {
	return &nameIndex{tokens: make(map[string]map[string]bool)}
}

func (x *nameIndex) add(n *NodeRecord) {
	for _, t := range tokenize(n.QualifiedName) {
		ids, ok := x.tokens[t]
		if !ok {
			ids = make(map[string]bool)
			x.tokens[t] = ids
		}
		ids[n.ID] = true
	}
}

// match scores every node sharing a token with query.
func (x *nameIndex) match(query string) map[string]int {
	scores := make(map[string]int)
	for _, t := range tokenize(query) {
		for id := range x.tokens[t] {
			scores[id]++
		}
	}
	return scores
}

// rank orders candidate nodes for query. Exact qualified-name and name
// matches come first, then token overlap, then ID.
func rank(query string, candidates []*NodeRecord, scores map[string]int, limit int) []*NodeRecord {
	q := strings.ToLower(query)
	weight := func(n *NodeRecord) int {
		w := scores[n.ID]
		switch {
		case strings.ToLower(n.QualifiedName) == q:
			w += 1000
		case strings.ToLower(n.Name) == q:
			w += 500
		case strings.HasSuffix(strings.ToLower(n.QualifiedName), q):
			w += 100
		}
		return w
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		wi, wj := weight(candidates[i]), weight(candidates[j])
		if wi != wj {
			return wi > wj
		}
		return candidates[i].ID < candidates[j].ID
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
