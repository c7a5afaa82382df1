package metrics

// Wire validates candidates against the requirements of top and registers
// them. Every required kind must be matched by exactly one candidate and
// every candidate must match a required kind.
func Wire(top AggregateAnalyzer, candidates ...Analyzer) error {
	required := top.RequiredAnalyzers()
	wanted := make(map[Kind]bool, len(required))
	for _, k := range required {
		wanted[k] = true
	}

	seen := make(map[Kind]int, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if !wanted[c.Kind()] {
			return Unexpected(top.Kind(), c, required...)
		}
		seen[c.Kind()]++
		if seen[c.Kind()] > 1 {
			return &ConfigError{Analyzer: top.Kind(), Required: c.Kind(), Err: ErrAmbiguousAnalyzer}
		}
	}

	for _, k := range required {
		if seen[k] == 0 {
			return Missing(top.Kind(), k)
		}
	}

	for _, c := range candidates {
		if c == nil {
			continue
		}
		if err := top.AddAnalyzer(c); err != nil {
			return err
		}
	}
	return nil
}
