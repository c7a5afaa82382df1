package metrics

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingAnalyzer reports a required analyzer that was never wired.
	ErrMissingAnalyzer = errors.New("missing required analyzer")

	// ErrUnexpectedAnalyzer reports a supplied analyzer of a kind that is
	// not required.
	ErrUnexpectedAnalyzer = errors.New("unexpected analyzer")

	// ErrAmbiguousAnalyzer reports more than one instance of a required kind.
	ErrAmbiguousAnalyzer = errors.New("ambiguous analyzer")
)

// ConfigError is a fatal wiring error. It is surfaced immediately and never
// retried.
type ConfigError struct {
	// Analyzer is the kind of the analyzer being configured.
	Analyzer Kind

	// Required is the kind that is missing, duplicated or unexpected.
	Required Kind

	// Accepted lists the kinds the analyzer accepts.
	Accepted []Kind

	// Err is one of the sentinel errors of this package.
	Err error
}

func (e *ConfigError) Error() string {
	switch {
	case errors.Is(e.Err, ErrMissingAnalyzer):
		return fmt.Sprintf("%s: missing required %s analyzer", e.Analyzer, e.Required.Label())
	case errors.Is(e.Err, ErrAmbiguousAnalyzer):
		return fmt.Sprintf("%s: more than one %s analyzer supplied", e.Analyzer, e.Required.Label())
	case errors.Is(e.Err, ErrUnexpectedAnalyzer):
		return fmt.Sprintf("%s: %s required, got %s", e.Analyzer, joinLabels(e.Accepted), e.Required.Label())
	default:
		return fmt.Sprintf("%s: %v", e.Analyzer, e.Err)
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Missing returns a ConfigError for an unwired required analyzer.
func Missing(analyzer, required Kind) error {
	return &ConfigError{Analyzer: analyzer, Required: required, Err: ErrMissingAnalyzer}
}

// Unexpected returns a ConfigError for an analyzer that is not accepted.
func Unexpected(analyzer Kind, got Analyzer, accepted ...Kind) error {
	var k Kind
	if got != nil {
		k = got.Kind()
	}
	return &ConfigError{Analyzer: analyzer, Required: k, Accepted: accepted, Err: ErrUnexpectedAnalyzer}
}

func joinLabels(kinds []Kind) string {
	labels := make([]string, len(kinds))
	for i, k := range kinds {
		labels[i] = k.Label()
	}
	switch len(labels) {
	case 0:
		return "no analyzers"
	case 1:
		return labels[0] + " analyzer"
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1] + " analyzers"
	}
}
