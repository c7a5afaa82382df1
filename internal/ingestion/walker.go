// Package ingestion discovers source files, runs them through a frontend
// and the analyzers, and loads the results into storage.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileEntry represents a file to be processed.
type FileEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the slash-separated path relative to the repo root.
	RelPath string

	// Content is the file content.
	Content []byte

	// SHA256 is the hash of the file content.
	SHA256 string
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	".axon-metrics/",
	"node_modules/",
	".idea/",
	".vscode/",
	".DS_Store",
}

// Patterns ignored unless WalkOptions.IncludeVendored is set.
var vendoredPatterns = []string{
	"vendor/",
	"testdata/",
}

const testFileSuffix = "_test.go"

// ExtensionFilter accepts files by extension, case-insensitively.
type ExtensionFilter struct {
	exts map[string]bool
}

// NewExtensionFilter creates a filter for the given extensions. A leading
// dot is optional. Without extensions the filter accepts .go files.
func NewExtensionFilter(exts ...string) *ExtensionFilter {
	f := &ExtensionFilter{exts: make(map[string]bool)}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.exts[ext] = true
	}
	if len(f.exts) == 0 {
		f.exts[".go"] = true
	}
	return f
}

// Accept reports whether name has an accepted extension.
func (f *ExtensionFilter) Accept(name string) bool {
	return f.exts[strings.ToLower(filepath.Ext(name))]
}

// Extensions returns the accepted extensions in order.
func (f *ExtensionFilter) Extensions() []string {
	out := make([]string, 0, len(f.exts))
	for ext := range f.exts {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// WalkOptions controls file discovery.
type WalkOptions struct {
	// Filter selects files by extension. Nil accepts .go files.
	Filter *ExtensionFilter

	// IncludeTests keeps _test.go files.
	IncludeTests bool

	// IncludeVendored keeps vendor/ and testdata/ directories.
	IncludeVendored bool

	// Exclude holds extra gitignore-style patterns.
	Exclude []string
}

// WalkRepo walks the repository and returns all accepted files sorted by
// relative path.
func WalkRepo(repoPath string, patterns []gitignore.Pattern, opts WalkOptions) ([]FileEntry, error) {
	filter := opts.Filter
	if filter == nil {
		filter = NewExtensionFilter()
	}
	matcher := newMatcher(patterns, opts)

	var entries []FileEntry
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != repoPath && shouldSkipDir(d.Name(), path, repoPath, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if !acceptFile(d.Name(), filter, opts) {
			return nil
		}

		relPath, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		hash := sha256.Sum256(content)
		entries = append(entries, FileEntry{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Content: content,
			SHA256:  hex.EncodeToString(hash[:]),
		})
		return nil
	})

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, err
}

func newMatcher(patterns []gitignore.Pattern, opts WalkOptions) gitignore.Matcher {
	defaults := append([]string(nil), defaultIgnorePatterns...)
	if !opts.IncludeVendored {
		defaults = append(defaults, vendoredPatterns...)
	}
	defaults = append(defaults, opts.Exclude...)

	all := make([]gitignore.Pattern, 0, len(defaults)+len(patterns))
	for _, p := range defaults {
		all = append(all, gitignore.ParsePattern(p, nil))
	}
	all = append(all, patterns...)
	return gitignore.NewMatcher(all)
}

func acceptFile(name string, filter *ExtensionFilter, opts WalkOptions) bool {
	if !filter.Accept(name) {
		return false
	}
	return opts.IncludeTests || !strings.HasSuffix(name, testFileSuffix)
}

// loadGitignore loads .gitignore patterns from the repository root.
func loadGitignore(repoPath string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(repoPath, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

// shouldSkipDir checks if a directory should be skipped.
func shouldSkipDir(name, path, repoRoot string, matcher gitignore.Matcher) bool {
	if name == ".git" {
		return true
	}

	relPath, err := filepath.Rel(repoRoot, path)
	if err != nil {
		return false
	}
	return matcher.Match(splitPath(relPath), true)
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}

// Fingerprint hashes the relative paths and content hashes of entries. Two
// walks with the same fingerprint saw the same inputs.
func Fingerprint(entries []FileEntry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.RelPath))
		h.Write([]byte{0})
		h.Write([]byte(e.SHA256))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
