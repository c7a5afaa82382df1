package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func relPaths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.RelPath
	}
	return out
}

func TestWalkRepo(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"main.go":                    "package main",
		"main_test.go":               "package main",
		"internal/app/app.go":        "package app",
		"internal/app/gen.pb.go":     "package app",
		"vendor/lib/lib.go":          "package lib",
		"internal/app/testdata/x.go": "package x",
		"README.md":                  "# README",
		"tool.GO":                    "package main",
		".gitignore":                 "*.pb.go\n# comment\n",
		".axon-metrics/cache.go":     "package cache",
	})

	t.Run("DefaultsToGoSources", func(t *testing.T) {
		entries, err := WalkRepo(tmpDir, nil, WalkOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"internal/app/app.go", "internal/app/gen.pb.go", "main.go", "tool.GO"}, relPaths(entries))
	})

	t.Run("RespectGitignore", func(t *testing.T) {
		patterns, err := loadGitignore(tmpDir)
		require.NoError(t, err)
		require.Len(t, patterns, 1)

		entries, err := WalkRepo(tmpDir, patterns, WalkOptions{})
		require.NoError(t, err)
		assert.NotContains(t, relPaths(entries), "internal/app/gen.pb.go")
	})

	t.Run("IncludeTestsAndVendored", func(t *testing.T) {
		entries, err := WalkRepo(tmpDir, nil, WalkOptions{IncludeTests: true, IncludeVendored: true})
		require.NoError(t, err)
		paths := relPaths(entries)
		assert.Contains(t, paths, "main_test.go")
		assert.Contains(t, paths, "vendor/lib/lib.go")
		assert.Contains(t, paths, "internal/app/testdata/x.go")
		assert.NotContains(t, paths, ".axon-metrics/cache.go")
	})

	t.Run("ExcludePatterns", func(t *testing.T) {
		entries, err := WalkRepo(tmpDir, nil, WalkOptions{Exclude: []string{"internal/"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"main.go", "tool.GO"}, relPaths(entries))
	})

	t.Run("CustomExtensions", func(t *testing.T) {
		entries, err := WalkRepo(tmpDir, nil, WalkOptions{Filter: NewExtensionFilter("md")})
		require.NoError(t, err)
		assert.Equal(t, []string{"README.md"}, relPaths(entries))
	})

	t.Run("ComputeSHA256", func(t *testing.T) {
		entries, err := WalkRepo(tmpDir, nil, WalkOptions{})
		require.NoError(t, err)
		for _, e := range entries {
			assert.Len(t, e.SHA256, 64)
			assert.NotEmpty(t, e.Content)
			assert.True(t, filepath.IsAbs(e.Path))
		}
	})

	t.Run("MissingRoot", func(t *testing.T) {
		_, err := WalkRepo(filepath.Join(tmpDir, "missing"), nil, WalkOptions{})
		assert.Error(t, err)
	})
}

func TestExtensionFilter(t *testing.T) {
	t.Parallel()

	t.Run("Default", func(t *testing.T) {
		f := NewExtensionFilter()
		assert.True(t, f.Accept("a.go"))
		assert.True(t, f.Accept("A.GO"))
		assert.False(t, f.Accept("a.go.txt"))
		assert.False(t, f.Accept("Makefile"))
		assert.Equal(t, []string{".go"}, f.Extensions())
	})

	t.Run("Normalized", func(t *testing.T) {
		f := NewExtensionFilter("PHP", ".inc", " ")
		assert.True(t, f.Accept("x.php"))
		assert.True(t, f.Accept("x.inc"))
		assert.False(t, f.Accept("x.go"))
		assert.Equal(t, []string{".inc", ".php"}, f.Extensions())
	})
}

func TestLoadGitignore(t *testing.T) {
	t.Parallel()

	t.Run("NoGitignore", func(t *testing.T) {
		patterns, err := loadGitignore(t.TempDir())
		assert.NoError(t, err)
		assert.Nil(t, patterns)
	})

	t.Run("SkipsCommentsAndBlankLines", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{".gitignore": "# build\n\nbin/\n*.tmp\n"})

		patterns, err := loadGitignore(dir)
		require.NoError(t, err)
		assert.Len(t, patterns, 2)
	})
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := []FileEntry{{RelPath: "a.go", SHA256: "1"}, {RelPath: "b.go", SHA256: "2"}}
	b := []FileEntry{{RelPath: "a.go", SHA256: "1"}, {RelPath: "b.go", SHA256: "3"}}

	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(a[:1]))
}
