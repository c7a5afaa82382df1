package parsers

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// ModulePath returns the module path declared in root/go.mod, or "" when
// root has no go.mod.
func ModulePath(root string) (string, error) {
	gomod := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(gomod)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", gomod, err)
	}

	mf, err := modfile.ParseLax(gomod, data, nil)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", gomod, err)
	}
	if mf.Module == nil {
		return "", nil
	}
	return mf.Module.Mod.Path, nil
}

// packagePath returns the import path of the package in dir, a
// slash-separated path relative to the module root.
func packagePath(modulePath, dir string) string {
	dir = strings.Trim(path.Clean(dir), "/")
	if dir == "." || dir == "" {
		if modulePath == "" {
			return "."
		}
		return modulePath
	}
	if modulePath == "" {
		return dir
	}
	return modulePath + "/" + dir
}
