// Package parsers turns source files into the code model analyzed by the
// metrics engine.
package parsers

import (
	"context"

	"github.com/Benny93/axon-metrics/internal/code"
)

// SourceFile is a file handed to a frontend.
type SourceFile struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the path relative to the analyzed root, using forward
	// slashes.
	RelPath string

	// Content is the file content.
	Content []byte
}

// Frontend builds code model nodes from source files of one language.
type Frontend interface {
	// Build parses files and declares their packages, types, members and
	// bodies on b. Parse errors name the offending file.
	Build(ctx context.Context, files []SourceFile, b *code.Builder) error

	// Language returns the language this frontend handles.
	Language() string

	// Extensions returns the file extensions the frontend accepts.
	Extensions() []string
}
