package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// DirBuilder accumulates fixture files and writes them into a temp directory.
type DirBuilder struct {
	t     *testing.T
	dir   string
	files []fileData
}

// NewDirBuilder creates a builder rooted at a fresh t.TempDir().
func NewDirBuilder(t *testing.T) *DirBuilder {
	t.Helper()
	return &DirBuilder{t: t, dir: t.TempDir()}
}

// WithFile adds a file relative to the builder's directory.
func (b *DirBuilder) WithFile(name, content string, opts ...FileOption) *DirBuilder {
	f := defaultFile(name, content)
	for _, opt := range opts {
		opt(&f)
	}
	b.files = append(b.files, f)
	return b
}

// Build writes every file and returns the directory.
func (b *DirBuilder) Build() string {
	b.t.Helper()
	for _, f := range b.files {
		path := filepath.Join(b.dir, f.name)
		require.NoError(b.t, os.MkdirAll(filepath.Dir(path), 0o755), "mkdir for %s", f.name)
		require.NoError(b.t, os.WriteFile(path, []byte(f.content), f.mode), "write %s", f.name)
		if !f.modTime.IsZero() {
			require.NoError(b.t, os.Chtimes(path, f.modTime, f.modTime), "chtimes %s", f.name)
		}
	}
	return b.dir
}
