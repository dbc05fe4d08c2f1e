// Package testutil builds plugin directories for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// fileData is one file of a plugin directory.
type fileData struct {
	path string
	data []byte
}

// Builder accumulates plugin descriptors and the files shipped next to them.
type Builder struct {
	t     *testing.T
	files []fileData
}

// NewBuilder creates an empty builder.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t}
}

// WithPlugin adds dir/plugin.yaml describing a plugin called name.
func (b *Builder) WithPlugin(dir, name string, opts ...DescriptorOption) *Builder {
	b.t.Helper()
	d := descriptorData{Name: name}
	for _, opt := range opts {
		opt(&d)
	}
	data, err := yaml.Marshal(d)
	require.NoError(b.t, err)
	return b.WithFile(filepath.ToSlash(filepath.Join(dir, "plugin.yaml")), string(data))
}

// WithFile adds an arbitrary file, such as a script, at a slash-separated path.
func (b *Builder) WithFile(path, content string) *Builder {
	b.files = append(b.files, fileData{path: path, data: []byte(content)})
	return b
}

// Build writes every file under root and returns root.
func (b *Builder) Build(root string) string {
	b.t.Helper()
	for _, f := range b.files {
		path := filepath.Join(root, filepath.FromSlash(f.path))
		require.NoError(b.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(b.t, os.WriteFile(path, f.data, 0o644))
	}
	return root
}

// BuildFS returns the files as an in-memory file system.
func (b *Builder) BuildFS() fstest.MapFS {
	fsys := make(fstest.MapFS, len(b.files))
	for _, f := range b.files {
		fsys[f.path] = &fstest.MapFile{Data: f.data}
	}
	return fsys
}
