// Package plugins lists the plugins compiled into the fun binary.
package plugins

import (
	"io/fs"

	"github.com/funproject/fun/internal/manifest"
	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/plugins/keepalive"
	"github.com/funproject/fun/internal/plugins/signature"
)

// Builtin is a compiled-in plugin: its factory and its embedded descriptor.
type Builtin struct {
	TypeID   string
	Factory  plugin.Factory
	Manifest fs.FS
}

// Builtins returns every compiled-in plugin.
func Builtins() []Builtin {
	return []Builtin{
		{TypeID: keepalive.TypeID, Factory: keepalive.Factory, Manifest: keepalive.Manifest},
		{TypeID: signature.TypeID, Factory: signature.Factory, Manifest: signature.Manifest},
	}
}

// Register adds every builtin factory to c.
func Register(c *plugin.Catalog) {
	for _, b := range Builtins() {
		c.Register(b.TypeID, b.Factory)
	}
}

// Sources returns the embedded descriptors as discovery sources, in
// Builtins order.
func Sources() []manifest.Source {
	var out []manifest.Source
	for _, b := range Builtins() {
		out = append(out, manifest.Source{Label: "builtin:" + b.TypeID, FS: b.Manifest})
	}
	return out
}
