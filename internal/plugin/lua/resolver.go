package lua

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/funproject/fun/internal/plugin"
)

// TypePrefix marks descriptor type ids handled by this package, as in
// "pluginClass: lua:clock.lua".
const TypePrefix = "lua:"

// Resolver builds Lua plugins for "lua:<script>" type ids. The script path is
// relative to the descriptor's directory.
type Resolver struct {
	Options []Option
}

// Resolve implements plugin.Resolver.
func (r Resolver) Resolve(typeID string) (plugin.Factory, bool) {
	script, ok := strings.CutPrefix(typeID, TypePrefix)
	if !ok || script == "" {
		return nil, false
	}

	return func(req plugin.Request) (any, error) {
		src, err := readScript(req, script)
		if err != nil {
			return nil, err
		}
		return New(script, src, r.Options...)
	}, true
}

func readScript(req plugin.Request, script string) ([]byte, error) {
	if req.FS == nil {
		src, err := os.ReadFile(script) //nolint:gosec // G304: script comes from a local plugin descriptor
		if err != nil {
			return nil, fmt.Errorf("reading lua script: %w", err)
		}
		return src, nil
	}

	name := path.Join(req.Dir, script)
	if req.Dir == "" {
		name = path.Clean(script)
	}
	src, err := fs.ReadFile(req.FS, name)
	if err != nil {
		return nil, fmt.Errorf("reading lua script: %w", err)
	}
	return src, nil
}
