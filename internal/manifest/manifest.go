// Package manifest reads plugin descriptors (plugin.yaml) and feeds them into
// the plugin loader and the option and shortcut registry.
//
// A descriptor looks like:
//
//	name: Signature Selector
//	pluginClass: signature.Selector
//	description: Copies a random signature to the clipboard
//	option:
//	  - shortOpt: s
//	    longOpt: sign
//	    description: Enable the signature selector
//	params:
//	  - shortOpt: sf
//	    longOpt: signatures
//	    hasArguments: true
//	shortcuts:
//	  - key: CTRL + S
//	    action: getRandomSignature
//	dashboard:
//	  enabled: true
//	  row: 1
//	  column: 2
//	  position: 10
//
// Only pluginClass is required. Malformed entries are logged and skipped;
// the rest of the descriptor still applies.
package manifest

import (
	"strings"

	"github.com/funproject/fun/internal/registry"
)

// DefaultDescription is used when a descriptor has no description.
const DefaultDescription = "No description available"

// File names recognised as plugin descriptors.
var FileNames = []string{"plugin.yaml", "plugin.yml"}

// IsDescriptor reports whether a file name is a plugin descriptor.
func IsDescriptor(name string) bool {
	for _, n := range FileNames {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}

// Manifest is a parsed descriptor. Only entries accepted by the registry
// are listed.
type Manifest struct {
	Name        string
	Type        string
	Description string
	// Options enable the plugin when given on the command line.
	Options []registry.Option
	// Params carry values for the plugin.
	Params    []registry.Option
	Shortcuts []registry.Shortcut
	// Dashboard is nil when the descriptor has no dashboard section.
	Dashboard *Placement
	// Origin names the file the manifest was read from.
	Origin string
}

// Placement holds the dashboard fields a descriptor set. Nil fields were
// absent and leave the plugin's own defaults in place.
type Placement struct {
	Enabled  *bool
	Row      *int
	Column   *int
	Position *int
}
