// Package plugin defines the contracts between fun and its plugins, the
// catalog that maps descriptor type identifiers to constructors, and the
// loader that turns a type identifier into a live instance.
//
// Two kinds of plugin exist. A managed plugin (Plugin) is constructed once
// per type and shared; the host drives its lifecycle and dispatches keyboard
// actions to it. A worker (Worker) is constructed fresh for every load and
// runs on its own goroutine until its context is cancelled. Either kind may
// also implement Renderer to contribute a dashboard panel.
package plugin
