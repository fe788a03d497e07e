// Package domain holds the shared model types and the interfaces the
// orchestration core depends on.
//
// Components depend on these interfaces, not on concrete providers: the
// identity provider, streaming provider, notification provider, snapshot
// store, and clipboard are all opaque services to the core.
package domain
