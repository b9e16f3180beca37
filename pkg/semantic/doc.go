// Package semantic loads declarative model documents into an immutable
// Registry and resolves field references along declared join chains.
//
// A Registry is never mutated after Load returns. Reloading a project builds
// a new Registry and swaps the reference; concurrent readers need no locking.
package semantic
