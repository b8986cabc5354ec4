// Package service supervises the per-space sync loops. A Manager opens one
// blob store and one remote connection per registered space, builds a sync
// engine over them, and runs each engine in its own SpaceSyncer goroutine.
// Spaces never share state; stopping the manager stops every loop and
// announces departure to the remote.
package service
