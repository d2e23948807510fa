//go:build debug

// Package tag switches debug-only invariant checks and assertions on and off
// at compile time, so release builds pay nothing for them.
package tag

const Debug = true
