// Package flock provides cross-platform advisory file locking.
//
// The bundle mutex builds on these primitives to serialize governed-artifact
// writers per spec bundle. Locks are exclusive and non-blocking: a held lock
// surfaces immediately as an error instead of waiting.
//
// Usage:
//
//	file, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
//	if err := flock.Exclusive(file.Fd()); err != nil {
//	    // Lock not acquired - file is in use
//	}
//	defer flock.Unlock(file.Fd())
package flock
