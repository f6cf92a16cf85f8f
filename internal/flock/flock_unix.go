//go:build unix

package flock

import "syscall"

// Exclusive takes an exclusive advisory lock on fd without blocking; when
// another process holds the lock the syscall fails immediately.
func Exclusive(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX|syscall.LOCK_NB)
}

// Unlock drops the advisory lock held on fd.
func Unlock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
