// Package lock guards a profile directory against concurrent daemons.
// Two smsd processes sharing one sms.db would race the outbox and the
// read-state updates, so the first process takes an advisory flock and
// everyone else gets told who holds it.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const lockFileName = "LOCK"

// LockHeldError reports that another daemon owns the profile.
type LockHeldError struct {
	PID  int
	Path string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("profile locked by PID %d (%s)", e.PID, e.Path)
}

// Lock is a held profile lock. The flock lives on the open file
// descriptor and falls away if the process dies.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the exclusive lock for a profile directory, creating the
// directory if needed. A LockHeldError carries the owning PID when the
// lock is already taken.
func Acquire(profileDir string) (*Lock, error) {
	if err := os.MkdirAll(profileDir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	path := filepath.Join(profileDir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, &LockHeldError{PID: holderPID(path), Path: path}
	}

	if err := writeRecord(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock record: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

// Release drops the lock and removes the record. Nil receivers and
// repeated calls are no-ops.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

// writeRecord replaces the file contents with "<pid> <rfc3339>".
func writeRecord(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	record := fmt.Sprintf("%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	_, err := f.WriteString(record)
	return err
}

// holderPID reads the owning PID back out of a lock record. Zero when
// the record is missing or unparseable.
func holderPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	pid, _ := strconv.Atoi(fields[0])
	return pid
}
