package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}

	lockPath := filepath.Join(dir, LockFileName)
	content, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("lock file not created: %v", err)
	}
	expected := fmt.Sprintf("pid=%d\n", os.Getpid())
	if string(content) != expected {
		t.Errorf("expected lock file content %q, got %q", expected, string(content))
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("expected lock file removed after release")
	}

	// Release twice is a no-op.
	if err := lock.Release(); err != nil {
		t.Errorf("second release failed: %v", err)
	}
}

func TestAcquireCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected state directory created: %v", err)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}

	second, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("failed to reacquire released lock: %v", err)
	}
	second.Release()
}

func TestExtractPID(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"pid=12345\n", 12345},
		{"pid=7", 7},
		{"no pid here", 0},
		{"pid=", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := extractPID(tt.content); got != tt.want {
			t.Errorf("extractPID(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestLockErrorUnwrap(t *testing.T) {
	cause := errors.New("resource temporarily unavailable")
	err := &LockError{LockPath: "/tmp/x.lock", HolderInfo: "PID 1 (running)", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected LockError to unwrap to its cause")
	}
}
