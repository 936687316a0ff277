package agent

import (
	"errors"
	"testing"

	"bt-go/internal/errs"
)

func TestSandboxPath_AcceptsCleanRelativePath(t *testing.T) {
	got, err := SandboxPath("a/b/c.txt")
	if err != nil {
		t.Fatalf("SandboxPath() error = %v", err)
	}
	if got != "a/b/c.txt" {
		t.Errorf("SandboxPath() = %q, want a/b/c.txt", got)
	}
}

func TestSandboxPath_NormalizesRedundantSeparators(t *testing.T) {
	got, err := SandboxPath("a//b/./c.txt")
	if err != nil {
		t.Fatalf("SandboxPath() error = %v", err)
	}
	if got != "a/b/c.txt" {
		t.Errorf("SandboxPath() = %q, want a/b/c.txt", got)
	}
}

func TestSandboxPath_RejectsAbsolutePath(t *testing.T) {
	if _, err := SandboxPath("/etc/passwd"); !errors.Is(err, errs.ErrPathEscape) {
		t.Fatalf("SandboxPath() error = %v, want errs.ErrPathEscape", err)
	}
}

func TestSandboxPath_RejectsParentTraversal(t *testing.T) {
	if _, err := SandboxPath("a/../../etc/passwd"); !errors.Is(err, errs.ErrPathEscape) {
		t.Fatalf("SandboxPath() error = %v, want errs.ErrPathEscape", err)
	}
}

func TestSandboxPath_RejectsNulByte(t *testing.T) {
	if _, err := SandboxPath("a/b\x00.txt"); !errors.Is(err, errs.ErrPathEscape) {
		t.Fatalf("SandboxPath() error = %v, want errs.ErrPathEscape", err)
	}
}

func TestSandboxPath_RejectsEmptyPath(t *testing.T) {
	if _, err := SandboxPath(""); !errors.Is(err, errs.ErrPathEscape) {
		t.Fatalf("SandboxPath() error = %v, want errs.ErrPathEscape", err)
	}
}
