package agent

import (
	"fmt"
	"path"
	"strings"

	"bt-go/internal/errs"
)

// SandboxPath validates a client-supplied repository-relative path before
// it touches the catalog or block store: no NUL byte, no leading "/", and
// no ".." component anywhere in the raw path — rejected outright rather
// than clamped, so a client attempting to escape gets an error instead of
// a silently reinterpreted path. Returns the path.Clean-normalized form.
func SandboxPath(p string) (string, error) {
	if strings.IndexByte(p, 0) >= 0 {
		return "", fmt.Errorf("path contains NUL byte: %w", errs.ErrPathEscape)
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path %q must be repository-relative: %w", p, errs.ErrPathEscape)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("path %q escapes repository root: %w", p, errs.ErrPathEscape)
		}
	}

	clean := path.Clean(p)
	if clean == "." || clean == "" {
		return "", fmt.Errorf("empty path: %w", errs.ErrPathEscape)
	}

	return clean, nil
}
