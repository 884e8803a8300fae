package lint

import (
	"os"
	"path/filepath"
)

// ResolveRoot returns the repository containing start: the nearest ancestor
// holding a .git entry. Without one, start itself is the root.
func ResolveRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for dir := abs; ; {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}

		dir = parent
	}
}
